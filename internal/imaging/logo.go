// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging prepares uploaded site logos: content sniffing, EXIF
// orientation and downscaling of oversized raster images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// DefaultMaxHeight is the logo height used when none is configured.
const DefaultMaxHeight = 240

// Raster logos are rejected before decoding when their header declares
// more than MaxDimension pixels on a side or MaxPixels in total.
const (
	MaxDimension = 8000
	MaxPixels    = 25_000_000
)

var (
	// ErrNotImage is returned for uploads whose content is not an image.
	ErrNotImage = errors.New("uploaded file is not an image")
	// ErrTooLarge is returned for raster images over the size limits.
	ErrTooLarge = errors.New("image dimensions too large")
)

// Logo is a processed upload ready to be stored or embedded.
type Logo struct {
	Filename string
	MimeType string
	Data     []byte
}

// Processor normalises logo uploads.
type Processor struct {
	maxHeight int
}

// NewProcessor returns a Processor that scales logos down to maxHeight pixels.
func NewProcessor(maxHeight int) *Processor {
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return &Processor{maxHeight: maxHeight}
}

// Process sniffs the upload and, for raster formats, applies EXIF
// orientation and downscales images taller than the configured height.
// Vector and unknown image types are passed through untouched.
func (p *Processor) Process(filename string, data []byte) (Logo, error) {
	mime := mimetype.Detect(data)
	mimeType := mime.String()
	if !strings.HasPrefix(mimeType, "image/") {
		return Logo{}, fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}

	logo := Logo{Filename: filename, MimeType: mimeType, Data: data}

	format := rasterFormat(mimeType)
	if format == "" {
		return logo, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Logo{}, fmt.Errorf("reading logo header: %w", err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return Logo{}, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Logo{}, fmt.Errorf("decoding logo: %w", err)
	}

	orientation := readExifOrientation(bytes.NewReader(data))
	tooTall := img.Bounds().Dy() > p.maxHeight
	if orientation == 1 && !tooTall && format != "webp" {
		return logo, nil
	}

	img = applyOrientation(img, orientation)
	if img.Bounds().Dy() > p.maxHeight {
		img = imaging.Resize(img, 0, p.maxHeight, imaging.Lanczos)
	}

	out, outFormat, err := encodeImage(img, format)
	if err != nil {
		return Logo{}, fmt.Errorf("encoding logo: %w", err)
	}

	logo.Data = out
	logo.MimeType = "image/" + outFormat
	if outFormat != format {
		logo.Filename = strings.TrimSuffix(filename, filepath.Ext(filename)) + "." + outFormat
	}
	return logo, nil
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("decoding logo: invalid size %dx%d", width, height)
	}
	if width > MaxDimension || height > MaxDimension || width*height > MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, width, height)
	}
	return nil
}

// rasterFormat maps a sniffed MIME type to a format we can decode.
// TIFF is deliberately absent (CVE-2023-36308 in disintegration/imaging).
func rasterFormat(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return ""
	}
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation undoes the camera rotation recorded in EXIF:
// 2 flip H, 3 rotate 180, 4 flip V, 5 transpose, 6 rotate 90 CW,
// 7 transverse, 8 rotate 90 CCW.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage re-encodes img. WebP has no pure Go encoder, so it becomes PNG
// to keep transparency.
func encodeImage(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "jpeg":
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90))
	case "gif":
		err = imaging.Encode(&buf, img, imaging.GIF)
	default:
		format = "png"
		err = imaging.Encode(&buf, img, imaging.PNG)
	}
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), format, nil
}
