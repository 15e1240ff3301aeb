// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 31, G: 111, B: 235, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func TestProcess_SmallPNGUnchanged(t *testing.T) {
	data := pngBytes(t, 40, 20)
	logo, err := NewProcessor(100).Process("logo.png", data)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if logo.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", logo.MimeType)
	}
	if !bytes.Equal(logo.Data, data) {
		t.Error("small image should not be re-encoded")
	}
	if logo.Filename != "logo.png" {
		t.Errorf("Filename = %q", logo.Filename)
	}
}

func TestProcess_DownscalesTallImage(t *testing.T) {
	data := pngBytes(t, 200, 400)
	logo, err := NewProcessor(100).Process("big.png", data)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(logo.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if cfg.Height != 100 || cfg.Width != 50 {
		t.Errorf("result size = %dx%d, want 50x100", cfg.Width, cfg.Height)
	}
}

func TestProcess_RejectsNonImage(t *testing.T) {
	_, err := NewProcessor(0).Process("notes.txt", []byte("just some text, not an image"))
	if !errors.Is(err, ErrNotImage) {
		t.Fatalf("err = %v, want ErrNotImage", err)
	}
}

func TestProcess_SVGPassthrough(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`)
	logo, err := NewProcessor(0).Process("logo.svg", svg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if logo.MimeType != "image/svg+xml" {
		t.Errorf("MimeType = %q, want image/svg+xml", logo.MimeType)
	}
	if !bytes.Equal(logo.Data, svg) {
		t.Error("svg content changed")
	}
}

func TestApplyOrientation(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	tests := []struct {
		orientation int
		wantW       int
		wantH       int
	}{
		{1, 4, 2},
		{3, 4, 2},
		{6, 2, 4},
		{8, 2, 4},
		{99, 4, 2},
	}
	for _, tt := range tests {
		got := applyOrientation(img, tt.orientation)
		if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
			t.Errorf("orientation %d: got %dx%d, want %dx%d", tt.orientation,
				got.Bounds().Dx(), got.Bounds().Dy(), tt.wantW, tt.wantH)
		}
	}
}

// withPNGSize rewrites the IHDR dimensions of an encoded PNG without
// touching the pixel data, keeping the chunk checksum valid.
func withPNGSize(data []byte, w, h uint32) []byte {
	out := bytes.Clone(data)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestProcess_RejectsOversizedHeader(t *testing.T) {
	small := pngBytes(t, 4, 4)

	tests := []struct {
		name string
		w, h uint32
	}{
		{"huge square", 30000, 30000},
		{"too wide", MaxDimension + 1, 1},
		{"too many pixels", 6000, 6000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProcessor(100).Process("bomb.png", withPNGSize(small, tt.w, tt.h))
			if !errors.Is(err, ErrTooLarge) {
				t.Errorf("Process error = %v, want ErrTooLarge", err)
			}
		})
	}
}

func TestCheckDimensions(t *testing.T) {
	tests := []struct {
		w, h    int
		wantErr bool
	}{
		{240, 240, false},
		{MaxDimension, 3000, false},
		{MaxDimension, MaxDimension, true},
		{0, 10, true},
	}
	for _, tt := range tests {
		if err := checkDimensions(tt.w, tt.h); (err != nil) != tt.wantErr {
			t.Errorf("checkDimensions(%d, %d) = %v, wantErr %v", tt.w, tt.h, err, tt.wantErr)
		}
	}
}
