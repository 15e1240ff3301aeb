// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sitegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/imaging"
	"github.com/olegiv/webgen-go/internal/registry"
	"github.com/olegiv/webgen-go/internal/util"
)

// Result messages.
const (
	PreviewMessage = `Preview updated. Use "Generate Site" to write files.`
	generatedFmt   = "Generated site at ./%s/"
)

// ErrNotOwner is returned when a user tries to overwrite another user's site.
var ErrNotOwner = errors.New("site belongs to another user")

// Owners records which user owns which slug.
type Owners interface {
	Find(ctx context.Context, username string) (credential.User, error)
	OwnerOf(ctx context.Context, slug string) (string, error)
	AddOwnedSlug(ctx context.Context, username, slug string) error
}

// Upload is a file posted with the builder form.
type Upload struct {
	Filename string
	Data     []byte
}

// Request is one builder form submission.
type Request struct {
	Slug       string
	Branding   Branding
	Template   string
	Fields     map[string]string
	Buttons    []Button
	Social     []SocialLink
	Logo       *Upload
	LogoURL    string
	FaviconURL string
}

// Result is the rendered document and a message for the user.
type Result struct {
	Slug    string
	HTML    string
	Message string
}

// Generator renders builder requests and publishes them as sites.
type Generator struct {
	catalog *Catalog
	sites   registry.Registry
	owners  Owners
	logos   *imaging.Processor
	logger  *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(catalog *Catalog, sites registry.Registry, owners Owners, logos *imaging.Processor, logger *slog.Logger) *Generator {
	if logos == nil {
		logos = imaging.NewProcessor(imaging.DefaultMaxHeight)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{catalog: catalog, sites: sites, owners: owners, logos: logos, logger: logger}
}

// Catalog returns the template catalog used for rendering.
func (g *Generator) Catalog() *Catalog {
	return g.catalog
}

// SlugFor returns the slug a request will be published under. A blank or
// unusable slug yields util.DefaultSlug.
func SlugFor(req Request) string {
	return util.Slugify(req.Slug)
}

// Preview renders the document without touching disk. An uploaded logo is
// embedded as a data URI.
func (g *Generator) Preview(_ context.Context, req Request) (Result, error) {
	inst, err := g.catalog.Instance(req.Template, req.Fields)
	if err != nil {
		return Result{}, err
	}

	doc := g.document(req, inst)
	if req.Logo != nil {
		logo, err := g.processLogo(req.Logo)
		if err != nil {
			return Result{}, err
		}
		doc.LogoData = template.URL("data:" + logo.MimeType + ";base64," + base64.StdEncoding.EncodeToString(logo.Data))
	}

	html, err := g.catalog.RenderDocument(doc)
	if err != nil {
		return Result{}, err
	}
	return Result{Slug: SlugFor(req), HTML: html, Message: PreviewMessage}, nil
}

// Generate renders the document and writes it as the entry page of the
// request's slug, recording actor as owner if the slug is unclaimed.
// A slug owned by someone else may only be regenerated by an admin, and
// keeps its owner. The actor's account is re-read first: a deleted account
// gets credential.ErrNotFound and the role on record decides.
func (g *Generator) Generate(ctx context.Context, actor credential.Profile, req Request) (Result, error) {
	inst, err := g.catalog.Instance(req.Template, req.Fields)
	if err != nil {
		return Result{}, err
	}

	user, err := g.owners.Find(ctx, actor.Username)
	if err != nil {
		return Result{}, fmt.Errorf("looking up %s: %w", actor.Username, err)
	}
	actor = user.Profile()

	var logo *imaging.Logo
	if req.Logo != nil {
		l, err := g.processLogo(req.Logo)
		if err != nil {
			return Result{}, err
		}
		logo = &l
	}

	slug := SlugFor(req)
	owner, err := g.owners.OwnerOf(ctx, slug)
	if err != nil {
		return Result{}, fmt.Errorf("looking up owner of %s: %w", slug, err)
	}
	if owner != "" && !strings.EqualFold(owner, actor.Username) && !actor.IsAdmin() {
		g.logger.Warn("site overwrite refused", "slug", slug, "actor", actor.Username, "owner", owner)
		return Result{}, ErrNotOwner
	}

	existed, err := g.sites.Exists(ctx, slug)
	if err != nil {
		return Result{}, err
	}
	if err := g.sites.Create(ctx, slug); err != nil {
		return Result{}, fmt.Errorf("creating site %s: %w", slug, err)
	}

	doc := g.document(req, inst)
	if logo != nil {
		url, err := g.sites.SaveAsset(ctx, slug, logo.Filename, logo.Data)
		if err != nil {
			return Result{}, fmt.Errorf("saving logo: %w", err)
		}
		doc.LogoURL = url
	}

	html, err := g.catalog.RenderDocument(doc)
	if err != nil {
		return Result{}, err
	}
	if err := g.sites.WriteEntry(ctx, slug, []byte(html)); err != nil {
		return Result{}, fmt.Errorf("writing site %s: %w", slug, err)
	}

	if owner == "" {
		if err := g.owners.AddOwnedSlug(ctx, actor.Username, slug); err != nil {
			// The account vanished mid-request; drop the site it would have owned.
			if !existed {
				if delErr := g.sites.Delete(ctx, slug); delErr != nil {
					g.logger.Error("failed to remove unowned site", "slug", slug, "error", delErr)
				}
			}
			return Result{}, fmt.Errorf("recording owner of %s: %w", slug, err)
		}
	}

	g.logger.Info("site generated", "slug", slug, "template", inst.Template.Key, "actor", actor.Username)
	return Result{Slug: slug, HTML: html, Message: fmt.Sprintf(generatedFmt, slug)}, nil
}

func (g *Generator) document(req Request, inst Instance) Document {
	return Document{
		Branding:   req.Branding,
		Content:    inst,
		Buttons:    req.Buttons,
		Social:     req.Social,
		LogoURL:    req.LogoURL,
		FaviconURL: req.FaviconURL,
	}
}

func (g *Generator) processLogo(up *Upload) (imaging.Logo, error) {
	logo, err := g.logos.Process(up.Filename, up.Data)
	if err != nil {
		if errors.Is(err, imaging.ErrNotImage) {
			return imaging.Logo{}, &FieldError{Field: "logo_file", Err: imaging.ErrNotImage}
		}
		if errors.Is(err, imaging.ErrTooLarge) {
			return imaging.Logo{}, &FieldError{Field: "logo_file", Err: imaging.ErrTooLarge}
		}
		return imaging.Logo{}, fmt.Errorf("processing logo: %w", err)
	}
	return logo, nil
}
