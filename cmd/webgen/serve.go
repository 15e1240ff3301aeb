// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/webgen-go/internal/cms"
	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/handler"
	"github.com/olegiv/webgen-go/internal/i18n"
	"github.com/olegiv/webgen-go/internal/imaging"
	"github.com/olegiv/webgen-go/internal/middleware"
	"github.com/olegiv/webgen-go/internal/registry"
	"github.com/olegiv/webgen-go/internal/render"
	"github.com/olegiv/webgen-go/internal/scheduler"
	"github.com/olegiv/webgen-go/internal/service"
	"github.com/olegiv/webgen-go/internal/session"
	"github.com/olegiv/webgen-go/internal/sitegen"
	"github.com/olegiv/webgen-go/web"
)

// UI assets are cached for a day. Generated pages always revalidate while
// their uploaded assets are cached for an hour.
const (
	staticMaxAge    = 86400
	siteAssetMaxAge = 3600
)

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	versionInfo := buildInfo()

	// Initialize i18n system for UI localization
	if err := i18n.Init(logger); err != nil {
		return fmt.Errorf("initializing i18n: %w", err)
	}
	slog.Info("i18n system initialized", "languages", i18n.SupportedLanguages)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Session storage
	backend, err := session.Open(ctx, cfg.SessionStore, cfg.SessionDBPath, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			slog.Error("error closing session store", "error", err)
		}
	}()
	sessionManager := session.New(backend.Store, cfg.IsDevelopment())
	middleware.SetSessionManager(sessionManager)
	slog.Info("session manager initialized", "store", backend.Kind)

	// Template renderer
	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
		IsDev:          cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	// Stores
	opts := storeOptions(cfg, logger)
	users := credential.NewStore(cfg.UsersFile, opts)
	sitesRegistry, err := registry.NewDisk(cfg.SitesDir, logger)
	if err != nil {
		return fmt.Errorf("opening sites directory: %w", err)
	}

	cmsService := cms.NewService(cms.NewRepository(cfg.CMSFile, opts), logger)
	if err := cmsService.Init(ctx); err != nil {
		return fmt.Errorf("initializing cms: %w", err)
	}

	// Site generation
	catalog, err := sitegen.NewCatalog()
	if err != nil {
		return fmt.Errorf("loading templates catalog: %w", err)
	}
	generator := sitegen.NewGenerator(catalog, sitesRegistry, users, imaging.NewProcessor(cfg.LogoMaxHeight), logger)
	sites := service.NewSites(users, sitesRegistry, logger)

	// Ownership reconciler
	schedule := cfg.ReconcileSchedule
	if !cfg.ReconcileEnabled() {
		schedule = ""
	}
	sched := scheduler.New(schedule, sites, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()
	sched.RunOnce(ctx)

	// Handlers
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	authHandler := handler.NewAuthHandler(users, renderer, sessionManager, loginProtection)
	builderHandler := handler.NewBuilderHandler(generator, sites, renderer, sessionManager, cfg.MaxUploadBytes())
	accountHandler := handler.NewAccountHandler(sites, renderer, sessionManager)
	adminHandler := handler.NewAdminHandler(users, sites, renderer, sessionManager)
	cmsHandler := handler.NewCMSHandler(cmsService, renderer, sessionManager, loginProtection)
	healthHandler := handler.NewHealthHandler(cfg.DataDir, sitesRegistry.Root(), versionInfo)
	sitesHandler := handler.NewSitesHandler(sitesRegistry.Root())

	// Generating a site renders templates and may resize a logo.
	generateLimiter := middleware.NewRateLimiter(1, 5)
	// Registration is limited separately from login.
	registerLimiter := middleware.NewRateLimiter(0.2, 3)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.StripTrailingSlash("/sites/", "/static/"))
	r.Use(middleware.RequestPath)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	// Static files and generated sites carry no session.
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}
	r.With(middleware.StaticCache(staticMaxAge)).
		Handle(handler.RouteStatic, http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.With(middleware.SiteCache(registry.AssetsDir, siteAssetMaxAge)).
		Get(handler.RouteSites, sitesHandler.ServeHTTP)

	csrfMiddleware := middleware.CSRF(middleware.DefaultCSRFConfig(
		[]byte(cfg.SessionSecret)[:32],
		cfg.IsDevelopment(),
		cfg.ServerAddr(),
		cfg.TrustedOrigins...,
	))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(csrfMiddleware)
		r.Use(sessionManager.LoadAndSave)
		r.Use(middleware.LoadActor(sessionManager, users))

		r.Get(handler.RouteHealth, healthHandler.Health)
		r.Get(handler.RouteLanguage, authHandler.SetLanguage)

		// Builder
		r.Get(handler.RouteRoot, builderHandler.Show)
		r.With(middleware.RequireLogin, generateLimiter.Middleware()).
			Post(handler.RouteRoot, builderHandler.Submit)

		// Accounts
		r.With(loginProtection.Middleware()).Post(handler.RouteLogin, authHandler.Login)
		r.With(registerLimiter.Middleware()).Post(handler.RouteRegister, authHandler.Register)
		r.Get(handler.RouteLogout, authHandler.Logout)
		r.Post(handler.RouteLogout, authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLogin)
			r.Get(handler.RouteDashboard, accountHandler.Dashboard)
			r.Get(handler.RouteEditor, accountHandler.Editor)
			r.Post(handler.RouteEditor, accountHandler.EditorAction)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get(handler.RouteAdmin, adminHandler.Show)
			r.Post(handler.RouteAdmin, adminHandler.Action)
		})

		// Page CMS, dispatched on ?route=
		r.Method(http.MethodGet, handler.RouteCMS, cmsHandler)
		r.Method(http.MethodPost, handler.RouteCMS, cmsHandler)
	})

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "sites", sitesRegistry.Root())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
