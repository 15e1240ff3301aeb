package handler

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/webgen-go/internal/cms"
	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/docstore"
	"github.com/olegiv/webgen-go/internal/i18n"
	"github.com/olegiv/webgen-go/internal/imaging"
	"github.com/olegiv/webgen-go/internal/middleware"
	"github.com/olegiv/webgen-go/internal/registry"
	"github.com/olegiv/webgen-go/internal/render"
	"github.com/olegiv/webgen-go/internal/service"
	"github.com/olegiv/webgen-go/internal/session"
	"github.com/olegiv/webgen-go/internal/sitegen"
	"github.com/olegiv/webgen-go/internal/version"
	"github.com/olegiv/webgen-go/web"
)

// testApp is the full router over temporary stores.
type testApp struct {
	server   *httptest.Server
	users    *credential.Store
	sites    *registry.Disk
	cms      *cms.Service
	dataDir  string
	sitesDir string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	if err := i18n.Init(nil); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	sitesDir := filepath.Join(dir, "sites")

	sm := session.New(memstore.New(), true)
	middleware.SetSessionManager(sm)
	t.Cleanup(func() { middleware.SetSessionManager(nil) })

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	renderer, err := render.New(render.Config{TemplatesFS: templatesFS, SessionManager: sm, IsDev: true})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	users := credential.NewStore(filepath.Join(dataDir, "user.json"), docstore.Options{})
	reg, err := registry.NewDisk(sitesDir, nil)
	if err != nil {
		t.Fatalf("registry.NewDisk: %v", err)
	}
	cmsService := cms.NewService(cms.NewRepository(filepath.Join(dataDir, "webgen.json"), docstore.Options{}), nil)
	if err := cmsService.Init(context.Background()); err != nil {
		t.Fatalf("cms Init: %v", err)
	}
	catalog, err := sitegen.NewCatalog()
	if err != nil {
		t.Fatalf("sitegen.NewCatalog: %v", err)
	}
	generator := sitegen.NewGenerator(catalog, reg, users, imaging.NewProcessor(64), nil)
	sites := service.NewSites(users, reg, nil)

	lp := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	authHandler := NewAuthHandler(users, renderer, sm, lp)
	builderHandler := NewBuilderHandler(generator, sites, renderer, sm, 1<<20)
	accountHandler := NewAccountHandler(sites, renderer, sm)
	adminHandler := NewAdminHandler(users, sites, renderer, sm)
	cmsHandler := NewCMSHandler(cmsService, renderer, sm, lp)
	healthHandler := NewHealthHandler(dataDir, reg.Root(), version.Info{Version: "v1.2.3"})
	sitesHandler := NewSitesHandler(reg.Root())

	r := chi.NewRouter()
	r.Get(RouteSites, sitesHandler.ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(sm.LoadAndSave)
		r.Use(middleware.LoadActor(sm, users))

		r.Get(RouteHealth, healthHandler.Health)
		r.Get(RouteLanguage, authHandler.SetLanguage)
		r.Get(RouteRoot, builderHandler.Show)
		r.With(middleware.RequireLogin).Post(RouteRoot, builderHandler.Submit)
		r.Post(RouteLogin, authHandler.Login)
		r.Post(RouteRegister, authHandler.Register)
		r.Get(RouteLogout, authHandler.Logout)
		r.Post(RouteLogout, authHandler.Logout)

		r.With(middleware.RequireLogin).Get(RouteDashboard, accountHandler.Dashboard)
		r.With(middleware.RequireLogin).Get(RouteEditor, accountHandler.Editor)
		r.With(middleware.RequireLogin).Post(RouteEditor, accountHandler.EditorAction)
		r.With(middleware.RequireAdmin()).Get(RouteAdmin, adminHandler.Show)
		r.With(middleware.RequireAdmin()).Post(RouteAdmin, adminHandler.Action)

		r.Method(http.MethodGet, RouteCMS, cmsHandler)
		r.Method(http.MethodPost, RouteCMS, cmsHandler)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testApp{
		server:   srv,
		users:    users,
		sites:    reg,
		cms:      cmsService,
		dataDir:  dataDir,
		sitesDir: reg.Root(),
	}
}

// browser is a client with its own cookie jar that does not follow redirects.
type browser struct {
	t      *testing.T
	app    *testApp
	client *http.Client
}

func (a *testApp) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	return &browser{
		t:   t,
		app: a,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// response is a fully read reply.
type response struct {
	status   int
	location string
	header   http.Header
	body     string
}

func (b *browser) do(req *http.Request) response {
	b.t.Helper()
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("reading body: %v", err)
	}
	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		header:   resp.Header,
		body:     string(body),
	}
}

func (b *browser) get(path string) response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.app.server.URL+path, nil)
	if err != nil {
		b.t.Fatalf("NewRequest: %v", err)
	}
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.app.server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		b.t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set(HeaderContentType, "application/x-www-form-urlencoded")
	return b.do(req)
}

// register signs up a new builder account in this browser.
func (b *browser) register(username string) {
	b.t.Helper()
	resp := b.post(RouteRegister, url.Values{"username": {username}, "password": {"longenough1"}})
	if resp.status != http.StatusSeeOther || resp.location != RouteDashboard {
		b.t.Fatalf("register %s: status %d location %q", username, resp.status, resp.location)
	}
	b.get(resp.location) // consume the welcome flash
}

// login signs in an existing builder account.
func (b *browser) login(username, password string) {
	b.t.Helper()
	resp := b.post(RouteLogin, url.Values{"username": {username}, "password": {password}})
	if resp.status != http.StatusSeeOther || resp.location != RouteDashboard {
		b.t.Fatalf("login %s: status %d location %q", username, resp.status, resp.location)
	}
	b.get(resp.location)
}

// generate publishes an about page at slug.
func (b *browser) generate(slug, story string) response {
	b.t.Helper()
	return b.post(RouteRoot, url.Values{
		"action":      {actionGenerate},
		"slug":        {slug},
		"template":    {sitegen.TemplateAbout},
		"about_story": {story},
	})
}

// cmsLogin signs in to the CMS and follows nothing.
func (b *browser) cmsLogin(email, password string) response {
	b.t.Helper()
	return b.post(cmsURL(cmsRouteLogin, 0), url.Values{"email": {email}, "password": {password}})
}

func (a *testApp) createAdmin(t *testing.T, username string) {
	t.Helper()
	if _, err := a.users.CreateUser(context.Background(), username, "longenough1", credential.RoleAdmin); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
}
