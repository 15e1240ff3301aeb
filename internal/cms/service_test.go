package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/olegiv/webgen-go/internal/auth"
	"github.com/olegiv/webgen-go/internal/docstore"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(filepath.Join(t.TempDir(), "data", "webgen.json"), docstore.Options{})
	return NewService(repo, nil), repo
}

func seedAdmin(t *testing.T, s *Service) User {
	t.Helper()
	admin, err := s.Authenticate(context.Background(), SeedAdminEmail, SeedAdminPassword)
	require.NoError(t, err)
	return admin
}

func mustCreateUser(t *testing.T, s *Service, name string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), UserInput{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "secret-" + name,
	})
	require.NoError(t, err)
	return u
}

func fieldErrors(t *testing.T, err error) FieldErrors {
	t.Helper()
	var fe FieldErrors
	require.True(t, errors.As(err, &fe), "expected FieldErrors, got %v", err)
	return fe
}

func TestLoad_BootstrapsMissingDocument(t *testing.T) {
	_, repo := newTestService(t)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, doc.Users, 1)
	assert.Equal(t, SeedAdminEmail, doc.Users[0].Email)
	assert.Equal(t, RoleAdmin, doc.Users[0].Role)
	assert.NotEqual(t, SeedAdminPassword, doc.Users[0].PasswordHash)
	assert.Equal(t, 2, doc.NextUserID)
	assert.Equal(t, 1, doc.NextPageID)
	assert.Equal(t, 1, doc.NextFooterLinkID)
	assert.NotNil(t, doc.Pages)
	require.NotNil(t, doc.FooterSettings)
	assert.Equal(t, fmt.Sprintf("© %d Webgen", time.Now().UTC().Year()), doc.FooterSettings.Text)

	_, err = os.Stat(repo.Path())
	assert.NoError(t, err, "bootstrap must persist the document")
}

func TestLoad_RepairsCountersAndKeys(t *testing.T) {
	_, repo := newTestService(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(repo.Path()), 0o755))
	raw := `{
    "users": [{"id": 7, "email": "a@example.com", "name": "A", "password_hash": "x", "role": "admin"}],
    "next_user_id": 3,
    "footer_links": [{"id": 4, "label": "L", "url": "/", "position": 0}]
}`
	require.NoError(t, os.WriteFile(repo.Path(), []byte(raw), 0o644))

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, doc.Users, 1, "existing users must not be reseeded")
	assert.Equal(t, 8, doc.NextUserID)
	assert.Equal(t, 5, doc.NextFooterLinkID)
	assert.Equal(t, 1, doc.NextPageID)
	assert.NotNil(t, doc.Pages)
	assert.NotNil(t, doc.FooterSettings)

	data, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &stored))
	for _, key := range []string{"users", "next_user_id", "pages", "next_page_id", "footer_settings", "footer_links", "next_footer_link_id"} {
		assert.Contains(t, stored, key)
	}
}

func TestAuthenticate(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	u, err := s.Authenticate(ctx, "  ADMIN@Example.com ", SeedAdminPassword)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())

	_, err = s.Authenticate(ctx, SeedAdminEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, "nobody@example.com", SeedAdminPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_UpgradesLegacyHash(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))

	legacy, err := bcrypt.GenerateFromPassword([]byte(SeedAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, func(doc *Document) error {
		doc.Users[0].PasswordHash = string(legacy)
		return nil
	}))

	_, err = s.Authenticate(ctx, SeedAdminEmail, SeedAdminPassword)
	require.NoError(t, err)

	doc, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, auth.IsLegacyHash(doc.Users[0].PasswordHash))

	_, err = s.Authenticate(ctx, SeedAdminEmail, SeedAdminPassword)
	assert.NoError(t, err)
}

func TestPages_VisibilityAndOwnership(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)
	alice := mustCreateUser(t, s, "Alice")
	bob := mustCreateUser(t, s, "Bob")

	first, err := s.CreatePage(ctx, alice, PageInput{Title: "First", Content: "one"})
	require.NoError(t, err)
	second, err := s.CreatePage(ctx, alice, PageInput{Title: "Second", Content: "two"})
	require.NoError(t, err)
	_, err = s.CreatePage(ctx, bob, PageInput{Title: "Bob's", Content: "three"})
	require.NoError(t, err)

	alicePages, err := s.ListPages(ctx, alice)
	require.NoError(t, err)
	require.Len(t, alicePages, 2)
	assert.Equal(t, second.ID, alicePages[0].ID, "newest first")
	assert.Equal(t, "Alice", alicePages[0].OwnerName)

	adminPages, err := s.ListPages(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, adminPages, 3)

	_, err = s.GetPage(ctx, bob, first.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = s.UpdatePage(ctx, bob, first.ID, PageInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, s.DeletePage(ctx, bob, first.ID), ErrForbidden)

	_, err = s.GetPage(ctx, alice, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := s.UpdatePage(ctx, admin, first.ID, PageInput{Title: " Renamed ", Content: "new"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, alice.ID, updated.OwnerID, "admin edits keep the owner")

	require.NoError(t, s.DeletePage(ctx, alice, first.ID))
	_, err = s.GetPage(ctx, alice, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePage_Validation(t *testing.T) {
	s, _ := newTestService(t)
	admin := seedAdmin(t, s)

	_, err := s.CreatePage(context.Background(), admin, PageInput{Title: "  ", Content: ""})
	fe := fieldErrors(t, err)
	assert.Equal(t, "cms.title_content_required", fe["title"])
	assert.Equal(t, "cms.title_content_required", fe["content"])
	assert.Equal(t, []string{"cms.title_content_required"}, fe.Keys())
}

func TestListPages_UnknownOwner(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)

	require.NoError(t, repo.Update(ctx, func(doc *Document) error {
		doc.Pages = append(doc.Pages, Page{ID: doc.allocPageID(), Title: "Orphan", Content: "c", OwnerID: 42})
		return nil
	}))

	pages, err := s.ListPages(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Unknown", pages[0].OwnerName)
}

func TestUsers_CreateAndUpdate(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, UserInput{Name: "Carol"})
	fe := fieldErrors(t, err)
	assert.Contains(t, fe, "email")
	assert.Contains(t, fe, "password")
	assert.NotContains(t, fe, "name")

	carol, err := s.CreateUser(ctx, UserInput{Name: "Carol", Email: " Carol@Example.COM ", Password: "pw", Role: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", carol.Email)
	assert.Equal(t, RoleUser, carol.Role)

	_, err = s.CreateUser(ctx, UserInput{Name: "Other", Email: "CAROL@example.com", Password: "pw"})
	assert.Equal(t, "cms.email_exists", fieldErrors(t, err)["email"])

	_, err = s.UpdateUser(ctx, carol.ID, UserInput{Name: "Carol", Email: SeedAdminEmail})
	assert.Equal(t, "cms.email_exists", fieldErrors(t, err)["email"])

	updated, err := s.UpdateUser(ctx, carol.ID, UserInput{Name: "Caroline", Email: "carol@example.com", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "Caroline", updated.Name)
	assert.True(t, updated.IsAdmin())

	_, err = s.Authenticate(ctx, "carol@example.com", "pw")
	assert.NoError(t, err, "empty password on update keeps the old one")

	_, err = s.UpdateUser(ctx, 999, UserInput{Name: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, carol.ID, users[0].ID, "newest first")
}

func TestUpdateUser_KeepsLastAdmin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)

	_, err := s.UpdateUser(ctx, admin.ID, UserInput{Name: admin.Name, Email: admin.Email, Role: RoleUser})
	assert.Equal(t, "cms.last_admin", fieldErrors(t, err)["role"])

	second, err := s.CreateUser(ctx, UserInput{Name: "Dana", Email: "dana@example.com", Password: "pw", Role: RoleAdmin})
	require.NoError(t, err)
	demoted, err := s.UpdateUser(ctx, admin.ID, UserInput{Name: admin.Name, Email: admin.Email, Role: RoleUser})
	require.NoError(t, err, "demotion is fine while another admin remains")
	assert.False(t, demoted.IsAdmin())

	_, err = s.UpdateUser(ctx, second.ID, UserInput{Name: "Dana", Email: "dana@example.com", Role: RoleUser})
	assert.Equal(t, "cms.last_admin", fieldErrors(t, err)["role"])
}

func TestLoad_SeedsAdminWhenNoneExists(t *testing.T) {
	tests := []struct {
		name      string
		users     string
		wantUsers int
		wantSeed  bool
	}{
		{"only regular users", `[{"id": 1, "email": "u@example.com", "name": "U", "password_hash": "x", "role": "user"}]`, 2, true},
		{"bootstrap email taken", `[{"id": 1, "email": "admin@example.com", "name": "U", "password_hash": "x", "role": "user"}]`, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, repo := newTestService(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(repo.Path()), 0o755))
			require.NoError(t, os.WriteFile(repo.Path(), []byte(`{"users": `+tt.users+`}`), 0o644))

			doc, err := repo.Load(context.Background())
			require.NoError(t, err)
			require.Len(t, doc.Users, tt.wantUsers)
			assert.Equal(t, tt.wantSeed, doc.adminCount() == 1)
		})
	}
}

func TestResetPassword(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	dave := mustCreateUser(t, s, "Dave")

	used, err := s.ResetPassword(ctx, dave.ID, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultResetPassword, used)
	_, err = s.Authenticate(ctx, dave.Email, DefaultResetPassword)
	assert.NoError(t, err)

	used, err = s.ResetPassword(ctx, dave.ID, "fresh-one")
	require.NoError(t, err)
	assert.Equal(t, "fresh-one", used)

	_, err = s.ResetPassword(ctx, 999, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUser_CascadesPages(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)
	bob := mustCreateUser(t, s, "Bob")
	alice := mustCreateUser(t, s, "Alice")

	for i := range 3 {
		_, err := s.CreatePage(ctx, bob, PageInput{Title: fmt.Sprintf("Bob %d", i), Content: "c"})
		require.NoError(t, err)
	}
	kept, err := s.CreatePage(ctx, alice, PageInput{Title: "Alice", Content: "c"})
	require.NoError(t, err)

	_, err = s.DeleteUser(ctx, admin, admin.ID)
	assert.ErrorIs(t, err, ErrSelfDelete)

	removed, err := s.DeleteUser(ctx, admin, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	pages, err := s.ListPages(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, kept.ID, pages[0].ID)

	_, err = s.UserByID(ctx, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1, Users: 2, FooterLinks: 0}, stats)
}

func TestFooter(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateFooterText(ctx, "   "))
	f, err := s.Footer(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.RawText)
	assert.Equal(t, DefaultFooterText(time.Now().UTC()), f.Text)

	require.NoError(t, s.UpdateFooterText(ctx, "Custom footer"))
	f, err = s.Footer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Custom footer", f.Text)

	b, err := s.CreateFooterLink(ctx, LinkInput{Label: "B", URL: "/b", Position: "2"})
	require.NoError(t, err)
	a, err := s.CreateFooterLink(ctx, LinkInput{Label: "A", URL: "/a", Position: ""})
	require.NoError(t, err)
	c, err := s.CreateFooterLink(ctx, LinkInput{Label: "C", URL: "/c", Position: "2"})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Position)

	f, err = s.Footer(ctx)
	require.NoError(t, err)
	var order []int
	for _, l := range f.Links {
		order = append(order, l.ID)
	}
	assert.Equal(t, []int{a.ID, b.ID, c.ID}, order)

	_, err = s.CreateFooterLink(ctx, LinkInput{Label: "X", URL: "/x", Position: "first"})
	assert.Equal(t, "cms.position_number", fieldErrors(t, err)["position"])

	_, err = s.UpdateFooterLink(ctx, b.ID, LinkInput{Label: "", URL: ""})
	fe := fieldErrors(t, err)
	assert.Equal(t, []string{"cms.label_url_required"}, fe.Keys())

	moved, err := s.UpdateFooterLink(ctx, c.ID, LinkInput{Label: "C", URL: "/c", Position: "-1"})
	require.NoError(t, err)
	assert.Equal(t, -1, moved.Position)

	require.NoError(t, s.DeleteFooterLink(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteFooterLink(ctx, a.ID), ErrNotFound)
	_, err = s.GetFooterLink(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	f, err = s.Footer(ctx)
	require.NoError(t, err)
	require.Len(t, f.Links, 2)
	assert.Equal(t, c.ID, f.Links[0].ID)
}

func TestIDsAreNeverReused(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)

	p1, err := s.CreatePage(ctx, admin, PageInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	require.NoError(t, s.DeletePage(ctx, admin, p1.ID))
	p2, err := s.CreatePage(ctx, admin, PageInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Greater(t, p2.ID, p1.ID)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole(" Admin "))
	assert.Equal(t, RoleUser, ParseRole("user"))
	assert.Equal(t, RoleUser, ParseRole(""))
}

func TestRenderContent(t *testing.T) {
	out := string(RenderContent("Hello **world**\nsecond line\n\n<script>alert(1)</script>\n\n[x](javascript:alert(1))"))

	assert.Contains(t, out, "<strong>world</strong>")
	assert.Contains(t, out, "<br")
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
}
