// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package credential manages builder accounts stored in a single JSON file:
// registration, authentication, roles and the list of site slugs each user
// owns. Usernames are matched case-insensitively and kept in the casing
// they were registered with.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/olegiv/webgen-go/internal/auth"
	"github.com/olegiv/webgen-go/internal/docstore"
)

// Role is a builder account role.
type Role string

// Roles.
const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// ParseRole maps free-form input to a Role. Anything that is not "Admin"
// (in any casing) becomes RoleUser.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Errors returned by Store.
var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	ErrUsernameTaken      = errors.New("username already exists")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSelfDelete         = errors.New("you cannot delete your own account")
)

// errUnchanged aborts an Update without writing.
var errUnchanged = errors.New("unchanged")

// User is a stored account. Password holds the hash, never plaintext.
type User struct {
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	Role       Role     `json:"role"`
	OwnedPages []string `json:"owned_pages"`
}

// Profile returns the account without its password hash.
func (u User) Profile() Profile {
	return Profile{
		Username:   u.Username,
		Role:       u.Role,
		OwnedPages: slices.Clone(u.OwnedPages),
	}
}

// Profile is the session-safe view of a User.
type Profile struct {
	Username   string
	Role       Role
	OwnedPages []string
}

// IsAdmin reports whether the profile has the Admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Owns reports whether slug is in the profile's owned pages.
func (p Profile) Owns(slug string) bool {
	return slices.Contains(p.OwnedPages, slug)
}

// Store is the credential store backed by a JSON array of users.
type Store struct {
	file   *docstore.File[[]User]
	logger *slog.Logger
}

// NewStore returns a Store for the user file at path.
func NewStore(path string, opts docstore.Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		file:   docstore.Open[[]User](path, opts),
		logger: logger,
	}
}

// Path returns the user file path.
func (s *Store) Path() string {
	return s.file.Path()
}

// List returns every stored user in file order.
func (s *Store) List(ctx context.Context) ([]User, error) {
	return s.file.Read(ctx)
}

// Find looks a user up by name, ignoring case and surrounding spaces.
func (s *Store) Find(ctx context.Context, username string) (User, error) {
	users, err := s.file.Read(ctx)
	if err != nil {
		return User{}, err
	}
	if i := indexOf(users, username); i >= 0 {
		return users[i], nil
	}
	return User{}, ErrNotFound
}

// Register creates a User-role account.
func (s *Store) Register(ctx context.Context, username, password string) (Profile, error) {
	return s.CreateUser(ctx, username, password, RoleUser)
}

// CreateUser creates an account with the given role.
func (s *Store) CreateUser(ctx context.Context, username, password string, role Role) (Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Profile{}, ErrUsernameRequired
	}
	if len(password) < auth.MinPasswordLength {
		return Profile{}, ErrPasswordTooShort
	}
	if role != RoleAdmin {
		role = RoleUser
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Profile{}, fmt.Errorf("hashing password: %w", err)
	}

	user := User{Username: username, Password: hash, Role: role, OwnedPages: []string{}}
	err = s.file.Update(ctx, func(users *[]User) error {
		if indexOf(*users, username) >= 0 {
			return ErrUsernameTaken
		}
		*users = append(*users, user)
		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	s.logger.Info("user created", "username", username, "role", role)
	return user.Profile(), nil
}

// Authenticate checks a username and password. Legacy or outdated hashes
// are upgraded in place after a successful check.
func (s *Store) Authenticate(ctx context.Context, username, password string) (Profile, error) {
	user, err := s.Find(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return Profile{}, ErrInvalidCredentials
	}
	if err != nil {
		return Profile{}, err
	}

	ok, err := auth.CheckPassword(password, user.Password)
	if err != nil {
		s.logger.Warn("unreadable password hash", "username", user.Username, "error", err)
		return Profile{}, ErrInvalidCredentials
	}
	if !ok {
		return Profile{}, ErrInvalidCredentials
	}

	if auth.NeedsRehash(user.Password) {
		if err := s.setPassword(ctx, user.Username, password); err != nil {
			s.logger.Error("failed to re-hash password", "username", user.Username, "error", err)
		} else {
			s.logger.Info("password re-hashed with current parameters", "username", user.Username)
		}
	}

	return user.Profile(), nil
}

// SetRole changes a user's role. Unknown roles are stored as RoleUser.
func (s *Store) SetRole(ctx context.Context, username string, role Role) (Profile, error) {
	if role != RoleAdmin {
		role = RoleUser
	}
	var updated User
	err := s.file.Update(ctx, func(users *[]User) error {
		i := indexOf(*users, username)
		if i < 0 {
			return ErrNotFound
		}
		(*users)[i].Role = role
		updated = (*users)[i]
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return updated.Profile(), nil
}

// ResetPassword replaces a user's password.
func (s *Store) ResetPassword(ctx context.Context, username, password string) error {
	if len(password) < auth.MinPasswordLength {
		return ErrPasswordTooShort
	}
	return s.setPassword(ctx, username, password)
}

func (s *Store) setPassword(ctx context.Context, username, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.file.Update(ctx, func(users *[]User) error {
		i := indexOf(*users, username)
		if i < 0 {
			return ErrNotFound
		}
		(*users)[i].Password = hash
		return nil
	})
}

// Delete removes a user and returns the removed record. The acting user
// cannot delete their own account.
func (s *Store) Delete(ctx context.Context, actor Profile, username string) (User, error) {
	if sameName(actor.Username, username) {
		return User{}, ErrSelfDelete
	}
	var removed User
	err := s.file.Update(ctx, func(users *[]User) error {
		i := indexOf(*users, username)
		if i < 0 {
			return ErrNotFound
		}
		removed = (*users)[i]
		*users = slices.Delete(*users, i, i+1)
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return removed, nil
}

// AddOwnedSlug records slug as owned by username. Adding a slug twice is a no-op.
func (s *Store) AddOwnedSlug(ctx context.Context, username, slug string) error {
	err := s.file.Update(ctx, func(users *[]User) error {
		i := indexOf(*users, username)
		if i < 0 {
			return ErrNotFound
		}
		if slices.Contains((*users)[i].OwnedPages, slug) {
			return errUnchanged
		}
		(*users)[i].OwnedPages = append((*users)[i].OwnedPages, slug)
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

// RemoveOwnedSlug removes slug from every user's owned pages and reports how
// many users referenced it.
func (s *Store) RemoveOwnedSlug(ctx context.Context, slug string) (int, error) {
	touched := 0
	err := s.file.Update(ctx, func(users *[]User) error {
		for i := range *users {
			before := len((*users)[i].OwnedPages)
			(*users)[i].OwnedPages = slices.DeleteFunc((*users)[i].OwnedPages, func(p string) bool {
				return p == slug
			})
			if len((*users)[i].OwnedPages) != before {
				touched++
			}
		}
		if touched == 0 {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return touched, nil
}

// OwnerOf returns the username that owns slug, or "" if nobody does.
func (s *Store) OwnerOf(ctx context.Context, slug string) (string, error) {
	users, err := s.file.Read(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if slices.Contains(u.OwnedPages, slug) {
			return u.Username, nil
		}
	}
	return "", nil
}

func indexOf(users []User, username string) int {
	for i, u := range users {
		if sameName(u.Username, username) {
			return i
		}
	}
	return -1
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
