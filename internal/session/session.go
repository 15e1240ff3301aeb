// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session builds the scs session manager and its storage backend.
package session

import (
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/redis/go-redis/v9"

	"github.com/olegiv/webgen-go/internal/config"
	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/store"
)

// Cookie names. The __Host- prefix requires Secure and Path=/.
const (
	CookieName       = "webgen_session"
	SecureCookieName = "__Host-webgen_session"
)

// RedisPrefix namespaces session keys in a shared Redis.
const RedisPrefix = "webgen:session:"

const redisConnectTimeout = 5 * time.Second

func init() {
	// The signed-in profile is stored in the session.
	gob.Register(credential.Profile{})
}

// New creates a session manager on top of the given store.
func New(st scs.Store, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = st

	// Configure session
	sm.Lifetime = 24 * time.Hour
	sm.IdleTimeout = 2 * time.Hour
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev // Secure cookies in production only
	if !isDev {
		sm.Cookie.Name = SecureCookieName
	}

	return sm
}

// Backend is an opened session store plus the resources behind it.
type Backend struct {
	Kind  string
	Store scs.Store

	db    *sql.DB
	redis *redis.Client
	stop  func()
}

// Open creates the backend named by kind (see config.SessionStore*).
func Open(ctx context.Context, kind, dbPath, redisURL string) (*Backend, error) {
	switch kind {
	case "", config.SessionStoreMemory:
		ms := memstore.New()
		return &Backend{Kind: config.SessionStoreMemory, Store: ms, stop: ms.StopCleanup}, nil

	case config.SessionStoreSQLite:
		db, err := store.Open(ctx, dbPath, nil)
		if err != nil {
			return nil, err
		}
		ss := sqlite3store.New(db)
		return &Backend{Kind: kind, Store: ss, db: db, stop: ss.StopCleanup}, nil

	case config.SessionStoreRedis:
		if redisURL == "" {
			return nil, errors.New("redis URL is required")
		}
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		opts.DialTimeout = redisConnectTimeout
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return &Backend{Kind: kind, Store: goredisstore.NewWithPrefix(client, RedisPrefix), redis: client}, nil

	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}

// Close stops background cleanup and releases connections.
func (b *Backend) Close() error {
	if b.stop != nil {
		b.stop()
	}
	var errs []error
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	return errors.Join(errs...)
}
