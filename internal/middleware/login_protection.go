// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/olegiv/webgen-go/internal/i18n"
)

// LoginRealm names an account namespace. Builder accounts are keyed by
// username and CMS accounts by email, so their failure counters never mix.
type LoginRealm string

const (
	RealmBuilder LoginRealm = "builder"
	RealmCMS     LoginRealm = "cms"
)

// maxLockout caps the doubling lockout.
const maxLockout = 24 * time.Hour

// LoginProtection throttles login POSTs per client IP and locks an account
// after repeated bad passwords. Each further lockout of the same account
// lasts twice as long as the previous one.
type LoginProtection struct {
	ipLimiters *limiterCache[string]

	mu      sync.Mutex
	strikes map[string]*strikeRecord

	maxFailures int
	baseLockout time.Duration
	window      time.Duration
}

type strikeRecord struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
	lockouts    int
}

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is login POSTs per second per IP.
	IPRateLimit float64
	IPBurst     int
	// MaxFailedAttempts within AttemptWindow locks the account.
	MaxFailedAttempts int
	// LockoutDuration is the first lockout; later ones double it.
	LockoutDuration time.Duration
	AttemptWindow   time.Duration
}

// DefaultLoginProtectionConfig allows a burst of five logins per IP, then
// one every two seconds, and locks an account for 15 minutes after five
// bad passwords within 15 minutes.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection fills zero config fields from the defaults and starts
// the background sweep of stale entries.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	lp := &LoginProtection{
		ipLimiters:  newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		strikes:     make(map[string]*strikeRecord),
		maxFailures: cfg.MaxFailedAttempts,
		baseLockout: cfg.LockoutDuration,
		window:      cfg.AttemptWindow,
	}
	go lp.sweepLoop()
	return lp
}

// AllowIP spends one token from the client's login budget.
func (lp *LoginProtection) AllowIP(r *http.Request) bool {
	return lp.ipLimiters.get(getClientIP(r)).Allow()
}

// IsAccountLocked reports whether the account is locked and for how long.
func (lp *LoginProtection) IsAccountLocked(realm LoginRealm, account string) (bool, time.Duration) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	rec, ok := lp.strikes[strikeKey(realm, account)]
	if !ok {
		return false, 0
	}
	if left := time.Until(rec.lockedUntil); left > 0 {
		return true, left
	}
	return false, 0
}

// RecordFailedAttempt counts a bad password. When the count reaches the
// limit the account is locked and the lock duration is returned.
func (lp *LoginProtection) RecordFailedAttempt(realm LoginRealm, account string) (bool, time.Duration) {
	key := strikeKey(realm, account)
	now := time.Now()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	rec, ok := lp.strikes[key]
	if !ok {
		rec = &strikeRecord{windowStart: now}
		lp.strikes[key] = rec
	}
	if now.Sub(rec.windowStart) > lp.window {
		rec.failures = 0
		rec.windowStart = now
	}
	rec.failures++
	slog.Debug("failed login counted", "category", "auth", "account", key, "failures", rec.failures)

	if rec.failures < lp.maxFailures {
		return false, 0
	}

	d := lockoutFor(lp.baseLockout, rec.lockouts)
	rec.lockedUntil = now.Add(d)
	rec.lockouts++
	rec.failures = 0
	slog.Warn("account locked", "category", "auth", "account", key, "lockouts", rec.lockouts, "duration", d)
	return true, d
}

// RecordSuccessfulLogin forgets the account's failures and lockout history.
func (lp *LoginProtection) RecordSuccessfulLogin(realm LoginRealm, account string) {
	lp.mu.Lock()
	delete(lp.strikes, strikeKey(realm, account))
	lp.mu.Unlock()
}

// RemainingAttempts returns how many bad passwords are left before a lockout.
func (lp *LoginProtection) RemainingAttempts(realm LoginRealm, account string) int {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	rec, ok := lp.strikes[strikeKey(realm, account)]
	if !ok || time.Since(rec.windowStart) > lp.window {
		return lp.maxFailures
	}
	return max(lp.maxFailures-rec.failures, 0)
}

func (lp *LoginProtection) sweepLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		lp.sweep(time.Now())
	}
}

// sweep drops records whose lock and counting window have both passed.
func (lp *LoginProtection) sweep(now time.Time) {
	if lp.ipLimiters.clearIfExceeds(10000) {
		slog.Info("cleared login IP limiters due to size")
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()
	for key, rec := range lp.strikes {
		if now.After(rec.lockedUntil) && now.Sub(rec.windowStart) > lp.window {
			delete(lp.strikes, key)
		}
	}
}

// Middleware applies the per-IP budget to POST requests.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && !lp.AllowIP(r) {
				slog.Warn("login rate limit exceeded", "category", "auth", "ip", getClientIP(r))
				http.Error(w, i18n.T(GetLang(r), "auth.rate_limit"), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// lockoutFor doubles base once per earlier lockout, up to maxLockout.
func lockoutFor(base time.Duration, lockouts int) time.Duration {
	d := base
	for range lockouts {
		d *= 2
		if d >= maxLockout {
			return maxLockout
		}
	}
	return d
}

// strikeKey folds case so "Alice" and "alice" share a counter the way
// they share an account.
func strikeKey(realm LoginRealm, account string) string {
	return string(realm) + ":" + strings.ToLower(strings.TrimSpace(account))
}
