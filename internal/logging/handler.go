// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a custom slog handler that keeps an audit trail.
// It forwards logs at WARN level and above to an append-only JSON lines file.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Audit event categories.
const (
	CategoryAuth   = "auth"
	CategorySite   = "site"
	CategoryUser   = "user"
	CategoryPage   = "page"
	CategoryConfig = "config"
	CategorySystem = "system"
)

// Event is one line of the audit log.
type Event struct {
	ID       string            `json:"event_id"`
	Time     time.Time         `json:"time"`
	Level    string            `json:"level"`
	Category string            `json:"category"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type sink struct {
	mu sync.Mutex
	w  io.Writer
}

// AuditHandler is a slog.Handler that wraps another handler and also writes
// WARN and ERROR level logs to an audit sink.
type AuditHandler struct {
	inner slog.Handler
	sink  *sink
	attrs []slog.Attr
	level slog.Level // Minimum level to forward to the audit sink (default: WARN)
}

// NewAuditHandler creates a new AuditHandler that wraps the given handler.
// Logs at WARN level and above will be written to both the wrapped handler and w.
func NewAuditHandler(inner slog.Handler, w io.Writer) *AuditHandler {
	return NewAuditHandlerWithLevel(inner, w, slog.LevelWarn)
}

// NewAuditHandlerWithLevel creates a new AuditHandler with a custom minimum level.
func NewAuditHandlerWithLevel(inner slog.Handler, w io.Writer, level slog.Level) *AuditHandler {
	return &AuditHandler{
		inner: inner,
		sink:  &sink{w: w},
		level: level,
	}
}

// OpenAuditFile opens path for appending, creating parent directories.
func OpenAuditFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return f, nil
}

// Enabled implements slog.Handler.
func (h *AuditHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *AuditHandler) Handle(ctx context.Context, r slog.Record) error {
	// Always forward to the inner handler first
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.writeEvent(r)
	}

	return nil
}

// WithAttrs implements slog.Handler.
func (h *AuditHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AuditHandler{
		inner: h.inner.WithAttrs(attrs),
		sink:  h.sink,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
		level: h.level,
	}
}

// WithGroup implements slog.Handler.
func (h *AuditHandler) WithGroup(name string) slog.Handler {
	return &AuditHandler{
		inner: h.inner.WithGroup(name),
		sink:  h.sink,
		attrs: h.attrs,
		level: h.level,
	}
}

func (h *AuditHandler) writeEvent(r slog.Record) {
	event := Event{
		ID:       uuid.NewString(),
		Time:     r.Time.UTC(),
		Level:    r.Level.String(),
		Message:  r.Message,
		Metadata: map[string]string{},
	}

	collect := func(a slog.Attr) bool {
		if a.Key == "category" {
			event.Category = a.Value.String()
			return true
		}
		event.Metadata[a.Key] = a.Value.String()
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	if event.Category == "" {
		event.Category = inferCategory(r.Message)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	line = append(line, '\n')

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	_, _ = h.sink.w.Write(line)
}

// inferCategory guesses a category from the log message.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "login") || strings.Contains(msg, "logout") || strings.Contains(msg, "password"):
		return CategoryAuth
	case strings.Contains(msg, "site") || strings.Contains(msg, "slug"):
		return CategorySite
	case strings.Contains(msg, "page") || strings.Contains(msg, "footer"):
		return CategoryPage
	case strings.Contains(msg, "user"):
		return CategoryUser
	case strings.Contains(msg, "config") || strings.Contains(msg, "secret"):
		return CategoryConfig
	default:
		return CategorySystem
	}
}
