package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func readEvents(t *testing.T, buf *bytes.Buffer) []Event {
	t.Helper()
	var events []Event
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("invalid audit line %q: %v", sc.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestAuditHandler_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAuditHandler(discardHandler{}, &buf))

	logger.Error("failed to remove site", "slug", "demo", "attempt", 2)

	events := readEvents(t, &buf)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Level != "ERROR" {
		t.Errorf("Level = %q, want ERROR", e.Level)
	}
	if e.Category != CategorySite {
		t.Errorf("Category = %q, want %q", e.Category, CategorySite)
	}
	if e.Metadata["slug"] != "demo" || e.Metadata["attempt"] != "2" {
		t.Errorf("Metadata = %v", e.Metadata)
	}
	if len(e.ID) != 36 {
		t.Errorf("ID = %q, want a UUID", e.ID)
	}
}

func TestAuditHandler_BelowThresholdNotWritten(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAuditHandler(discardHandler{}, &buf))

	logger.Info("site generated", "slug", "demo")
	logger.Debug("noise")

	if buf.Len() != 0 {
		t.Errorf("unexpected audit output: %s", buf.String())
	}
}

func TestAuditHandler_ExplicitCategoryAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAuditHandlerWithLevel(discardHandler{}, &buf, slog.LevelInfo)).
		With("request_id", "abc")

	logger.Info("anything", "category", CategoryConfig)

	events := readEvents(t, &buf)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Category != CategoryConfig {
		t.Errorf("Category = %q", events[0].Category)
	}
	if events[0].Metadata["request_id"] != "abc" {
		t.Errorf("handler attrs missing: %v", events[0].Metadata)
	}
	if _, ok := events[0].Metadata["category"]; ok {
		t.Error("category should not be repeated in metadata")
	}
}

func TestAuditHandler_UniqueIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAuditHandler(discardHandler{}, &buf))

	logger.Warn("login failed")
	logger.Warn("login failed")

	events := readEvents(t, &buf)
	if len(events) != 2 || events[0].ID == events[1].ID {
		t.Errorf("events = %+v", events)
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"login failed", CategoryAuth},
		{"unreadable password hash", CategoryAuth},
		{"refused site delete outside sites directory", CategorySite},
		{"footer link saved", CategoryPage},
		{"user deleted", CategoryUser},
		{"WEBGEN_SESSION_SECRET not set", CategoryConfig},
		{"server shutting down", CategorySystem},
	}
	for _, tt := range tests {
		if got := inferCategory(tt.message); got != tt.want {
			t.Errorf("inferCategory(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestOpenAuditFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	f, err := OpenAuditFile(path)
	if err != nil {
		t.Fatalf("OpenAuditFile: %v", err)
	}
	logger := slog.New(NewAuditHandler(discardHandler{}, f))
	logger.Warn("user deleted", "username", "bob")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(data, []byte(`"username":"bob"`)) {
		t.Errorf("audit file = %s", data)
	}
}
