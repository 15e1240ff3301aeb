package util

import (
	"regexp"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "Alice Portfolio", "alice-portfolio"},
		{"already a slug", "alice-portfolio", "alice-portfolio"},
		{"special characters", "Hello, World!", "hello-world"},
		{"numbers kept", "Shop 24", "shop-24"},
		{"accents transliterated", "Café Zürich", "cafe-zurich"},
		{"inner hyphens kept", "a--b", "a--b"},
		{"leading and trailing trimmed", "  -Hello-  ", "hello"},
		{"traversal dots", "../../etc", "etc"},
		{"only dots", "..", DefaultSlug},
		{"only symbols", "!@#$%^&*()", DefaultSlug},
		{"empty", "", DefaultSlug},
		{"slashes", "a/b\\c", "a-b-c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSlugify_AlwaysSafe(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9-]+$`)
	inputs := []string{
		"", " ", ".", "..", "/", "\\", "a/../b", "Ünïcödé", "日本語のサイト",
		"<script>", "tab\tname", "-", "---", "CON", "a b c", "%2e%2e",
	}

	for _, in := range inputs {
		got := Slugify(in)
		if !valid.MatchString(got) {
			t.Errorf("Slugify(%q) = %q does not match slug pattern", in, got)
		}
		if got == "." || got == ".." || strings.Contains(got, "/") {
			t.Errorf("Slugify(%q) = %q is a traversal segment", in, got)
		}
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"alice", true},
		{"bob-page-2", true},
		{"", false},
		{"-lead", false},
		{"trail-", false},
		{"Upper", false},
		{"with space", false},
		{"..", false},
	}
	for _, tt := range tests {
		if got := IsValidSlug(tt.input); got != tt.want {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
