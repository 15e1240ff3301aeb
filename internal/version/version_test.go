package version

import "testing"

func TestInfo(t *testing.T) {
	tests := []struct {
		name      string
		info      Info
		wantShort string
		wantLine  string
	}{
		{
			name:      "release build",
			info:      Info{Version: "v1.4.0", GitCommit: "abc1234", BuildTime: "2026-03-01T10:00:00Z"},
			wantShort: "v1.4.0",
			wantLine:  "webgen v1.4.0 (commit: abc1234, built: 2026-03-01T10:00:00Z)",
		},
		{
			name:      "local build",
			info:      Info{},
			wantShort: "dev",
			wantLine:  "webgen dev (commit: unknown, built: unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.wantShort {
				t.Errorf("Short() = %q, want %q", got, tt.wantShort)
			}
			if got := tt.info.String(); got != tt.wantLine {
				t.Errorf("String() = %q, want %q", got, tt.wantLine)
			}
		})
	}
}
