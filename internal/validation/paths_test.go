package validation

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"plain", "report.pdf", ""},
		{"double dots inside", "data..v2.csv", ""},
		{"hidden", ".env", ""},
		{"unicode", "Émile.md", ""},
		{"empty", "", "empty"},
		{"parent", "..", "'..'"},
		{"unix separator", "../etc/passwd", "separators"},
		{"windows separator", `..\\win.ini`, "separators"},
		{"null byte", "a\x00b", "null byte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateFilename(%q) unexpected error: %v", tt.input, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateFilename(%q) = %v, want error containing %q", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathInDirectory(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		path    string
		baseDir string
		wantErr bool
	}{
		{"relative inside", "file.txt", base, false},
		{"nested inside", filepath.Join("a", "b.txt"), base, false},
		{"absolute inside", filepath.Join(base, "x.txt"), base, false},
		{"base itself", base, base, false},
		{"escape", filepath.Join("..", "..", "etc", "passwd"), base, true},
		{"absolute outside", filepath.Join(filepath.Dir(base), "other.txt"), base, true},
		{"dotdot prefix name", "..hidden", base, false},
		{"empty path", "", base, true},
		{"empty base", "file.txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tt.path, tt.baseDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathInDirectory(%q, %q) error = %v, wantErr %v", tt.path, tt.baseDir, err, tt.wantErr)
			}
		})
	}
}

func TestDownloadTarget(t *testing.T) {
	dir := t.TempDir()

	got, err := DownloadTarget(dir, "report.pdf")
	if err != nil {
		t.Fatalf("DownloadTarget() error = %v", err)
	}
	if got != filepath.Join(dir, "report.pdf") {
		t.Errorf("DownloadTarget() = %q", got)
	}

	for _, bad := range []string{"", "..", "../x", "a/b"} {
		if _, err := DownloadTarget(dir, bad); err == nil {
			t.Errorf("DownloadTarget(%q) should fail", bad)
		}
	}
}
