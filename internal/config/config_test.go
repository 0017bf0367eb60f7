package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.ServerURL != "http://localhost:50001" {
		t.Errorf("expected default ServerURL http://localhost:50001, got %s", cfg.ServerURL)
	}
	if cfg.SortBy != "name" || cfg.SortDirection != "asc" {
		t.Errorf("expected default sort name/asc, got %s/%s", cfg.SortBy, cfg.SortDirection)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected MaxRetries to default to 0, got %d", cfg.MaxRetries)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("expected default RequestTimeout 60s, got %v", cfg.RequestTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.ini")

	cfg := &Config{
		ServerURL:      "https://agent.example.com",
		Username:       "alice",
		Password:       "s3cret",
		RequestTimeout: 15 * time.Second,
		MaxRetries:     2,
		ProxyMode:      "basic",
		ProxyHost:      "proxy.example.com",
		ProxyPort:      3128,
		ProxyUser:      "puser",
		ProxyPassword:  "ppass",
		NoProxy:        "localhost,.internal",
		SortBy:         "size",
		SortDirection:  "desc",
		DownloadDir:    "/tmp/downloads",
		IncludeHidden:  true,
	}

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("expected permissions 0600, got %o", info.Mode().Perm())
	}
	if _, err := os.Stat(configPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after save")
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if *loaded != *cfg {
		t.Errorf("loaded config mismatch:\nwant %+v\ngot  %+v", *cfg, *loaded)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
	if *cfg != *NewConfig() {
		t.Errorf("expected defaults, got %+v", *cfg)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.ini")
	content := "[browser]\nsort_by = DATE\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.SortBy != "date" {
		t.Errorf("expected sort_by to be lower-cased to date, got %s", cfg.SortBy)
	}
	if cfg.ServerURL != "http://localhost:50001" {
		t.Errorf("expected default ServerURL, got %s", cfg.ServerURL)
	}
	if cfg.SortDirection != "asc" {
		t.Errorf("expected default sort direction, got %s", cfg.SortDirection)
	}
}

func TestMergeWithFlags_Priority(t *testing.T) {
	t.Setenv(EnvServerURL, "http://env-host:9000")
	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvPassword, "")

	cfg := NewConfig()
	cfg.Password = "file-pass"

	cfg.MergeWithFlags("", "flag-user", "")

	if cfg.ServerURL != "http://env-host:9000" {
		t.Errorf("expected env URL to override file, got %s", cfg.ServerURL)
	}
	if cfg.Username != "flag-user" {
		t.Errorf("expected flag to override env, got %s", cfg.Username)
	}
	if cfg.Password != "file-pass" {
		t.Errorf("expected file password to survive, got %s", cfg.Password)
	}
}

func TestMergeWithFlags_NormalizesURL(t *testing.T) {
	t.Setenv(EnvServerURL, "")

	tests := []struct {
		in   string
		want string
	}{
		{"localhost:8080/", "http://localhost:8080"},
		{" https://x.example.com/ ", "https://x.example.com"},
		{"http://already.ok", "http://already.ok"},
	}

	for _, tt := range tests {
		cfg := NewConfig()
		cfg.MergeWithFlags(tt.in, "", "")
		if cfg.ServerURL != tt.want {
			t.Errorf("MergeWithFlags(%q) URL = %q, want %q", tt.in, cfg.ServerURL, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"empty url", func(c *Config) { c.ServerURL = "" }, ErrMissingServerURL},
		{"no scheme", func(c *Config) { c.ServerURL = "ftp://host" }, ErrInvalidServerURL},
		{"no host", func(c *Config) { c.ServerURL = "http://" }, ErrInvalidServerURL},
		{"bad sort", func(c *Config) { c.SortBy = "type" }, ErrInvalidSortBy},
		{"bad direction", func(c *Config) { c.SortDirection = "up" }, ErrInvalidSortDir},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, ErrInvalidTimeout},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, ErrInvalidRetries},
		{"too many retries", func(c *Config) { c.MaxRetries = 11 }, ErrInvalidRetries},
		{"bad proxy mode", func(c *Config) { c.ProxyMode = "socks" }, ErrInvalidProxyMode},
		{"empty download dir", func(c *Config) { c.DownloadDir = " " }, ErrMissingDownloadDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := NewConfig()
	cfg.Password = "secret"

	r := cfg.Redacted()
	if r.Password == "secret" {
		t.Error("password should be masked")
	}
	if r.ProxyPassword != "" {
		t.Error("empty proxy password should stay empty")
	}
	if cfg.Password != "secret" {
		t.Error("Redacted must not modify the receiver")
	}
}

func TestDefaultConfigPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, "/custom/place.ini")

	p, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath failed: %v", err)
	}
	if p != "/custom/place.ini" {
		t.Errorf("expected env override, got %s", p)
	}
}
