// Package config provides configuration management for the workdir client.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/agentdesk/workdir/internal/constants"
)

// Environment variables consulted by MergeWithFlags and DefaultConfigPath.
const (
	EnvConfigPath = "WORKDIR_CONFIG"
	EnvServerURL  = "WORKDIR_URL"
	EnvUsername   = "WORKDIR_USER"
	EnvPassword   = "WORKDIR_PASSWORD"
)

// Config represents the client configuration.
//
// INI format:
//
//	[server]
//	url = http://localhost:50001
//	username =
//	password =
//	request_timeout_seconds = 60
//	max_retries = 0
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	password =
//	no_proxy =
//	warmup = false
//
//	[browser]
//	sort_by = name
//	sort_direction = asc
//	download_dir = .
//	include_hidden = false
type Config struct {
	// Server settings
	ServerURL      string
	Username       string
	Password       string
	RequestTimeout time.Duration

	// MaxRetries is handed to the retrying HTTP client for list, delete and
	// download requests. Zero keeps the default behavior of never retrying.
	MaxRetries int

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// Browser defaults (seed for a session's sort state, never written back)
	SortBy        string // "name", "size", "date"
	SortDirection string // "asc", "desc"
	DownloadDir   string
	IncludeHidden bool
}

// Validation errors
var (
	ErrMissingServerURL   = errors.New("server url is required")
	ErrInvalidServerURL   = errors.New("server url must be an absolute http(s) URL")
	ErrInvalidSortBy      = errors.New("sort_by must be one of name, size, date")
	ErrInvalidSortDir     = errors.New("sort_direction must be asc or desc")
	ErrInvalidTimeout     = errors.New("request_timeout_seconds must not be negative")
	ErrInvalidRetries     = fmt.Errorf("max_retries must be between 0 and %d", constants.MaxRetriesLimit)
	ErrInvalidProxyMode   = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingDownloadDir = errors.New("download_dir is required")
)

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ServerURL:      "http://localhost:50001",
		RequestTimeout: constants.DefaultRequestTimeout,
		ProxyMode:      "no-proxy",
		ProxyPort:      8080,
		SortBy:         "name",
		SortDirection:  "asc",
		DownloadDir:    ".",
	}
}

// LoadConfig loads configuration from an INI file.
// If path is empty, DefaultConfigPath is used. A missing file yields defaults
// and no error; an unreadable or malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.ServerURL = server.Key("url").MustString(cfg.ServerURL)
	cfg.Username = server.Key("username").String()
	cfg.Password = server.Key("password").String()
	timeoutSec := server.Key("request_timeout_seconds").MustInt(int(constants.DefaultRequestTimeout / time.Second))
	cfg.RequestTimeout = time.Duration(timeoutSec) * time.Second
	cfg.MaxRetries = server.Key("max_retries").MustInt(0)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	browser := iniFile.Section("browser")
	cfg.SortBy = strings.ToLower(browser.Key("sort_by").MustString(cfg.SortBy))
	cfg.SortDirection = strings.ToLower(browser.Key("sort_direction").MustString(cfg.SortDirection))
	cfg.DownloadDir = browser.Key("download_dir").MustString(cfg.DownloadDir)
	cfg.IncludeHidden = browser.Key("include_hidden").MustBool(false)

	return cfg, nil
}

// SaveConfig saves configuration to an INI file.
// Creates parent directories if they don't exist. Passwords are stored in the
// file, so it is written with owner-only permissions.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := EnsureConfigDir(path); err != nil {
		return err
	}

	iniFile := ini.Empty()

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("url").SetValue(cfg.ServerURL)
	server.Key("username").SetValue(cfg.Username)
	server.Key("password").SetValue(cfg.Password)
	server.Key("request_timeout_seconds").SetValue(fmt.Sprintf("%d", int(cfg.RequestTimeout/time.Second)))
	server.Key("max_retries").SetValue(fmt.Sprintf("%d", cfg.MaxRetries))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("password").SetValue(cfg.ProxyPassword)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(fmt.Sprintf("%t", cfg.ProxyWarmup))

	browser, err := iniFile.NewSection("browser")
	if err != nil {
		return fmt.Errorf("failed to create browser section: %w", err)
	}
	browser.Key("sort_by").SetValue(cfg.SortBy)
	browser.Key("sort_direction").SetValue(cfg.SortDirection)
	browser.Key("download_dir").SetValue(cfg.DownloadDir)
	browser.Key("include_hidden").SetValue(fmt.Sprintf("%t", cfg.IncludeHidden))

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// MergeWithFlags merges config with command-line flags and environment variables.
// Priority: flags > environment > config file > defaults
func (c *Config) MergeWithFlags(serverURL, username, password string) {
	if envURL := os.Getenv(EnvServerURL); envURL != "" {
		c.ServerURL = envURL
	}
	if envUser := os.Getenv(EnvUsername); envUser != "" {
		c.Username = envUser
	}
	if envPass := os.Getenv(EnvPassword); envPass != "" {
		c.Password = envPass
	}

	if serverURL != "" {
		c.ServerURL = serverURL
	}
	if username != "" {
		c.Username = username
	}
	if password != "" {
		c.Password = password
	}

	c.ServerURL = NormalizeServerURL(c.ServerURL)
}

// NormalizeServerURL trims whitespace and trailing slashes. A bare host:port
// is taken as plain http, the common case for a local agent UI.
func NormalizeServerURL(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")
	if s != "" && !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "http://" + s
	}
	return s
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return ErrMissingServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidServerURL
	}
	switch c.SortBy {
	case "name", "size", "date":
	default:
		return ErrInvalidSortBy
	}
	switch c.SortDirection {
	case "asc", "desc":
	default:
		return ErrInvalidSortDir
	}
	if c.RequestTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 || c.MaxRetries > constants.MaxRetriesLimit {
		return ErrInvalidRetries
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	if strings.TrimSpace(c.DownloadDir) == "" {
		return ErrMissingDownloadDir
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.Password != "" {
		out.Password = "********"
	}
	if out.ProxyPassword != "" {
		out.ProxyPassword = "********"
	}
	return out
}
