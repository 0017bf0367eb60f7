package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfigPath returns the location of the INI config file.
// WORKDIR_CONFIG wins when set.
//
// Locations:
//   - Windows: %APPDATA%\workdir\config.ini
//   - Unix: ~/.config/workdir/config.ini
func DefaultConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, "workdir", "config.ini"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "workdir", "config.ini"), nil
}

// EnsureConfigDir creates the parent directory of a config file path.
// Uses 0700 so stored passwords stay private to the owner.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// LogDirectory returns the directory for optional log files.
func LogDirectory() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "workdir-logs")
	}
	return filepath.Join(configDir, "workdir", "logs")
}
