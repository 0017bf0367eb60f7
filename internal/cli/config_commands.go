package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdesk/workdir/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  `Commands for creating and inspecting the workdir configuration file.`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Create a configuration file by answering a few questions.

The file is written with owner-only permissions because it may hold a
password. Press Enter to keep the value shown in brackets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				// Unreadable file and --force: start over
				cfg = config.NewConfig()
			}

			reader := bufio.NewReader(stdin)

			fmt.Fprintln(out, "workdir Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			cfg.ServerURL = promptLine(reader, out, "Server URL", cfg.ServerURL)
			cfg.Username = promptLine(reader, out, "Username (empty for none)", cfg.Username)
			if cfg.Username != "" {
				cfg.Password = promptLine(reader, out, "Password", "")
			}

			timeout := promptLine(reader, out, "Request timeout in seconds", strconv.Itoa(int(cfg.RequestTimeout/time.Second)))
			if v, err := strconv.Atoi(timeout); err == nil && v >= 0 {
				cfg.RequestTimeout = time.Duration(v) * time.Second
			}

			cfg.DownloadDir = promptLine(reader, out, "Download directory", cfg.DownloadDir)

			fmt.Fprintln(out)
			useProxy, err := promptYesNo(reader, out, "Configure proxy?", false)
			if err != nil && !errors.Is(err, errNoInput) {
				return err
			}
			if useProxy {
				fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
				cfg.ProxyMode = strings.ToLower(promptLine(reader, out, "Proxy mode", "system"))
				if cfg.ProxyMode != "no-proxy" && cfg.ProxyMode != "system" {
					cfg.ProxyHost = promptLine(reader, out, "Proxy host", cfg.ProxyHost)
					port := promptLine(reader, out, "Proxy port", strconv.Itoa(cfg.ProxyPort))
					if v, err := strconv.Atoi(port); err == nil && v > 0 {
						cfg.ProxyPort = v
					}
					cfg.ProxyUser = promptLine(reader, out, "Proxy user (empty for none)", cfg.ProxyUser)
					if cfg.ProxyUser != "" {
						cfg.ProxyPassword = promptLine(reader, out, "Proxy password", "")
					}
				}
			}

			cfg.ServerURL = config.NormalizeServerURL(cfg.ServerURL)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := config.SaveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			logger.Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Try it with: workdir ls")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration.

This command shows the merged configuration from:
  1. Configuration file (~/.config/workdir/config.ini)
  2. Environment variables (WORKDIR_URL, WORKDIR_USER, WORKDIR_PASSWORD)
  3. Command-line flags (--url, --user, --password)

Priority: flags > environment > config file > defaults
Passwords are never displayed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.MergeWithFlags(serverURL, username, password)
			r := cfg.Redacted()

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Server:")
			fmt.Fprintf(out, "  URL:             %s\n", r.ServerURL)
			fmt.Fprintf(out, "  Username:        %s\n", orNotSet(r.Username))
			fmt.Fprintf(out, "  Password:        %s\n", orNotSet(r.Password))
			fmt.Fprintf(out, "  Request Timeout: %s\n", r.RequestTimeout)
			fmt.Fprintf(out, "  Max Retries:     %d\n", r.MaxRetries)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy:")
			fmt.Fprintf(out, "  Mode: %s\n", r.ProxyMode)
			if r.ProxyHost != "" {
				fmt.Fprintf(out, "  Host: %s\n", r.ProxyHost)
				fmt.Fprintf(out, "  Port: %d\n", r.ProxyPort)
			}
			if r.ProxyUser != "" {
				fmt.Fprintf(out, "  User: %s (password %s)\n", r.ProxyUser, orNotSet(r.ProxyPassword))
			}
			if r.NoProxy != "" {
				fmt.Fprintf(out, "  No Proxy: %s\n", r.NoProxy)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Browser:")
			fmt.Fprintf(out, "  Sort:           %s %s\n", r.SortBy, r.SortDirection)
			fmt.Fprintf(out, "  Download Dir:   %s\n", r.DownloadDir)
			fmt.Fprintf(out, "  Include Hidden: %t\n", r.IncludeHidden)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}

			return nil
		},
	}

	return cmd
}

func orNotSet(v string) string {
	if v == "" {
		return "<not set>"
	}
	return v
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}
			if cfgFile != "" {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			} else {
				fmt.Fprintln(out, "Default configuration path:")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: workdir config init")
			}

			return nil
		},
	}

	return cmd
}
