package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds shortcut commands to the root command.
// Shortcuts provide convenient aliases for commonly-used operations.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLsShortcut())
	rootCmd.AddCommand(newPutShortcut())
	rootCmd.AddCommand(newGetShortcut())
	rootCmd.AddCommand(newRmShortcut())
}

// shortcut reuses a 'files' subcommand, flags included, under a new name.
func shortcut(cmd *cobra.Command, use, target string) *cobra.Command {
	cmd.Use = use
	cmd.Short += " (shortcut for 'files " + target + "')"
	return cmd
}

// newLsShortcut creates the 'ls' shortcut command.
// Shortcut for: files list
func newLsShortcut() *cobra.Command {
	return shortcut(newFilesListCmd(), "ls", "list")
}

// newPutShortcut creates the 'put' shortcut command.
// Shortcut for: files upload
func newPutShortcut() *cobra.Command {
	return shortcut(newFilesUploadCmd(), "put <file|dir> [file|dir...]", "upload")
}

// newGetShortcut creates the 'get' shortcut command.
// Shortcut for: files download
func newGetShortcut() *cobra.Command {
	return shortcut(newFilesDownloadCmd(), "get <name> [name...]", "download")
}

// newRmShortcut creates the 'rm' shortcut command.
// Shortcut for: files delete
func newRmShortcut() *cobra.Command {
	return shortcut(newFilesDeleteCmd(), "rm <name> [name...]", "delete")
}
