package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentdesk/workdir/internal/config"
	"github.com/agentdesk/workdir/internal/models"
	"github.com/agentdesk/workdir/internal/progress"
	"github.com/agentdesk/workdir/internal/services"
	"github.com/agentdesk/workdir/internal/state"
	"github.com/agentdesk/workdir/internal/util/filter"
)

// newFilesCmd creates the 'files' command group.
func newFilesCmd() *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "File operations (list, upload, download, delete)",
		Long:  `Commands for managing files in the agent's working directory.`,
	}

	filesCmd.AddCommand(newFilesListCmd())
	filesCmd.AddCommand(newFilesUploadCmd())
	filesCmd.AddCommand(newFilesDownloadCmd())
	filesCmd.AddCommand(newFilesDeleteCmd())

	return filesCmd
}

// listFlags are the flags shared by 'files list' and 'ls'.
type listFlags struct {
	path    string
	include string
	exclude string
	search  string
	sortBy  string
	desc    bool
	sortSet bool
	descSet bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "path", "p", "", "Directory to list (default: root)")
	cmd.Flags().StringVar(&f.include, "include", "", "Include only files matching these patterns (comma-separated glob patterns, e.g. \"*.py,*.md\")")
	cmd.Flags().StringVar(&f.exclude, "exclude", "", "Exclude files matching these patterns (comma-separated glob patterns)")
	cmd.Flags().StringVar(&f.search, "search", "", "Include only files containing these terms in filename (comma-separated, case-insensitive)")
	cmd.Flags().StringVar(&f.sortBy, "sort", "", "Sort column: name, size or date (default from config)")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Sort in descending order")
}

// sortOverride returns the sort requested on the command line, layered
// over the configured one. The zero SortState means no override.
func (f *listFlags) sortOverride(cfg *config.Config) (state.SortState, error) {
	if !f.sortSet && !f.descSet {
		return state.SortState{}, nil
	}
	s, err := configuredSort(cfg)
	if err != nil {
		return state.SortState{}, err
	}
	if f.sortSet {
		by, err := state.ParseSortKey(f.sortBy)
		if err != nil {
			return state.SortState{}, err
		}
		s = state.SortState{By: by, Direction: state.Ascending}
	}
	if f.descSet {
		if f.desc {
			s.Direction = state.Descending
		} else {
			s.Direction = state.Ascending
		}
	}
	return s, nil
}

func (f *listFlags) listOptions() services.ListOptions {
	return services.ListOptions{
		Include: filter.ParsePatternList(f.include),
		Exclude: filter.ParsePatternList(f.exclude),
		Search:  filter.ParsePatternList(f.search),
	}
}

// openSession loads the config, builds a session and opens it.
func openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openSessionWith(ctx, cfg, opts)
}

func openSessionWith(ctx context.Context, cfg *config.Config, opts sessionOptions) (*session, error) {
	s, err := newSession(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := s.browser.Open(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("failed to open %q: %w", displayPath(opts.StartPath), err)
	}
	return s, nil
}

func runList(cmd *cobra.Command, flags *listFlags) error {
	flags.sortSet = cmd.Flags().Changed("sort")
	flags.descSet = cmd.Flags().Changed("desc")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sort, err := flags.sortOverride(cfg)
	if err != nil {
		return err
	}

	s, err := openSessionWith(GetContext(), cfg, sessionOptions{StartPath: flags.path, Sort: sort})
	if err != nil {
		return err
	}
	defer s.close()

	opts := flags.listOptions()
	all := s.browser.Entries()
	entries := s.service.List(opts)

	printListing(cmd.OutOrStdout(), s.browser.Listing(), entries)
	if len(entries) != len(all) {
		fmt.Fprintf(cmd.OutOrStdout(), "\nFiltered: %d of %d entries match filters\n", len(entries), len(all))
	}
	return nil
}

// newFilesListCmd creates the 'files list' command.
func newFilesListCmd() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a directory",
		Long: `List one directory of the working directory. Directories come first.

Examples:
  # List the root
  workdir files list

  # List a subdirectory, largest first
  workdir files list --path /results --sort size --desc

  # Only Python files
  workdir files list --include "*.py"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, flags)
		},
	}
	flags.register(cmd)

	return cmd
}

// uploadWithProgress sends local files into the session's current directory
// with one progress bar per file. total is the number of files prepared.
func uploadWithProgress(ctx context.Context, s *session, args []string, includeHidden bool) (result *state.UploadResult, total int, err error) {
	files, err := s.service.PrepareUpload(args, includeHidden)
	if err != nil {
		return nil, 0, err
	}

	ui := progress.NewUploadUI(len(files), displayPath(s.browser.CurrentPath()))
	done := s.beginUpload(ui)
	result, err = s.browser.UploadFiles(ctx, files)
	done()

	failed := make(map[string]string)
	if result != nil {
		for _, f := range result.Failed {
			failed[f.Name] = f.Error
		}
	}
	ui.Complete(failed, err)
	ui.Wait()

	return result, len(files), err
}

// runUpload uploads and reports on out. Rejected and server-refused files
// make the returned error non-nil.
func runUpload(ctx context.Context, s *session, args []string, includeHidden bool, out io.Writer) error {
	dest := s.browser.CurrentPath()
	result, total, err := uploadWithProgress(ctx, s, args, includeHidden)
	if result == nil {
		return err
	}
	for _, rej := range result.Rejected {
		fmt.Fprintf(out, "✗ %s: %s\n", rej.Name, rej.Reason)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Uploaded %d of %d file(s) to %s\n", result.Succeeded(), total, displayPath(dest))
	if n := len(result.Rejected) + len(result.Failed); n > 0 {
		return fmt.Errorf("%d file(s) were not uploaded", n)
	}
	return nil
}

// newFilesUploadCmd creates the 'files upload' command.
func newFilesUploadCmd() *cobra.Command {
	var dest string
	var includeHidden bool

	cmd := &cobra.Command{
		Use:   "upload <file|dir> [file|dir...]",
		Short: "Upload files into a directory",
		Long: `Upload local files in one request. A directory argument uploads the
regular files directly inside it (hidden files are skipped unless
--include-hidden or include_hidden is set).

Files larger than 100 MiB are rejected before anything is sent, unless they
are archives (zip, tar, gz, rar, 7z).

Examples:
  workdir files upload data.csv notes.md
  workdir files upload ./results --path /inputs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openSessionWith(GetContext(), cfg, sessionOptions{StartPath: dest})
			if err != nil {
				return err
			}
			defer s.close()

			hidden := includeHidden || cfg.IncludeHidden
			return runUpload(GetContext(), s, args, hidden, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&dest, "path", "p", "", "Destination directory (default: root)")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Include hidden files when uploading a directory")

	return cmd
}

// runDownload saves the named entries of the current directory into the
// session's download directory.
func runDownload(ctx context.Context, s *session, names []string, out io.Writer) error {
	results, err := s.service.Download(ctx, names)
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintf(out, "✓ %s → %s\n", r.Entry.Name, r.Location)
		} else {
			fmt.Fprintf(out, "✗ %s: %v\n", r.Entry.Name, r.Err)
		}
	}
	return err
}

// newFilesDownloadCmd creates the 'files download' command.
func newFilesDownloadCmd() *cobra.Command {
	var dir string
	var outDir string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "download <name> [name...]",
		Short: "Download files from a directory",
		Long: `Download files by name (or full path) from one directory.

Existing local files are kept: the download is saved as "name (1).ext"
unless --overwrite is given. Free space is checked first.

Examples:
  workdir files download report.pdf
  workdir files download a.log b.log --path /logs --outdir ./logs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(GetContext(), sessionOptions{StartPath: dir, OutDir: outDir, Overwrite: overwrite})
			if err != nil {
				return err
			}
			defer s.close()

			return runDownload(GetContext(), s, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&dir, "path", "p", "", "Remote directory holding the files (default: root)")
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "", "Output directory (default: download_dir from config)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing local files")

	return cmd
}

// runDelete removes the named entries, one confirmation each.
func runDelete(ctx context.Context, s *session, names []string, out io.Writer) error {
	results, err := s.service.Delete(ctx, names)
	for _, r := range results {
		switch {
		case r.Err == nil:
			fmt.Fprintf(out, "Deleted %s\n", r.Entry.Path)
		case errors.Is(r.Err, state.ErrNotConfirmed):
			fmt.Fprintf(out, "Skipped %s\n", r.Entry.Path)
		default:
			fmt.Fprintf(out, "✗ %s: %v\n", r.Entry.Path, r.Err)
		}
	}
	return err
}

// newFilesDeleteCmd creates the 'files delete' command.
func newFilesDeleteCmd() *cobra.Command {
	var dir string
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <name> [name...]",
		Short: "Delete files or directories",
		Long: `Delete entries by name (or full path) from one directory. Each delete
is confirmed unless --yes is given.

Examples:
  workdir files delete old.log
  workdir files delete build --path /tmp --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(GetContext(), sessionOptions{StartPath: dir, Confirmer: deleteConfirmer(yes)})
			if err != nil {
				return err
			}
			defer s.close()

			return runDelete(GetContext(), s, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&dir, "path", "p", "", "Remote directory holding the entries (default: root)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")

	return cmd
}

// printListing writes the directory header and one row per entry.
func printListing(out io.Writer, listing models.DirectoryListing, entries []models.FileEntry) {
	fmt.Fprintf(out, "Directory: %s\n", displayPath(listing.CurrentPath))
	if len(entries) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}

	fmt.Fprintf(out, "%-2s %-40s %12s   %s\n", "", "NAME", "SIZE", "MODIFIED")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, e := range entries {
		name := e.Name
		size := state.FormatFileSize(e.Size)
		if e.IsDir {
			name += "/"
			size = "-"
		}
		if r := []rune(name); len(r) > 40 {
			name = string(r[:37]) + "..."
		}
		fmt.Fprintf(out, "%-2s %-40s %12s   %s\n", statusMark(e.UploadStatus), name, size, state.FormatDate(e.Modified.Time))
	}
}

func statusMark(s models.UploadStatus) string {
	switch s {
	case models.UploadSuccess:
		return "✓"
	case models.UploadFailed:
		return "✗"
	default:
		return ""
	}
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
