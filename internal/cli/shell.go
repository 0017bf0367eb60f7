package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentdesk/workdir/internal/events"
	"github.com/agentdesk/workdir/internal/logging"
	"github.com/agentdesk/workdir/internal/models"
	"github.com/agentdesk/workdir/internal/services"
	"github.com/agentdesk/workdir/internal/state"
)

const shellHelp = `Commands:
  ls [pattern...]     list the current directory (optionally only matching names)
  cd <dir|..|/>       enter a directory, go up, or go to the root
  up                  go to the parent directory
  back                return to the previous directory
  refresh             reload the current directory
  pwd                 print the current directory
  sort <name|size|date>  sort by a column; repeating it flips the direction
  get <name...>       download files into the download directory
  put <path...>       upload local files or directories here
  rm <name...>        delete entries (asks first)
  history             list visited directories
  help                show this help
  exit                close the browser`

// newBrowseCmd creates the 'browse' command.
func newBrowseCmd() *cobra.Command {
	var startPath string
	var outDir string
	var overwrite bool
	var includeHidden bool

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the working directory interactively",
		Long: `Open an interactive browser on the working directory. The session stays
open until you type 'exit' (or send end of input); navigation, sorting,
uploads, downloads and deletes all act on the directory being shown.

Examples:
  workdir browse
  workdir browse --path /results --outdir ./downloads`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log := logging.NewLogger(logging.ModeShell)
			if !verbose && !debug {
				log = log.WithLevel(zerolog.WarnLevel)
			}

			lines := newLineReader(stdin)
			out := cmd.OutOrStdout()
			s, err := newSession(cfg, sessionOptions{
				StartPath: startPath,
				Confirmer: lineConfirmer(lines, out),
				OutDir:    outDir,
				Overwrite: overwrite,
				Logger:    log,
			})
			if err != nil {
				return err
			}
			defer s.close()

			sh := newShell(s, lines, out, includeHidden || cfg.IncludeHidden)
			return sh.run(GetContext())
		},
	}

	cmd.Flags().StringVarP(&startPath, "path", "p", "", "Directory to open (default: root)")
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "", "Download directory (default: download_dir from config)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing local files on download")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Include hidden files when uploading a directory")

	return cmd
}

// shell is the read-eval loop of 'browse'. Results reach the user as the
// browser's notifications, drained after every command.
type shell struct {
	s             *session
	lines         *lineReader
	out           io.Writer
	notes         <-chan events.Event
	includeHidden bool
}

func newShell(s *session, lines *lineReader, out io.Writer, includeHidden bool) *shell {
	return &shell{
		s:             s,
		lines:         lines,
		out:           out,
		notes:         s.bus.Subscribe(events.EventNotification),
		includeHidden: includeHidden,
	}
}

// run opens the browser and reads commands until exit, end of input or
// cancellation of ctx.
func (sh *shell) run(ctx context.Context) error {
	fmt.Fprintf(sh.out, "Connected to %s. Type 'help' for commands.\n", sh.s.client.BaseURL())

	err := sh.s.browser.Open(ctx)
	if !sh.flush(err) {
		sh.printListing(nil)
	}
	defer sh.s.browser.Close()

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(sh.out)
			return nil
		}
		fmt.Fprintf(sh.out, "%s> ", displayPath(sh.s.browser.CurrentPath()))

		line, readErr := sh.lines.readLine(ctx)
		if ctx.Err() != nil {
			fmt.Fprintln(sh.out)
			return nil
		}
		if line = strings.TrimSpace(line); line != "" {
			if quit := sh.exec(ctx, line); quit {
				return nil
			}
		}
		if readErr != nil {
			fmt.Fprintln(sh.out)
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	b := sh.s.browser

	var err error
	switch name {
	case "exit", "quit":
		return true

	case "help", "?":
		fmt.Fprintln(sh.out, shellHelp)

	case "ls":
		sh.printListing(args)

	case "pwd":
		fmt.Fprintln(sh.out, displayPath(b.CurrentPath()))

	case "cd":
		if len(args) != 1 {
			err = errors.New("usage: cd <dir|..|/>")
			break
		}
		err = sh.cd(ctx, args[0])

	case "up":
		var moved bool
		moved, err = sh.navigated(b.NavigateUp(ctx))
		if err == nil && !moved {
			fmt.Fprintln(sh.out, "Already at the root")
		}

	case "back":
		var moved bool
		moved, err = sh.navigated(b.Back(ctx))
		if err == nil && !moved {
			fmt.Fprintln(sh.out, "No previous directory")
		}

	case "refresh":
		_, err = sh.navigated(b.Refresh(ctx))

	case "sort":
		if len(args) != 1 {
			err = errors.New("usage: sort <name|size|date>")
			break
		}
		var key state.SortKey
		if key, err = state.ParseSortKey(args[0]); err == nil {
			s := b.ToggleSort(key)
			fmt.Fprintf(sh.out, "Sorted by %s\n", s)
			sh.printListing(nil)
		}

	case "history":
		h := b.History()
		if len(h) == 0 {
			fmt.Fprintln(sh.out, "(no history)")
		}
		for i, p := range h {
			fmt.Fprintf(sh.out, "%3d  %s\n", i+1, displayPath(p))
		}

	case "get":
		if len(args) == 0 {
			err = errors.New("usage: get <name...>")
			break
		}
		_, err = sh.s.service.Download(ctx, args)

	case "put":
		if len(args) == 0 {
			err = errors.New("usage: put <path...>")
			break
		}
		var result *state.UploadResult
		result, _, err = uploadWithProgress(ctx, sh.s, args, sh.includeHidden)
		if result != nil && result.Applied {
			defer sh.printListing(nil)
		}

	case "rm":
		if len(args) == 0 {
			err = errors.New("usage: rm <name...>")
			break
		}
		var results []services.DeleteResult
		results, err = sh.s.service.Delete(ctx, args)
		deleted := 0
		for _, r := range results {
			switch {
			case r.Err == nil:
				deleted++
			case errors.Is(r.Err, state.ErrNotConfirmed):
				fmt.Fprintf(sh.out, "Skipped %s\n", r.Entry.Name)
			}
		}
		if deleted > 0 {
			defer sh.printListing(nil)
		}

	default:
		err = fmt.Errorf("unknown command %q (type 'help')", name)
	}

	sh.flush(err)
	return false
}

// cd resolves target against the current listing: ".." is up, a leading
// "/" is absolute, anything else must name a directory shown here.
func (sh *shell) cd(ctx context.Context, target string) error {
	b := sh.s.browser
	var dest string
	switch {
	case target == "..":
		moved, err := sh.navigated(b.NavigateUp(ctx))
		if err == nil && !moved {
			fmt.Fprintln(sh.out, "Already at the root")
		}
		return err
	case target == "/":
		dest = ""
	case strings.HasPrefix(target, "/"):
		dest = target
	default:
		e, ok := b.FindEntry(target)
		if !ok {
			return fmt.Errorf("%s: %w", target, services.ErrNotFound)
		}
		if !e.IsDir {
			return fmt.Errorf("%s: not a directory", target)
		}
		dest = e.Path
	}
	_, err := sh.navigated(b.NavigateTo(ctx, dest))
	return err
}

// navigated prints the listing after a successful navigation. moved is
// false when the browser had nowhere to go.
func (sh *shell) navigated(listing *models.DirectoryListing, err error) (bool, error) {
	if err != nil || listing == nil {
		return false, err
	}
	sh.printListing(nil)
	return true, nil
}

func (sh *shell) printListing(patterns []string) {
	entries := sh.s.service.List(services.ListOptions{Include: patterns})
	printListing(sh.out, sh.s.browser.Listing(), entries)
}

// flush prints pending notifications, then err unless a notification
// already told the user about it. It reports whether anything failed.
func (sh *shell) flush(err error) bool {
	notified := false
	for {
		select {
		case ev, ok := <-sh.notes:
			if !ok {
				return sh.printErr(err, notified)
			}
			n, isNote := ev.(*events.NotificationEvent)
			if !isNote {
				continue
			}
			switch n.Level {
			case events.ErrorLevel:
				notified = true
				fmt.Fprintf(sh.out, "✗ %s\n", n.Message)
			case events.WarnLevel:
				fmt.Fprintf(sh.out, "! %s\n", n.Message)
			default:
				fmt.Fprintf(sh.out, "✓ %s\n", n.Message)
			}
		default:
			return sh.printErr(err, notified)
		}
	}
}

func (sh *shell) printErr(err error, notified bool) bool {
	if err == nil {
		return notified
	}
	if !notified && !errors.Is(err, state.ErrSuperseded) && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
	}
	return true
}
