// Package services holds the frontend-agnostic file operations shared by the
// one-shot commands and the interactive shell. Each call runs against an
// open browser session.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentdesk/workdir/internal/localfs"
	"github.com/agentdesk/workdir/internal/logging"
	"github.com/agentdesk/workdir/internal/models"
	"github.com/agentdesk/workdir/internal/state"
	"github.com/agentdesk/workdir/internal/util/filter"
	"github.com/agentdesk/workdir/internal/util/paths"
	"github.com/agentdesk/workdir/internal/validation"
)

// ErrNotFound is returned when a name does not match any entry of the
// current listing.
var ErrNotFound = errors.New("no such entry in the current directory")

// FileService runs batch operations on a browser session.
type FileService struct {
	browser *state.Browser
	saver   *LocalSaver
	logger  *logging.Logger
}

// NewFileService creates a FileService. saver may be nil when downloads are
// not needed; it must be the Saver the browser was built with.
func NewFileService(browser *state.Browser, saver *LocalSaver, logger *logging.Logger) *FileService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileService{browser: browser, saver: saver, logger: logger}
}

// Browser returns the session the service works on.
func (fs *FileService) Browser() *state.Browser {
	return fs.browser
}

// List returns the current entries in the session's sort order, filtered.
func (fs *FileService) List(opts ListOptions) []models.FileEntry {
	return filter.Apply(fs.browser.Entries(), filter.Config{
		Include: opts.Include,
		Exclude: opts.Exclude,
		Search:  opts.Search,
	})
}

// Resolve looks up names (or paths) in the current listing.
func (fs *FileService) Resolve(names []string) ([]models.FileEntry, error) {
	out := make([]models.FileEntry, 0, len(names))
	for _, n := range names {
		e, ok := fs.browser.FindEntry(n)
		if !ok {
			return nil, fmt.Errorf("%s: %w", n, ErrNotFound)
		}
		out = append(out, e)
	}
	return out, nil
}

// PrepareUpload expands local file and directory arguments into upload
// parts. Directories contribute their immediate files.
func (fs *FileService) PrepareUpload(args []string, includeHidden bool) ([]models.UploadFile, error) {
	entries, err := localfs.ExpandPaths(args, localfs.ExpandOptions{IncludeHidden: includeHidden})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no files to upload")
	}

	files := make([]models.UploadFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, e.UploadFile())
	}
	fs.logger.Debug().Int("files", len(files)).Msg("Prepared upload")
	return files, nil
}

// Upload sends local paths into the current directory.
func (fs *FileService) Upload(ctx context.Context, args []string, includeHidden bool) (*state.UploadResult, error) {
	files, err := fs.PrepareUpload(args, includeHidden)
	if err != nil {
		return nil, err
	}
	return fs.browser.UploadFiles(ctx, files)
}

// PlanDownloads assigns a local path in dir to each entry and resolves name
// collisions within the batch. Directories and entries whose name is not a
// safe local file name are left out; saving those fails on its own.
func (fs *FileService) PlanDownloads(entries []models.FileEntry, dir string) ([]paths.FileForDownload, int) {
	files := make([]paths.FileForDownload, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		local, err := validation.DownloadTarget(dir, e.Name)
		if err != nil {
			fs.logger.Warn().Str("name", e.Name).Err(err).Msg("Unsafe file name")
			continue
		}
		files = append(files, paths.FileForDownload{
			RemotePath: e.Path,
			Name:       e.Name,
			LocalPath:  local,
			Size:       e.Size,
		})
	}
	return paths.ResolveCollisions(files)
}

// Download fetches the named entries one after another into the saver's
// directory. Every file is attempted; the returned error joins the
// failures.
func (fs *FileService) Download(ctx context.Context, names []string) ([]DownloadResult, error) {
	if fs.saver == nil {
		return nil, errors.New("downloads are not configured")
	}
	entries, err := fs.Resolve(names)
	if err != nil {
		return nil, err
	}

	planned, renamed := fs.PlanDownloads(entries, fs.saver.Dir)
	if renamed > 0 {
		fs.logger.Info().Int("renamed", renamed).Msg("Resolved duplicate file names in batch")
	}
	fs.saver.Plan(planned)

	results := make([]DownloadResult, 0, len(entries))
	var errs []error
	for _, e := range entries {
		loc, err := fs.browser.DownloadFile(ctx, e)
		results = append(results, DownloadResult{Entry: e, Location: loc, Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	return results, errors.Join(errs...)
}

// Delete removes the named entries one after another, asking the browser's
// Confirmer for each.
func (fs *FileService) Delete(ctx context.Context, names []string) ([]DeleteResult, error) {
	entries, err := fs.Resolve(names)
	if err != nil {
		return nil, err
	}

	results := make([]DeleteResult, 0, len(entries))
	var errs []error
	for _, e := range entries {
		err := fs.browser.DeleteEntry(ctx, e)
		results = append(results, DeleteResult{Entry: e, Err: err})
		if err != nil && !errors.Is(err, state.ErrNotConfirmed) {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return results, errors.Join(errs...)
}
