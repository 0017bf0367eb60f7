package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentdesk/workdir/internal/diskspace"
	"github.com/agentdesk/workdir/internal/events"
	"github.com/agentdesk/workdir/internal/logging"
	"github.com/agentdesk/workdir/internal/models"
	"github.com/agentdesk/workdir/internal/progress"
	"github.com/agentdesk/workdir/internal/util/paths"
	"github.com/agentdesk/workdir/internal/validation"
)

// LocalSaver writes downloads into a local directory. It implements
// state.Saver.
type LocalSaver struct {
	// Dir is the destination directory; it is created on first save.
	Dir string

	// Overwrite replaces existing files instead of picking "name (n).ext".
	Overwrite bool

	// ShowProgress draws a progress bar on stderr.
	ShowProgress bool

	EventBus *events.EventBus
	Logger   *logging.Logger

	mu      sync.Mutex
	planned map[string]string // remote path -> local path
}

// Plan fixes the local paths of a batch, as resolved by
// paths.ResolveCollisions. Files without a plan go to Dir under their name.
func (s *LocalSaver) Plan(files []paths.FileForDownload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.planned == nil {
		s.planned = make(map[string]string, len(files))
	}
	for _, f := range files {
		s.planned[f.RemotePath] = f.LocalPath
	}
}

func (s *LocalSaver) target(entry models.FileEntry) (string, error) {
	s.mu.Lock()
	p, ok := s.planned[entry.Path]
	s.mu.Unlock()
	if ok {
		return p, nil
	}
	return validation.DownloadTarget(s.Dir, entry.Name)
}

// Save streams r into the target file. The data goes to a temporary file
// next to the target first so a failed transfer leaves nothing behind.
func (s *LocalSaver) Save(ctx context.Context, entry models.FileEntry, r io.Reader, size int64) (string, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	target, err := s.target(entry)
	if err != nil {
		return "", fmt.Errorf("invalid file name %q: %w", entry.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	if !s.Overwrite {
		target = paths.UniquePath(target, nil)
	}
	if size < 0 && entry.Size > 0 {
		size = entry.Size
	}
	if err := diskspace.CheckForDownload(target, size); err != nil {
		return "", err
	}

	reporter := s.reporter(entry.Name)
	reporter.Start(size, entry.Name)

	tmpPath := target + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		reporter.Error(err)
		return "", fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	written, err := io.Copy(f, progress.NewProgressReader(&ctxReader{ctx: ctx, r: r}, reporter))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		reporter.Error(err)
		return "", fmt.Errorf("failed to write %s: %w", entry.Name, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		reporter.Error(err)
		return "", fmt.Errorf("failed to save %s: %w", entry.Name, err)
	}
	reporter.Finish()

	logger.Debug().Str("file", target).Int64("bytes", written).Msg("Saved download")
	return target, nil
}

func (s *LocalSaver) reporter(name string) progress.Reporter {
	var rs []progress.Reporter
	if s.ShowProgress {
		rs = append(rs, progress.NewCLIProgress())
	}
	if s.EventBus != nil {
		rs = append(rs, progress.NewEventProgress(s.EventBus, "download", name))
	}
	if len(rs) == 0 {
		return progress.NoOpProgress{}
	}
	return progress.Tee(rs...)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
