package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/agentdesk/workdir/internal/api"
	"github.com/agentdesk/workdir/internal/events"
	"github.com/agentdesk/workdir/internal/logging"
	"github.com/agentdesk/workdir/internal/models"
)

// Operation names used in logs and notifications.
const (
	OpFetch    = "fetch"
	OpDelete   = "delete"
	OpUpload   = "upload"
	OpDownload = "download"
)

// Browser is one work-dir browser. It is Closed until Open; every Open
// starts a fresh sub-session. Safe for concurrent use.
//
// Listing-producing requests (fetch, upload) carry a sequence number and a
// response is applied only if no newer one was dispatched since. Close
// cancels everything in flight.
type Browser struct {
	backend Backend
	opts    Options
	logger  *logging.Logger
	bus     *events.EventBus

	mu            sync.RWMutex
	open          bool
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	seq           uint64
	phase         Phase
	listing       models.DirectoryListing
	history       []string
	sort          SortState
	lastErr       error
}

// NewBrowser creates a closed Browser over backend.
func NewBrowser(backend Backend, opts Options) *Browser {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Browser{
		backend: backend,
		opts:    opts,
		logger:  logger,
		bus:     opts.EventBus,
		sort:    opts.Sort.normalized(),
		listing: models.DirectoryListing{CurrentPath: opts.StartPath},
	}
}

// Open starts a fresh sub-session: history is cleared and the last current
// path (root the first time) is fetched. Opening an open browser restarts it.
func (b *Browser) Open(ctx context.Context) error {
	b.mu.Lock()
	if b.open {
		b.cancelSession()
	}
	b.sessionCtx, b.cancelSession = context.WithCancel(context.Background())
	b.open = true
	// Anything still in flight from the previous sub-session is stale
	b.seq++
	b.history = nil
	b.listing.Entries = nil
	b.lastErr = nil
	b.phase = PhaseIdle
	startPath := b.listing.CurrentPath
	b.mu.Unlock()

	b.logger.Debug().Str("path", startPath).Msg("Browser opened")
	b.bus.PublishSession(true)

	_, err := b.FetchDirectory(ctx, startPath)
	return err
}

// Close cancels in-flight requests and discards the listing. The current
// path is kept so the next Open resumes there.
func (b *Browser) Close() {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return
	}
	b.open = false
	b.cancelSession()
	b.listing.Entries = nil
	b.phase = PhaseIdle
	current, parent := b.listing.CurrentPath, b.listing.ParentPath
	b.mu.Unlock()

	b.logger.Debug().Msg("Browser closed")
	b.bus.PublishListing(current, parent, 0, "close")
	b.bus.PublishSession(false)
}

// begin derives the context for one operation from the caller's context and
// the session, and takes a sequence number when listing is set.
func (b *Browser) begin(ctx context.Context, listing bool, withTimeout bool) (context.Context, context.CancelFunc, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil, nil, 0, ErrSessionClosed
	}

	var seq uint64
	if listing {
		b.seq++
		seq = b.seq
	}

	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.sessionCtx, cancel)
	cancelTimeout := context.CancelFunc(func() {})
	if withTimeout && b.opts.RequestTimeout > 0 {
		opCtx, cancelTimeout = context.WithTimeout(opCtx, b.opts.RequestTimeout)
	}

	return opCtx, func() {
		stop()
		cancelTimeout()
		cancel()
	}, seq, nil
}

// report logs a failed operation and publishes it as a notification.
func (b *Browser) report(op, summary string, err error) {
	kind := api.Classify(err)
	b.logger.Error().Err(err).Str("op", op).Str("kind", string(kind)).Msg(summary)
	b.bus.PublishNotification(events.ErrorLevel, op, string(kind), summary+": "+api.UserMessage(err), err)
}

func (b *Browser) notify(level events.Level, op, message string) {
	b.bus.PublishNotification(level, op, "", message, nil)
}

// FetchDirectory loads dirPath ("" is the root). On success the listing
// replaces the current one. On failure the entries are cleared (paths are
// kept), the error is logged and notified, and returned.
//
// If a newer listing request was dispatched while this one was in flight,
// the response is dropped and ErrSuperseded returned.
func (b *Browser) FetchDirectory(ctx context.Context, dirPath string) (*models.DirectoryListing, error) {
	opCtx, done, seq, err := b.begin(ctx, true, true)
	if err != nil {
		return nil, err
	}
	defer done()

	b.setLoading(seq, dirPath)

	listing, fetchErr := b.backend.ListDirectory(opCtx, dirPath)
	return b.applyFetch(seq, dirPath, listing, fetchErr)
}

func (b *Browser) setLoading(seq uint64, dirPath string) {
	b.mu.Lock()
	if seq == b.seq {
		b.phase = PhaseLoading
	}
	b.mu.Unlock()
	b.bus.PublishLoading(dirPath, true)
}

func (b *Browser) applyFetch(seq uint64, dirPath string, listing *models.DirectoryListing, fetchErr error) (*models.DirectoryListing, error) {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if seq != b.seq {
		b.mu.Unlock()
		b.logger.Debug().Str("path", dirPath).Uint64("seq", seq).Msg("Discarding stale listing")
		return nil, ErrSuperseded
	}

	if fetchErr != nil {
		if api.Classify(fetchErr) == api.KindCanceled {
			// Caller gave up; nothing failed on the server side
			b.phase = PhaseIdle
			b.mu.Unlock()
			b.bus.PublishLoading(dirPath, false)
			return nil, fetchErr
		}
		b.listing.Entries = []models.FileEntry{}
		b.phase = PhaseErrored
		b.lastErr = fetchErr
		current, parent := b.listing.CurrentPath, b.listing.ParentPath
		b.mu.Unlock()

		b.report(OpFetch, "Failed to load directory", fetchErr)
		b.bus.PublishLoading(dirPath, false)
		b.bus.PublishListing(current, parent, 0, OpFetch)
		return nil, fetchErr
	}

	oldPath := b.listing.CurrentPath
	b.listing = cloneListing(listing)
	b.phase = PhaseLoaded
	b.lastErr = nil
	out := cloneListing(&b.listing)
	b.mu.Unlock()

	b.logger.Debug().Str("path", out.CurrentPath).Int("entries", len(out.Entries)).Msg("Directory loaded")
	b.bus.PublishLoading(dirPath, false)
	if oldPath != out.CurrentPath {
		b.bus.PublishPath(oldPath, out.CurrentPath)
	}
	b.bus.PublishListing(out.CurrentPath, out.ParentPath, len(out.Entries), OpFetch)
	return &out, nil
}

// NavigateTo pushes the current path onto the history when dirPath differs
// from it, then fetches dirPath.
func (b *Browser) NavigateTo(ctx context.Context, dirPath string) (*models.DirectoryListing, error) {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if dirPath != b.listing.CurrentPath {
		b.history = append(b.history, b.listing.CurrentPath)
	}
	b.mu.Unlock()

	return b.FetchDirectory(ctx, dirPath)
}

// NavigateUp fetches the parent directory. At the root (empty parent path)
// it does nothing and returns nil, nil.
func (b *Browser) NavigateUp(ctx context.Context) (*models.DirectoryListing, error) {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return nil, ErrSessionClosed
	}
	parent := b.listing.ParentPath
	if parent == "" {
		b.mu.Unlock()
		return nil, nil
	}
	b.history = append(b.history, b.listing.CurrentPath)
	b.mu.Unlock()

	return b.FetchDirectory(ctx, parent)
}

// Back pops the most recent history entry and fetches it without recording
// a new one. With empty history it returns nil, nil.
func (b *Browser) Back(ctx context.Context) (*models.DirectoryListing, error) {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if len(b.history) == 0 {
		b.mu.Unlock()
		return nil, nil
	}
	prev := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	b.mu.Unlock()

	return b.FetchDirectory(ctx, prev)
}

// Refresh refetches the current directory.
func (b *Browser) Refresh(ctx context.Context) (*models.DirectoryListing, error) {
	return b.FetchDirectory(ctx, b.CurrentPath())
}

// ToggleSort applies a click on column and returns the new state.
func (b *Browser) ToggleSort(column SortKey) SortState {
	b.mu.Lock()
	b.sort = b.sort.Toggle(column)
	s := b.sort
	b.mu.Unlock()

	b.bus.PublishSort(string(s.By), string(s.Direction))
	return s
}

// SetSort replaces the sort state.
func (b *Browser) SetSort(s SortState) {
	s = s.normalized()
	b.mu.Lock()
	b.sort = s
	b.mu.Unlock()

	b.bus.PublishSort(string(s.By), string(s.Direction))
}

// DeleteEntry asks the Confirmer, then deletes entry on the server. On
// success every entry with the same path is removed from the listing; on
// failure the listing is left as it was. Without a Confirmer every delete is
// refused.
func (b *Browser) DeleteEntry(ctx context.Context, entry models.FileEntry) error {
	if !b.IsOpen() {
		return ErrSessionClosed
	}

	confirmer := b.opts.Confirmer
	if confirmer == nil {
		return ErrNotConfirmed
	}
	ok, err := confirmer.Confirm(ctx, entry)
	if err != nil {
		return fmt.Errorf("confirm delete: %w", err)
	}
	if !ok {
		b.logger.Debug().Str("path", entry.Path).Msg("Delete declined")
		return ErrNotConfirmed
	}

	opCtx, done, _, err := b.begin(ctx, false, true)
	if err != nil {
		return err
	}
	defer done()

	currentPath := b.CurrentPath()
	if err := b.backend.DeleteFile(opCtx, entry.Path, currentPath); err != nil {
		if !b.IsOpen() {
			return ErrSessionClosed
		}
		b.report(OpDelete, "Failed to delete "+entry.Name, err)
		return err
	}

	b.mu.Lock()
	b.listing.Entries = slices.DeleteFunc(slices.Clone(b.listing.Entries), func(e models.FileEntry) bool {
		return e.Path == entry.Path
	})
	current, parent, n := b.listing.CurrentPath, b.listing.ParentPath, len(b.listing.Entries)
	b.mu.Unlock()

	b.logger.Info().Str("path", entry.Path).Msg("Deleted")
	b.notify(events.InfoLevel, OpDelete, "Deleted "+entry.Name)
	b.bus.PublishListing(current, parent, n, OpDelete)
	return nil
}

// UploadFiles uploads files into the current directory in one request.
//
// Non-archive files over the size limit are rejected first, each with its
// own notification; if nothing is left no request is made. On success the
// returned listing replaces the current one (unless a newer listing request
// overtook it) with every entry tagged by upload outcome. A partial failure
// yields one aggregate notification.
func (b *Browser) UploadFiles(ctx context.Context, files []models.UploadFile) (*UploadResult, error) {
	if !b.IsOpen() {
		return nil, ErrSessionClosed
	}

	plan := PlanUpload(files)
	result := &UploadResult{Rejected: plan.Rejected, Sent: len(plan.Accepted)}

	for _, rej := range plan.Rejected {
		b.logger.Warn().Str("file", rej.Name).Msg(rej.Reason)
		b.bus.PublishNotification(events.WarnLevel, OpUpload, string(api.KindValidation), rej.Error(), rej)
	}
	if len(plan.Accepted) == 0 {
		return result, nil
	}

	opCtx, done, seq, err := b.begin(ctx, true, false)
	if err != nil {
		return nil, err
	}
	defer done()

	dest := b.CurrentPath()
	resp, err := b.backend.UploadFiles(opCtx, dest, plan.Accepted, b.opts.UploadProgress)
	if err != nil {
		if resp != nil {
			result.Failed = resp.Failed
		}
		if !b.IsOpen() {
			return result, ErrSessionClosed
		}
		b.report(OpUpload, "Upload failed", err)
		return result, err
	}

	result.Failed = resp.Failed
	result.Listing = TagUploadStatus(resp.Data, resp.Failed)

	b.mu.Lock()
	if b.open && seq == b.seq {
		b.listing = cloneListing(result.Listing)
		b.phase = PhaseLoaded
		b.lastErr = nil
		result.Applied = true
	}
	b.mu.Unlock()

	if result.Applied {
		b.bus.PublishListing(result.Listing.CurrentPath, result.Listing.ParentPath, len(result.Listing.Entries), OpUpload)
	} else {
		b.logger.Debug().Uint64("seq", seq).Msg("Upload listing superseded, not applied")
	}

	if len(resp.Failed) > 0 {
		msg := uploadSummary(result.Sent, resp.Failed)
		b.logger.Warn().Int("failed", len(resp.Failed)).Int("sent", result.Sent).Msg(msg)
		b.bus.PublishNotification(events.WarnLevel, OpUpload, string(api.KindServer), msg, nil)
	} else {
		b.logger.Info().Int("files", result.Sent).Str("path", dest).Msg("Upload complete")
		b.notify(events.InfoLevel, OpUpload, fmt.Sprintf("Uploaded %d file(s)", result.Sent))
	}

	return result, nil
}

// DownloadFile fetches entry's bytes and hands them to the Saver. It returns
// where the Saver put them. Nothing is retried.
func (b *Browser) DownloadFile(ctx context.Context, entry models.FileEntry) (string, error) {
	if !b.IsOpen() {
		return "", ErrSessionClosed
	}
	if entry.IsDir {
		err := &api.ValidationError{Name: entry.Name, Reason: "directories cannot be downloaded"}
		b.report(OpDownload, "Download failed", err)
		return "", err
	}
	if b.opts.Saver == nil {
		return "", errors.New("no download destination configured")
	}

	opCtx, done, _, err := b.begin(ctx, false, false)
	if err != nil {
		return "", err
	}
	defer done()

	rc, size, err := b.backend.DownloadFile(opCtx, entry.Path)
	if err != nil {
		if !b.IsOpen() {
			return "", ErrSessionClosed
		}
		b.report(OpDownload, "Failed to download "+entry.Name, err)
		return "", err
	}
	defer rc.Close()

	location, err := b.opts.Saver.Save(opCtx, entry, rc, size)
	if err != nil {
		if !b.IsOpen() {
			return "", ErrSessionClosed
		}
		b.report(OpDownload, "Failed to save "+entry.Name, err)
		return "", err
	}

	b.logger.Info().Str("path", entry.Path).Str("saved_to", location).Msg("Downloaded")
	b.notify(events.InfoLevel, OpDownload, "Saved "+entry.Name+" to "+location)
	return location, nil
}

// FindEntry looks up an entry of the current listing by name or path.
func (b *Browser) FindEntry(nameOrPath string) (models.FileEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.listing.Entries {
		if e.Name == nameOrPath || e.Path == nameOrPath {
			return e, true
		}
	}
	return models.FileEntry{}, false
}

// IsOpen reports whether the session is open.
func (b *Browser) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.open
}

// Phase returns the state of the latest navigation action.
func (b *Browser) Phase() Phase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.phase
}

// CurrentPath returns the directory being shown.
func (b *Browser) CurrentPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listing.CurrentPath
}

// ParentPath returns the parent of the current directory ("" at the root).
func (b *Browser) ParentPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listing.ParentPath
}

// History returns a copy of the navigation history, oldest first.
func (b *Browser) History() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.history)
}

// Sort returns the current sort state.
func (b *Browser) Sort() SortState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sort
}

// LastError returns the error of the last failed fetch, if the listing is
// in the errored phase.
func (b *Browser) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

// Listing returns a copy of the current listing in server order.
func (b *Browser) Listing() models.DirectoryListing {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneListing(&b.listing)
}

// Entries returns the current entries ordered by the session's sort state.
func (b *Browser) Entries() []models.FileEntry {
	b.mu.RLock()
	entries := b.listing.Entries
	s := b.sort
	b.mu.RUnlock()
	return SortEntries(entries, s.By, s.Direction)
}

func cloneListing(l *models.DirectoryListing) models.DirectoryListing {
	out := models.DirectoryListing{CurrentPath: l.CurrentPath, ParentPath: l.ParentPath}
	if l.Entries != nil {
		out.Entries = slices.Clone(l.Entries)
	}
	return out
}
