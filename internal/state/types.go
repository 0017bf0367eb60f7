// Package state holds the work-dir browser session: the current listing,
// navigation history and sort order of one open browser, and the operations
// that change them. Changes are published on the event bus so any frontend
// can follow along.
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agentdesk/workdir/internal/api"
	"github.com/agentdesk/workdir/internal/events"
	"github.com/agentdesk/workdir/internal/logging"
	"github.com/agentdesk/workdir/internal/models"
)

var (
	// ErrSessionClosed is returned by operations on a closed browser, and by
	// operations whose session was closed while they were in flight.
	ErrSessionClosed = errors.New("browser session is closed")

	// ErrSuperseded is returned when a listing response arrives after a newer
	// listing request was dispatched. The response is discarded.
	ErrSuperseded = errors.New("response superseded by a newer request")

	// ErrNotConfirmed is returned when the user declines a delete.
	ErrNotConfirmed = errors.New("delete not confirmed")
)

// Phase is where a navigation action stands within an open session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseErrored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Backend is the work-dir service the browser talks to. *api.Client
// implements it.
type Backend interface {
	ListDirectory(ctx context.Context, dirPath string) (*models.DirectoryListing, error)
	DeleteFile(ctx context.Context, filePath, currentPath string) error
	UploadFiles(ctx context.Context, dir string, files []models.UploadFile, progress api.PartProgress) (*models.UploadResponse, error)
	DownloadFile(ctx context.Context, filePath string) (io.ReadCloser, int64, error)
}

// Confirmer asks the user whether entry may be deleted.
type Confirmer interface {
	Confirm(ctx context.Context, entry models.FileEntry) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, entry models.FileEntry) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, entry models.FileEntry) (bool, error) {
	return f(ctx, entry)
}

// AlwaysConfirm approves every delete (the CLI's --yes).
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, models.FileEntry) (bool, error) {
	return true, nil
})

// Saver stores downloaded bytes somewhere the user can reach them and
// returns where they went.
type Saver interface {
	Save(ctx context.Context, entry models.FileEntry, r io.Reader, size int64) (string, error)
}

// Options configures a Browser. The zero value is usable: no events, no
// logging, every delete refused, downloads unavailable.
type Options struct {
	Logger   *logging.Logger
	EventBus *events.EventBus

	Confirmer Confirmer
	Saver     Saver

	// RequestTimeout bounds list and delete requests. Zero means no timeout.
	// Uploads and downloads are bounded only by cancellation.
	RequestTimeout time.Duration

	// Sort seeds the session's sort state.
	Sort SortState

	// StartPath is fetched by the first Open. Empty is the root.
	StartPath string

	// UploadProgress, if set, wraps each file as its part is streamed.
	UploadProgress api.PartProgress
}

// UploadResult is the outcome of one UploadFiles call.
type UploadResult struct {
	// Rejected files never left the client.
	Rejected []*api.ValidationError

	// Sent is the number of files included in the request.
	Sent int

	// Failed is the server-reported failure list.
	Failed []models.UploadFailure

	// Listing is the directory returned by the server, entries tagged with
	// their upload status.
	Listing *models.DirectoryListing

	// Applied is false when a newer listing request overtook the upload and
	// the returned listing was not shown.
	Applied bool
}

// Succeeded returns how many sent files the server accepted.
func (r *UploadResult) Succeeded() int {
	return r.Sent - len(r.Failed)
}
