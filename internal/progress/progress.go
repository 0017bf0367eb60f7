// Package progress reports transfer progress: progress bars on a terminal,
// transfer events on the event bus otherwise.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/agentdesk/workdir/internal/events"
)

// Reporter receives the progress of one transfer.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// CLIProgress implements progress reporting for CLI mode using progress bars.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a CLI progress reporter drawing on stderr.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{out: os.Stderr}
}

// Start initializes the progress bar with total size and description. A
// negative total draws a spinner.
func (p *CLIProgress) Start(total int64, description string) {
	enableANSIOnWindows(os.Stderr)
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// EventProgress publishes TransferEvents for one file.
type EventProgress struct {
	eventBus  *events.EventBus
	direction string
	name      string
	total     int64
	current   int64
}

// NewEventProgress creates a reporter for a transfer of name in direction
// ("upload" or "download").
func NewEventProgress(eventBus *events.EventBus, direction, name string) *EventProgress {
	return &EventProgress{eventBus: eventBus, direction: direction, name: name}
}

// Start publishes the zero point.
func (p *EventProgress) Start(total int64, description string) {
	p.total = total
	p.current = 0
	p.eventBus.PublishTransfer(p.direction, p.name, 0, total, false, nil)
}

// Update publishes the running byte count.
func (p *EventProgress) Update(current int64) {
	p.current = current
	p.eventBus.PublishTransfer(p.direction, p.name, current, p.total, false, nil)
}

// Finish publishes completion.
func (p *EventProgress) Finish() {
	p.eventBus.PublishTransfer(p.direction, p.name, p.current, p.total, true, nil)
}

// Error publishes a failed completion.
func (p *EventProgress) Error(err error) {
	if err != nil {
		p.eventBus.PublishTransfer(p.direction, p.name, p.current, p.total, true, err)
	}
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

func (NoOpProgress) Start(total int64, description string) {}
func (NoOpProgress) Update(current int64)                  {}
func (NoOpProgress) Finish()                               {}
func (NoOpProgress) Error(err error)                       {}

// Tee fans every call out to all reporters.
func Tee(reporters ...Reporter) Reporter {
	return tee(reporters)
}

type tee []Reporter

func (t tee) Start(total int64, description string) {
	for _, r := range t {
		r.Start(total, description)
	}
}

func (t tee) Update(current int64) {
	for _, r := range t {
		r.Update(current)
	}
}

func (t tee) Finish() {
	for _, r := range t {
		r.Finish()
	}
}

func (t tee) Error(err error) {
	for _, r := range t {
		r.Error(err)
	}
}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	current  atomic.Int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, reporter Reporter) *ProgressReader {
	return &ProgressReader{reader: reader, reporter: reporter}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.reporter.Update(pr.current.Add(int64(n)))
	}
	return n, err
}

// BytesRead returns how much has been read so far.
func (pr *ProgressReader) BytesRead() int64 {
	return pr.current.Load()
}
