package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UploadUI draws one mpb bar per file of a multipart upload. Files stream
// one after another inside a single request, so each bar is created when its
// part starts.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	totalFiles int
	dest       string
	started    int32 // Atomic counter for file index (1, 2, 3, ...)

	mu   sync.Mutex
	bars map[string]*FileBar
}

// FileBar is the bar of one uploaded file.
type FileBar struct {
	bar       *mpb.Bar
	ui        *UploadUI
	index     int
	name      string
	size      int64
	sent      atomic.Int64
	startTime time.Time
}

// NewUploadUI creates an upload UI for totalFiles files going to dest,
// drawing on stderr when it is a terminal.
func NewUploadUI(totalFiles int, dest string) *UploadUI {
	isTerminal := IsTerminal(os.Stderr)
	if isTerminal {
		enableANSIOnWindows(os.Stderr)
	}
	return newUploadUI(os.Stderr, isTerminal, totalFiles, dest)
}

func newUploadUI(out io.Writer, isTerminal bool, totalFiles int, dest string) *UploadUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		// Non-TTY: no bars, just text lines
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	if dest == "" {
		dest = "/"
	}
	return &UploadUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
		dest:       truncatePath(dest, 3),
		bars:       make(map[string]*FileBar),
	}
}

// WrapPart matches api.PartProgress: it starts the bar for name and counts
// the bytes read from r into it.
func (u *UploadUI) WrapPart(name string, size int64, r io.Reader) io.Reader {
	fb := u.AddFileBar(name, size)
	return &barReader{r: r, fb: fb, last: time.Now()}
}

// AddFileBar creates the bar for one file.
func (u *UploadUI) AddFileBar(name string, size int64) *FileBar {
	index := int(atomic.AddInt32(&u.started, 1))
	fb := &FileBar{ui: u, index: index, name: name, size: size, startTime: time.Now()}

	if u.isTerminal {
		fb.bar = u.progress.New(size,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("[%d/%d] %s (%.1f MiB) → %s",
					index, u.totalFiles, name, float64(size)/(1024*1024), u.dest), decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Uploading [%d/%d]: %s (%.1f MiB) → %s\n",
			index, u.totalFiles, name, float64(size)/(1024*1024), u.dest)
	}

	u.mu.Lock()
	u.bars[name] = fb
	u.mu.Unlock()
	return fb
}

// Complete records the server's verdict for every started file. failed maps
// a file name to the server's reason.
func (u *UploadUI) Complete(failed map[string]string, err error) {
	u.mu.Lock()
	bars := make([]*FileBar, 0, len(u.bars))
	for _, fb := range u.bars {
		bars = append(bars, fb)
	}
	u.mu.Unlock()

	for _, fb := range bars {
		fileErr := err
		if reason, ok := failed[fb.name]; ok && fileErr == nil {
			fileErr = fmt.Errorf("%s", reason)
		}
		fb.Complete(fileErr)
	}
}

// Complete marks the file as finished and prints a summary line.
func (f *FileBar) Complete(err error) {
	elapsed := time.Since(f.startTime)

	var msg string
	if err == nil {
		if f.bar != nil {
			f.bar.SetCurrent(f.size)
			f.bar.SetTotal(f.size, true)
		}
		msg = fmt.Sprintf("✓ %s → %s (%.1f MiB, %s)\n",
			f.name, f.ui.dest, float64(f.size)/(1024*1024), elapsed.Round(time.Millisecond))
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s → %s: %v\n", f.name, f.ui.dest, err)
	}

	f.ui.Writer().Write([]byte(msg))
}

// Sent returns the bytes streamed for this file so far.
func (f *FileBar) Sent() int64 {
	return f.sent.Load()
}

// Wait blocks until all progress bars complete
func (u *UploadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that prints above the progress bars.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal returns true if progress bars are active.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

type barReader struct {
	r    io.Reader
	fb   *FileBar
	last time.Time
}

func (b *barReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if n > 0 {
		b.fb.sent.Add(int64(n))
		if b.fb.bar != nil {
			now := time.Now()
			b.fb.bar.EwmaIncrBy(n, now.Sub(b.last))
			b.last = now
		}
	}
	return n, err
}

// truncatePath shortens a path to its last maxComponents components.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(p string, maxComponents int) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) <= maxComponents {
		return p
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
