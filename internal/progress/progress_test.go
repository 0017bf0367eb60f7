package progress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/agentdesk/workdir/internal/events"
)

type recordingReporter struct {
	started  int64
	updates  []int64
	finished bool
	err      error
}

func (r *recordingReporter) Start(total int64, description string) { r.started = total }
func (r *recordingReporter) Update(current int64)                  { r.updates = append(r.updates, current) }
func (r *recordingReporter) Finish()                               { r.finished = true }
func (r *recordingReporter) Error(err error)                       { r.err = err }

func TestProgressReader(t *testing.T) {
	rec := &recordingReporter{}
	pr := NewProgressReader(strings.NewReader("hello world"), rec)

	buf := make([]byte, 4)
	var out bytes.Buffer
	for {
		n, err := pr.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	if out.String() != "hello world" {
		t.Errorf("content = %q", out.String())
	}
	if pr.BytesRead() != 11 {
		t.Errorf("BytesRead() = %d, want 11", pr.BytesRead())
	}
	if last := rec.updates[len(rec.updates)-1]; last != 11 {
		t.Errorf("last update = %d, want 11", last)
	}
}

func TestTee(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	r := Tee(a, b, NoOpProgress{})

	r.Start(10, "x")
	r.Update(5)
	r.Finish()
	r.Error(errors.New("boom"))

	for _, rec := range []*recordingReporter{a, b} {
		if rec.started != 10 || len(rec.updates) != 1 || !rec.finished || rec.err == nil {
			t.Errorf("reporter not fully driven: %+v", rec)
		}
	}
}

func TestEventProgress(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventTransfer)

	p := NewEventProgress(bus, "download", "a.txt")
	p.Start(100, "a.txt")
	p.Update(40)
	p.Finish()

	var got []*events.TransferEvent
	for len(ch) > 0 {
		got = append(got, (<-ch).(*events.TransferEvent))
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[1].Bytes != 40 || got[1].Total != 100 || got[1].Done {
		t.Errorf("unexpected update event %+v", got[1])
	}
	if !got[2].Done || got[2].Direction != "download" || got[2].Name != "a.txt" {
		t.Errorf("unexpected final event %+v", got[2])
	}
}

func TestUploadUI_NonTerminal(t *testing.T) {
	var out bytes.Buffer
	ui := newUploadUI(&out, false, 2, "/docs")

	r := ui.WrapPart("a.txt", 3, strings.NewReader("abc"))
	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatal(err)
	}
	r = ui.WrapPart("b.txt", 2, strings.NewReader("xy"))
	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatal(err)
	}

	ui.Complete(map[string]string{"b.txt": "quota"}, nil)
	ui.Wait()

	text := out.String()
	for _, want := range []string{
		"Uploading [1/2]: a.txt",
		"Uploading [2/2]: b.txt",
		"✓ a.txt → /docs",
		"✗ b.txt → /docs: quota",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	ui.mu.Lock()
	sent := ui.bars["a.txt"].Sent()
	ui.mu.Unlock()
	if sent != 3 {
		t.Errorf("a.txt sent = %d, want 3", sent)
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"/", 3, "/"},
		{"/docs", 3, "/docs"},
		{"/a/b/c/d/file.txt", 3, "…/c/d/file.txt"},
	}
	for _, tt := range tests {
		if got := truncatePath(tt.in, tt.max); got != tt.want {
			t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
