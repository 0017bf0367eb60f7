package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/agentdesk/workdir/internal/api"
	"github.com/agentdesk/workdir/internal/config"
	"github.com/agentdesk/workdir/internal/logging"
	"github.com/agentdesk/workdir/internal/models"
	"github.com/agentdesk/workdir/internal/state"
	"github.com/agentdesk/workdir/internal/testserver"
)

func newTestService(t *testing.T, confirm state.Confirmer) (*FileService, *testserver.Server, string) {
	t.Helper()
	srv := testserver.New(t)

	cfg := config.NewConfig()
	cfg.ServerURL = srv.URL
	client, err := api.NewClient(cfg, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	saver := &LocalSaver{Dir: dir}
	b := state.NewBrowser(client, state.Options{Confirmer: confirm, Saver: saver})
	t.Cleanup(b.Close)

	return NewFileService(b, saver, logging.Nop()), srv, dir
}

func entryNames(entries []models.FileEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestFileService_ListFilters(t *testing.T) {
	fs, srv, _ := newTestService(t, nil)
	srv.WriteFile(t, "report.pdf", []byte("1"))
	srv.WriteFile(t, "notes.txt", []byte("2"))
	srv.Mkdir(t, "archive")

	if err := fs.Browser().Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := entryNames(fs.List(ListOptions{Include: []string{"*.pdf"}}))
	if !reflect.DeepEqual(got, []string{"archive", "report.pdf"}) {
		t.Errorf("List() = %v", got)
	}
}

func TestFileService_UploadDirectory(t *testing.T) {
	fs, srv, _ := newTestService(t, nil)
	if err := fs.Browser().Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	local := t.TempDir()
	for name, content := range map[string]string{"a.txt": "A", "b.txt": "BB", ".secret": "S"} {
		if err := os.WriteFile(filepath.Join(local, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := fs.Upload(context.Background(), []string{local}, false)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Sent != 2 || res.Succeeded() != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if !srv.Exists("a.txt") || !srv.Exists("b.txt") || srv.Exists(".secret") {
		t.Error("server contents do not match the upload")
	}
	reqs := srv.RequestsTo("/upload_work_dir_files")
	if len(reqs) != 1 {
		t.Errorf("expected one multipart request, got %d", len(reqs))
	}
}

func TestFileService_DownloadBatch(t *testing.T) {
	fs, srv, dir := newTestService(t, nil)
	srv.WriteFile(t, "a.txt", []byte("alpha"))
	srv.WriteFile(t, "b.txt", []byte("beta"))
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := fs.Browser().Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := fs.Download(context.Background(), []string{"a.txt", "b.txt"})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if readFile(t, filepath.Join(dir, "a.txt")) != "alpha" {
		t.Error("a.txt not downloaded")
	}
	if results[1].Location != filepath.Join(dir, "b (1).txt") || readFile(t, results[1].Location) != "beta" {
		t.Errorf("b.txt should not overwrite the local file, got %q", results[1].Location)
	}
	if readFile(t, filepath.Join(dir, "b.txt")) != "local" {
		t.Error("local file was overwritten")
	}
}

func TestFileService_DownloadUnknownName(t *testing.T) {
	fs, _, _ := newTestService(t, nil)
	if err := fs.Browser().Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := fs.Download(context.Background(), []string{"ghost.txt"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileService_PlanDownloads(t *testing.T) {
	fs := NewFileService(nil, nil, nil)
	planned, renamed := fs.PlanDownloads([]models.FileEntry{
		{Name: "out.txt", Path: "/a/out.txt"},
		{Name: "dir", Path: "/dir", IsDir: true},
		{Name: "out.txt", Path: "/b/out.txt"},
		{Name: "../bad", Path: "/bad"},
	}, "/dl")

	if renamed != 1 || len(planned) != 2 {
		t.Fatalf("planned=%+v renamed=%d", planned, renamed)
	}
	if planned[1].LocalPath != filepath.Join("/dl", "out (2).txt") {
		t.Errorf("second file = %q", planned[1].LocalPath)
	}
}

func TestFileService_Delete(t *testing.T) {
	asked := 0
	confirm := state.ConfirmFunc(func(ctx context.Context, e models.FileEntry) (bool, error) {
		asked++
		return e.Name != "keep.txt", nil
	})
	fs, srv, _ := newTestService(t, confirm)
	srv.WriteFile(t, "gone.txt", []byte("1"))
	srv.WriteFile(t, "keep.txt", []byte("2"))
	if err := fs.Browser().Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := fs.Delete(context.Background(), []string{"gone.txt", "keep.txt"})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if asked != 2 {
		t.Errorf("confirmer asked %d times", asked)
	}
	if results[0].Err != nil || !errors.Is(results[1].Err, state.ErrNotConfirmed) {
		t.Errorf("unexpected results %+v", results)
	}
	if srv.Exists("gone.txt") || !srv.Exists("keep.txt") {
		t.Error("server contents do not match")
	}
}
