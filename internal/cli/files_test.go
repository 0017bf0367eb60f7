package cli

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentdesk/workdir/internal/config"
	"github.com/agentdesk/workdir/internal/constants"
	"github.com/agentdesk/workdir/internal/models"
	"github.com/agentdesk/workdir/internal/services"
	"github.com/agentdesk/workdir/internal/state"
	"github.com/agentdesk/workdir/internal/testserver"
)

// runCLI executes the root command with args against srv (nil for none)
// and a config path that does not exist.
func runCLI(t *testing.T, srv *testserver.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvServerURL, "")
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")
	t.Setenv(config.EnvConfigPath, "")
	t.Cleanup(func() { logger = nil })

	root := NewRootCmd()
	AddCommands(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	full := append([]string{}, args...)
	if !hasFlag(args, "--config") {
		full = append(full, "--config", filepath.Join(t.TempDir(), "config.ini"))
	}
	if srv != nil {
		full = append(full, "--url", srv.URL)
	}
	root.SetArgs(full)

	err := root.Execute()
	return out.String(), err
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func withStdin(t *testing.T, input string) {
	t.Helper()
	old := stdin
	stdin = strings.NewReader(input)
	t.Cleanup(func() { stdin = old })
}

func TestLs_ListsRoot(t *testing.T) {
	srv := testserver.New(t)
	srv.WriteFile(t, "a.txt", []byte("hello"))
	srv.Mkdir(t, "docs")

	out, err := runCLI(t, srv, "ls")
	if err != nil {
		t.Fatalf("ls failed: %v\n%s", err, out)
	}

	for _, want := range []string{"Directory: /", "docs/", "a.txt", "5 Bytes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "docs/") > strings.Index(out, "a.txt") {
		t.Errorf("directories should be listed first:\n%s", out)
	}
}

func TestLs_SortFilterAndPath(t *testing.T) {
	srv := testserver.New(t)
	srv.WriteFile(t, "docs/small.md", []byte("1"))
	srv.WriteFile(t, "docs/big.md", []byte("0123456789"))
	srv.WriteFile(t, "docs/skip.txt", []byte("x"))

	out, err := runCLI(t, srv, "files", "list", "--path", "/docs", "--sort", "size", "--desc", "--include", "*.md")
	if err != nil {
		t.Fatalf("list failed: %v\n%s", err, out)
	}

	if !strings.Contains(out, "Directory: /docs") {
		t.Errorf("expected /docs header:\n%s", out)
	}
	if strings.Contains(out, "skip.txt") {
		t.Errorf("skip.txt should be filtered out:\n%s", out)
	}
	if strings.Index(out, "big.md") > strings.Index(out, "small.md") {
		t.Errorf("expected big.md before small.md in size desc order:\n%s", out)
	}
	if !strings.Contains(out, "Filtered: 2 of 3 entries match filters") {
		t.Errorf("expected filter summary:\n%s", out)
	}

	if got := srv.RequestsTo(constants.EndpointListFiles); len(got) != 1 {
		t.Errorf("expected one list request, got %d", len(got))
	}
}

func TestLs_ServerError(t *testing.T) {
	srv := testserver.New(t)
	srv.FailNext(constants.EndpointListFiles, testserver.Failure{Status: http.StatusForbidden, Body: `{"error":"access denied"}`})

	_, err := runCLI(t, srv, "ls")
	if err == nil {
		t.Fatal("expected ls to fail")
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("error should carry the server message, got %v", err)
	}
}

func TestLs_InvalidSort(t *testing.T) {
	srv := testserver.New(t)
	if _, err := runCLI(t, srv, "ls", "--sort", "type"); err == nil {
		t.Fatal("expected an error for an unknown sort column")
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("no request should be sent, got %d", n)
	}
}

func TestPut_UploadsFiles(t *testing.T) {
	srv := testserver.New(t)
	srv.Mkdir(t, "inputs")

	local := filepath.Join(t.TempDir(), "up.txt")
	if err := os.WriteFile(local, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, srv, "put", local, "--path", "/inputs")
	if err != nil {
		t.Fatalf("put failed: %v\n%s", err, out)
	}
	if !srv.Exists("inputs/up.txt") {
		t.Error("file was not uploaded into /inputs")
	}
	if !strings.Contains(out, "Uploaded 1 of 1 file(s) to /inputs") {
		t.Errorf("expected summary line:\n%s", out)
	}
}

func TestPut_ServerRejectsOne(t *testing.T) {
	srv := testserver.New(t)
	srv.RejectUpload("bad.txt", "quota exceeded")

	dir := t.TempDir()
	for _, name := range []string{"good.txt", "bad.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := runCLI(t, srv, "files", "upload", dir)
	if err == nil || !strings.Contains(err.Error(), "1 file(s) were not uploaded") {
		t.Fatalf("expected partial failure error, got %v\n%s", err, out)
	}
	if !srv.Exists("good.txt") || srv.Exists("bad.txt") {
		t.Error("only good.txt should have been stored")
	}
	if !strings.Contains(out, "Uploaded 1 of 2 file(s)") {
		t.Errorf("expected summary line:\n%s", out)
	}
}

func TestGet_DownloadsIntoOutdir(t *testing.T) {
	srv := testserver.New(t)
	srv.WriteFile(t, "a.txt", []byte("hello"))

	outDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(outDir, "a.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, srv, "get", "a.txt", "--outdir", outDir)
	if err != nil {
		t.Fatalf("get failed: %v\n%s", err, out)
	}

	got, err := os.ReadFile(filepath.Join(outDir, "a (1).txt"))
	if err != nil {
		t.Fatalf("expected renamed download: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q, want hello", got)
	}
	if old, _ := os.ReadFile(filepath.Join(outDir, "a.txt")); string(old) != "old" {
		t.Error("existing file must not be overwritten")
	}
	if !strings.Contains(out, "✓ a.txt") {
		t.Errorf("expected success line:\n%s", out)
	}
}

func TestGet_Overwrite(t *testing.T) {
	srv := testserver.New(t)
	srv.WriteFile(t, "a.txt", []byte("hello"))

	outDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(outDir, "a.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if out, err := runCLI(t, srv, "files", "download", "a.txt", "--outdir", outDir, "--overwrite"); err != nil {
		t.Fatalf("download failed: %v\n%s", err, out)
	}
	if got, _ := os.ReadFile(filepath.Join(outDir, "a.txt")); string(got) != "hello" {
		t.Errorf("content = %q, want hello", got)
	}
}

func TestRm_Yes(t *testing.T) {
	srv := testserver.New(t)
	srv.WriteFile(t, "a.txt", []byte("x"))

	out, err := runCLI(t, srv, "rm", "a.txt", "--yes")
	if err != nil {
		t.Fatalf("rm failed: %v\n%s", err, out)
	}
	if srv.Exists("a.txt") {
		t.Error("a.txt should be deleted")
	}
	if !strings.Contains(out, "Deleted /a.txt") {
		t.Errorf("expected confirmation line:\n%s", out)
	}
}

func TestRm_PromptDeclined(t *testing.T) {
	srv := testserver.New(t)
	srv.WriteFile(t, "a.txt", []byte("x"))
	withStdin(t, "n\n")

	out, err := runCLI(t, srv, "files", "delete", "a.txt")
	if err != nil {
		t.Fatalf("declined delete should not fail: %v", err)
	}
	if !srv.Exists("a.txt") {
		t.Error("a.txt must survive a declined delete")
	}
	if !strings.Contains(out, "Skipped /a.txt") {
		t.Errorf("expected skip line:\n%s", out)
	}
	if n := len(srv.RequestsTo(constants.EndpointDeleteFile)); n != 0 {
		t.Errorf("no delete request expected, got %d", n)
	}
}

func TestRm_NotFound(t *testing.T) {
	srv := testserver.New(t)

	_, err := runCLI(t, srv, "rm", "missing.txt", "--yes")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte("[browser]\nsort_by = type\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, nil, "ls", "--config", path)
	if !errors.Is(err, config.ErrInvalidSortBy) {
		t.Fatalf("expected ErrInvalidSortBy, got %v", err)
	}
}

func TestSortOverride(t *testing.T) {
	cfg := config.NewConfig()

	tests := []struct {
		name  string
		flags listFlags
		want  state.SortState
	}{
		{"none", listFlags{}, state.SortState{}},
		{"column", listFlags{sortBy: "size", sortSet: true}, state.SortState{By: state.SortBySize, Direction: state.Ascending}},
		{"column desc", listFlags{sortBy: "date", sortSet: true, desc: true, descSet: true}, state.SortState{By: state.SortByDate, Direction: state.Descending}},
		{"desc only", listFlags{desc: true, descSet: true}, state.SortState{By: state.SortByName, Direction: state.Descending}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.sortOverride(cfg)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("sortOverride() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPrintListing(t *testing.T) {
	modified := models.Timestamp{Time: time.Date(2024, 3, 5, 14, 7, 0, 0, time.Local)}
	listing := models.DirectoryListing{CurrentPath: "/out"}
	entries := []models.FileEntry{
		{Name: "logs", Path: "/out/logs", IsDir: true, Modified: modified},
		{Name: "ok.txt", Path: "/out/ok.txt", Size: 1536, Modified: modified, UploadStatus: models.UploadSuccess},
		{Name: "bad.txt", Path: "/out/bad.txt", Size: 10, UploadStatus: models.UploadFailed},
		{Name: strings.Repeat("n", 50), Path: "/out/long"},
	}

	var buf bytes.Buffer
	printListing(&buf, listing, entries)
	out := buf.String()

	for _, want := range []string{
		"Directory: /out",
		"logs/",
		"1.5 KB",
		"Mar 5, 2024, 02:07 PM",
		"✓  ok.txt",
		"✗  bad.txt",
		strings.Repeat("n", 37) + "...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printListing(&buf, models.DirectoryListing{}, nil)
	if !strings.Contains(buf.String(), "Directory: /") || !strings.Contains(buf.String(), "(empty)") {
		t.Errorf("unexpected empty listing output:\n%s", buf.String())
	}
}
