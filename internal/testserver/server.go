// Package testserver runs an in-process work-dir backend over a temporary
// directory. It serves the same four endpoints as the real agent UI and has
// hooks to inject failures and delays.
package testserver

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentdesk/workdir/internal/constants"
)

// modifiedLayout matches what a Python backend emits with isoformat().
const modifiedLayout = "2006-01-02T15:04:05.000000"

// Request is one request the server received.
type Request struct {
	Method   string
	Endpoint string
	Path     string // "path" query or form value
	Body     map[string]string
	Files    []string // uploaded file names, in order
	Header   http.Header
}

// Failure makes the next request to an endpoint fail with Status and Body.
type Failure struct {
	Status int
	Body   string
}

// Server is a fake work-dir backend.
type Server struct {
	*httptest.Server
	Root string

	mu          sync.Mutex
	requests    []Request
	failures    map[string][]Failure
	delay       func(endpoint, p string) time.Duration
	rejectNames map[string]string
}

type entryJSON struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

type listingJSON struct {
	Entries     []entryJSON `json:"entries"`
	CurrentPath string      `json:"current_path"`
	ParentPath  string      `json:"parent_path"`
}

type failedJSON struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// New starts a server rooted at a fresh temp dir. It is closed by t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		Root:        t.TempDir(),
		failures:    make(map[string][]Failure),
		rejectNames: make(map[string]string),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.inject)
	r.GET(constants.EndpointListFiles, s.handleList)
	r.POST(constants.EndpointDeleteFile, s.handleDelete)
	r.POST(constants.EndpointUploadFiles, s.handleUpload)
	r.GET(constants.EndpointDownloadFile, s.handleDownload)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// WriteFile creates a file under Root (parents included).
func (s *Server) WriteFile(t testing.TB, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// Mkdir creates a directory under Root.
func (s *Server) Mkdir(t testing.TB, rel string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(s.Root, filepath.FromSlash(rel)), 0o755); err != nil {
		t.Fatal(err)
	}
}

// Exists reports whether rel exists under Root.
func (s *Server) Exists(rel string) bool {
	_, err := os.Stat(filepath.Join(s.Root, filepath.FromSlash(rel)))
	return err == nil
}

// FailNext queues a failure for the next request to endpoint.
func (s *Server) FailNext(endpoint string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = append(s.failures[endpoint], f)
}

// SetDelay installs a per-request delay. The delay ends early if the client
// goes away.
func (s *Server) SetDelay(fn func(endpoint, p string) time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = fn
}

// RejectUpload makes uploads of name land in the failed list with reason.
func (s *Server) RejectUpload(name, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNames[name] = reason
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the requests received on endpoint.
func (s *Server) RequestsTo(endpoint string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Endpoint == endpoint {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(c *gin.Context) {
	c.Next()

	req := Request{
		Method:   c.Request.Method,
		Endpoint: c.FullPath(),
		Path:     c.Query("path"),
		Header:   c.Request.Header.Clone(),
	}
	if v, ok := c.Get("body"); ok {
		req.Body = v.(map[string]string)
	}
	if v, ok := c.Get("files"); ok {
		req.Files = v.([]string)
	}
	if v, ok := c.Get("formPath"); ok {
		req.Path = v.(string)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}

func (s *Server) inject(c *gin.Context) {
	endpoint := c.FullPath()

	s.mu.Lock()
	delayFn := s.delay
	var failure *Failure
	if q := s.failures[endpoint]; len(q) > 0 {
		failure = &q[0]
		s.failures[endpoint] = q[1:]
	}
	s.mu.Unlock()

	if delayFn != nil {
		if d := delayFn(endpoint, c.Query("path")); d > 0 {
			select {
			case <-time.After(d):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
	}

	if failure != nil {
		c.Data(failure.Status, "text/plain; charset=utf-8", []byte(failure.Body))
		c.Abort()
	}
}

// resolve maps a wire path ("" or "/" is the root) to a location under Root.
func (s *Server) resolve(p string) (string, string, error) {
	clean := path.Clean("/" + strings.TrimSpace(p))
	full := filepath.Join(s.Root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(s.Root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", errors.New("path escapes working directory")
	}
	return clean, full, nil
}

func (s *Server) listing(wirePath, full string) (listingJSON, error) {
	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return listingJSON{}, err
	}

	out := listingJSON{Entries: make([]entryJSON, 0, len(dirEntries)), CurrentPath: wirePath}
	if wirePath != "/" {
		out.ParentPath = path.Dir(wirePath)
	}
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		var size int64
		if !de.IsDir() {
			size = info.Size()
		}
		out.Entries = append(out.Entries, entryJSON{
			Name:     de.Name(),
			Path:     path.Join(wirePath, de.Name()),
			IsDir:    de.IsDir(),
			Size:     size,
			Modified: info.ModTime().UTC().Format(modifiedLayout),
		})
	}
	return out, nil
}

func (s *Server) handleList(c *gin.Context) {
	wirePath, full, err := s.resolve(c.Query("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	l, err := s.listing(wirePath, full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Directory not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": l})
}

func (s *Server) handleDelete(c *gin.Context) {
	var body struct {
		Path        string `json:"path"`
		CurrentPath string `json:"currentPath"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Set("body", map[string]string{"path": body.Path, "currentPath": body.CurrentPath})
	c.Set("formPath", body.Path)

	wirePath, full, err := s.resolve(body.Path)
	if err != nil || wirePath == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path"})
		return
	}
	if _, err := os.Stat(full); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if err := os.RemoveAll(full); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

func (s *Server) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dest := ""
	if v := form.Value[constants.UploadFieldPath]; len(v) > 0 {
		dest = v[0]
	}
	c.Set("formPath", dest)

	headers := form.File[constants.UploadFieldFiles]
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		names = append(names, h.Filename)
	}
	c.Set("files", names)

	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	wirePath, full, err := s.resolve(dest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	reject := make(map[string]string, len(s.rejectNames))
	for k, v := range s.rejectNames {
		reject[k] = v
	}
	s.mu.Unlock()

	failed := []failedJSON{}
	for _, h := range headers {
		name := filepath.Base(h.Filename)
		if reason, ok := reject[name]; ok {
			failed = append(failed, failedJSON{Name: name, Error: reason})
			continue
		}
		if err := c.SaveUploadedFile(h, filepath.Join(full, name)); err != nil {
			failed = append(failed, failedJSON{Name: name, Error: err.Error()})
		}
	}

	l, err := s.listing(wirePath, full)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": l, "failed": failed})
}

func (s *Server) handleDownload(c *gin.Context) {
	_, full, err := s.resolve(c.Query("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	info, err := os.Stat(full)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if info.IsDir() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot download a directory"})
		return
	}

	f, err := os.Open(full)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", "attachment; filename=\""+info.Name()+"\"")
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", io.Reader(f), nil)
}
