package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/agentdesk/workdir/internal/config"
	"github.com/agentdesk/workdir/internal/constants"
	"github.com/agentdesk/workdir/internal/http"
	"github.com/agentdesk/workdir/internal/logging"
	"github.com/agentdesk/workdir/internal/models"
)

// HeaderRequestID carries the per-call id that also appears in log lines.
const HeaderRequestID = "X-Request-ID"

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("retry: " + msg)
}

// PartProgress wraps the reader of each uploaded file as its multipart part
// is streamed. Returning r unchanged is valid.
type PartProgress func(name string, size int64, r io.Reader) io.Reader

// Client talks to the work-dir endpoints of an agent web UI backend.
type Client struct {
	listClient     *nethttp.Client // retry-wrapped; listings only
	requestClient  *nethttp.Client // delete; never retried
	transferClient *nethttp.Client // uploads and downloads; never retried
	baseURL        string
	username       string
	password       string
	logger         *logging.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, fmt.Errorf("server base URL is empty: set [server] url or %s", config.EnvServerURL)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	requestClient, err := http.ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	transferClient, err := http.CreateTransferClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure transfer client: %w", err)
	}

	// MaxRetries is 0 unless the user opts in, and only listings are ever
	// retried: delete, upload and download are attempted exactly once.
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = requestClient
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand the last response back untouched so its body can be reported
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		listClient:     retryClient.StandardClient(),
		requestClient:  requestClient,
		transferClient: transferClient,
		baseURL:        strings.TrimSuffix(cfg.ServerURL, "/"),
		username:       cfg.Username,
		password:       cfg.Password,
		logger:         logger,
	}, nil
}

// BaseURL returns the server root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// encodeComponent percent-encodes a query value the way browsers encode a
// URI component (space as %20, not +).
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// doRequest builds and sends one request, tagging it with a fresh request id.
// Transport failures come back as *NetworkError; the response is returned
// as-is for any status.
func (c *Client) doRequest(ctx context.Context, client *nethttp.Client, op, method, endpoint string, body io.Reader, contentType string) (*nethttp.Response, error) {
	requestID := uuid.NewString()
	log := c.logger.WithFields(map[string]string{"request_id": requestID, "op": op})

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	log.Debug().Str("method", method).Str("endpoint", endpoint).Msg("Sending request")

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Debug().Err(err).Msg("Request aborted")
		} else {
			log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("Request failed")
		}
		return nil, &NetworkError{Op: op, Err: err}
	}

	ev := log.Debug()
	if !isSuccess(resp.StatusCode) {
		ev = log.Warn()
	}
	ev.Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Response received")

	return resp, nil
}

// ListDirectory fetches the listing of dirPath. An empty path is the root.
func (c *Client) ListDirectory(ctx context.Context, dirPath string) (*models.DirectoryListing, error) {
	const op = "list directory"

	endpoint := constants.EndpointListFiles + "?path=" + encodeComponent(dirPath)
	resp, err := c.doRequest(ctx, c.listClient, op, nethttp.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, newServerError(op, resp)
	}

	var lr models.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response: " + err.Error()}
	}
	if lr.Data == nil {
		return nil, &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "response has no data"}
	}
	if lr.Data.Entries == nil {
		lr.Data.Entries = []models.FileEntry{}
	}

	return lr.Data, nil
}

// DeleteFile deletes the entry at filePath; currentPath is the directory the
// user is looking at.
func (c *Client) DeleteFile(ctx context.Context, filePath, currentPath string) error {
	const op = "delete file"

	payload, err := json.Marshal(models.DeleteRequest{Path: filePath, CurrentPath: currentPath})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := c.doRequest(ctx, c.requestClient, op, nethttp.MethodPost, constants.EndpointDeleteFile, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return newServerError(op, resp)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))

	return nil
}

// UploadFiles sends all files in one multipart request to dir. The body is
// streamed: each file is opened only when its part is written.
//
// A 2xx response whose body has no listing is a *ServerError carrying the
// server's aggregate error message; the decoded response is still returned
// so the failure list can be reported.
func (c *Client) UploadFiles(ctx context.Context, dir string, files []models.UploadFile, progress PartProgress) (*models.UploadResponse, error) {
	const op = "upload files"

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUploadBody(mw, dir, files, progress)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	resp, err := c.doRequest(ctx, c.transferClient, op, nethttp.MethodPost, constants.EndpointUploadFiles, pr, mw.FormDataContentType())
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, newServerError(op, resp)
	}

	var ur models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response: " + err.Error()}
	}
	if ur.Data == nil {
		msg := ur.Error
		if msg == "" {
			msg = "upload response has no listing"
		}
		return &ur, &ServerError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if ur.Data.Entries == nil {
		ur.Data.Entries = []models.FileEntry{}
	}

	return &ur, nil
}

func writeUploadBody(mw *multipart.Writer, dir string, files []models.UploadFile, progress PartProgress) error {
	if err := mw.WriteField(constants.UploadFieldPath, dir); err != nil {
		return err
	}
	for _, f := range files {
		if err := writeUploadPart(mw, f, progress); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

func writeUploadPart(mw *multipart.Writer, f models.UploadFile, progress PartProgress) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	part, err := mw.CreateFormFile(constants.UploadFieldFiles, f.Name)
	if err != nil {
		return err
	}

	var r io.Reader = rc
	if progress != nil {
		r = progress(f.Name, f.Size, rc)
	}
	_, err = io.Copy(part, r)
	return err
}

// DownloadFile opens the bytes of the file at filePath. The caller must close
// the returned reader. size is -1 when the server does not send a length.
func (c *Client) DownloadFile(ctx context.Context, filePath string) (io.ReadCloser, int64, error) {
	const op = "download file"

	endpoint := constants.EndpointDownloadFile + "?path=" + encodeComponent(filePath)
	resp, err := c.doRequest(ctx, c.transferClient, op, nethttp.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, 0, err
	}

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, 0, newServerError(op, resp)
	}

	return resp.Body, resp.ContentLength, nil
}
