// Package api provides error types for work-dir backend responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/agentdesk/workdir/internal/constants"
)

// ErrorKind is the failure taxonomy used for notifications.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindNetwork    ErrorKind = "network"
	KindServer     ErrorKind = "server"
	KindValidation ErrorKind = "validation"
	KindCanceled   ErrorKind = "canceled"
	KindOther      ErrorKind = "other"
)

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx status or a 2xx body that could not be decoded.
// Message is what the server said, suitable for showing to a user.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// ValidationError is a client-side rejection; nothing was sent.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// Classify maps err onto the failure taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var (
		ve *ValidationError
		se *ServerError
		ne *NetworkError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &se):
		return KindServer
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &ne):
		return KindNetwork
	default:
		return KindOther
	}
}

// UserMessage returns the text a notification should show for err.
func UserMessage(err error) string {
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode == nethttp.StatusNotFound
}

// newServerError reads (a bounded amount of) a failed response body and
// extracts the server's message: JSON "message" or "error" when present,
// otherwise the trimmed text.
func newServerError(op string, resp *nethttp.Response) *ServerError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))
	return &ServerError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    extractMessage(body, resp.StatusCode),
	}
}

func extractMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	return nethttp.StatusText(status)
}
