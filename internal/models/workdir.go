// Package models defines the wire and in-memory types of the work-dir browser.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// UploadStatus is the per-entry outcome tag set on listings returned by an upload.
type UploadStatus string

const (
	UploadNone    UploadStatus = ""
	UploadSuccess UploadStatus = "success"
	UploadFailed  UploadStatus = "failed"
)

// FileEntry is one file or directory as reported by the backend at fetch time.
type FileEntry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	IsDir    bool      `json:"is_dir"`
	Size     int64     `json:"size"`
	Modified Timestamp `json:"modified"`

	// UploadStatus is session-local and never sent by the server.
	UploadStatus UploadStatus `json:"-"`
}

// DirectoryListing is one directory snapshot. It is replaced wholesale on
// every navigation.
type DirectoryListing struct {
	CurrentPath string      `json:"current_path"`
	ParentPath  string      `json:"parent_path"`
	Entries     []FileEntry `json:"entries"`
}

// ListResponse is the envelope of GET /get_work_dir_files.
type ListResponse struct {
	Data *DirectoryListing `json:"data"`
}

// DeleteRequest is the body of POST /delete_work_dir_file.
type DeleteRequest struct {
	Path        string `json:"path"`
	CurrentPath string `json:"currentPath"`
}

// UploadFailure names one file the server refused.
type UploadFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// UploadResponse is the envelope of POST /upload_work_dir_files.
// Data may be absent when the whole upload failed; Error then carries the
// server's aggregate message.
type UploadResponse struct {
	Data   *DirectoryListing `json:"data"`
	Failed []UploadFailure   `json:"failed"`
	Error  string            `json:"error,omitempty"`
}

// FailedNames returns the set of names in the failure list.
func (r *UploadResponse) FailedNames() map[string]struct{} {
	names := make(map[string]struct{}, len(r.Failed))
	for _, f := range r.Failed {
		names[f.Name] = struct{}{}
	}
	return names
}

// UploadFile is one local file queued for upload. Open is called once, when
// the file's part is written to the request body.
type UploadFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Timestamp is the modified time of an entry. Backends differ in how they
// encode it, so decoding accepts several layouts.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses s with the accepted layouts. A bare number is taken
// as Unix epoch seconds (fractional allowed). Naive layouts are read as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return Timestamp{time.Unix(sec, nsec).UTC()}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON accepts a string in any supported layout, a number, or null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	} else {
		raw = string(b)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
