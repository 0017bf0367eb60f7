package localfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/agentdesk/workdir/internal/models"
)

// FileEntry represents a file or directory in the local filesystem.
type FileEntry struct {
	Path    string      // Full path to the file
	Name    string      // Base name of the file
	Size    int64       // Size in bytes (0 for directories)
	IsDir   bool        // True if this is a directory
	ModTime time.Time   // Last modification time
	Mode    fs.FileMode // File mode/permissions
}

// UploadFile describes the entry as an upload part that opens the file
// lazily.
func (e FileEntry) UploadFile() models.UploadFile {
	path := e.Path
	return models.UploadFile{
		Name: e.Name,
		Size: e.Size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// ListDirectory returns the contents of a directory, filtered by options,
// in the filesystem's native order.
func ListDirectory(path string, opts ListOptions) ([]FileEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	result := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()

		if !opts.IncludeHidden && IsHiddenName(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Skip entries we can't stat (permission issues, etc.)
			continue
		}

		result = append(result, newEntry(filepath.Join(path, name), info))
	}

	return result, nil
}

// ExpandPaths turns command-line arguments into the regular files to upload.
// A file argument is taken as is; a directory argument contributes its
// immediate regular files (subdirectories are not descended into). Each
// resulting file appears once even if named twice.
func ExpandPaths(args []string, opts ExpandOptions) ([]FileEntry, error) {
	var out []FileEntry
	seen := make(map[string]bool)

	add := func(e FileEntry) {
		abs, err := filepath.Abs(e.Path)
		if err != nil {
			abs = e.Path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, e)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				return nil, fmt.Errorf("%s is not a regular file", arg)
			}
			add(newEntry(arg, info))
			continue
		}

		children, err := ListDirectory(arg, ListOptions{IncludeHidden: opts.IncludeHidden})
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		for _, c := range children {
			if c.Mode.IsRegular() {
				add(c)
			}
		}
	}

	return out, nil
}

func newEntry(path string, info fs.FileInfo) FileEntry {
	e := FileEntry{
		Path:    path,
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Mode:    info.Mode(),
	}
	if !e.IsDir {
		e.Size = info.Size()
	}
	return e
}
