// Package paths picks local file names for downloads.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileForDownload is one work-dir file headed for a local path.
type FileForDownload struct {
	RemotePath string // Path in the working directory
	Name       string // Entry name
	LocalPath  string // Full local destination path
	Size       int64  // File size in bytes, -1 if unknown
}

// ResolveCollisions makes the LocalPaths of a batch unique. The first file
// keeps its path; later files with the same path get " (2)", " (3)", ...
// before the extension.
//
// Returns the modified list (same slice, modified in place) and the number
// of files that were renamed.
func ResolveCollisions(files []FileForDownload) ([]FileForDownload, int) {
	taken := make(map[string]bool, len(files))
	for _, f := range files {
		taken[f.LocalPath] = true
	}

	renamed := 0
	seen := make(map[string]bool, len(files))
	for i := range files {
		f := &files[i]
		if !seen[f.LocalPath] {
			seen[f.LocalPath] = true
			continue
		}
		original := f.LocalPath
		for n := 2; ; n++ {
			candidate := withSuffix(original, n)
			if !taken[candidate] {
				f.LocalPath = candidate
				taken[candidate] = true
				seen[candidate] = true
				break
			}
		}
		renamed++
	}

	return files, renamed
}

// UniquePath returns path unchanged if exists reports it free, otherwise the
// first "name (n).ext" with n >= 1 that is free. A nil exists checks the
// local filesystem.
func UniquePath(path string, exists func(string) bool) string {
	if exists == nil {
		exists = fileExists
	}
	if !exists(path) {
		return path
	}
	for n := 1; ; n++ {
		candidate := withSuffix(path, n)
		if !exists(candidate) {
			return candidate
		}
	}
}

func withSuffix(path string, n int) string {
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
