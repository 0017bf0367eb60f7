package state

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/agentdesk/workdir/internal/constants"
	"github.com/agentdesk/workdir/internal/models"
)

// SortKey is a listing column.
type SortKey string

const (
	SortByName SortKey = "name"
	SortBySize SortKey = "size"
	SortByDate SortKey = "date"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ParseSortKey accepts name, size or date (case-insensitive). "modified" is
// an alias for date.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return SortByName, nil
	case "size":
		return SortBySize, nil
	case "date", "modified":
		return SortByDate, nil
	}
	return "", fmt.Errorf("unknown sort column %q (want name, size or date)", s)
}

// ParseSortDirection accepts asc or desc (case-insensitive).
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc":
		return Ascending, nil
	case "desc":
		return Descending, nil
	}
	return "", fmt.Errorf("unknown sort direction %q (want asc or desc)", s)
}

// SortState is the session's sort column and direction.
type SortState struct {
	By        SortKey
	Direction SortDirection
}

// DefaultSort is name ascending.
var DefaultSort = SortState{By: SortByName, Direction: Ascending}

func (s SortState) normalized() SortState {
	if s.By == "" {
		s.By = DefaultSort.By
	}
	if s.Direction == "" {
		s.Direction = DefaultSort.Direction
	}
	return s
}

// Toggle returns the state after clicking column: the same column flips
// direction, a new column starts ascending.
func (s SortState) Toggle(column SortKey) SortState {
	s = s.normalized()
	if column == s.By {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return s
	}
	return SortState{By: column, Direction: Ascending}
}

func (s SortState) String() string {
	s = s.normalized()
	return string(s.By) + " " + string(s.Direction)
}

// SortEntries returns a sorted copy of entries; the input is not modified.
// Directories always come before files. Within each group entries are
// ordered by the key (names with locale-aware collation), desc reversing the
// comparison. Entries that compare equal keep their input order.
func SortEntries(entries []models.FileEntry, by SortKey, dir SortDirection) []models.FileEntry {
	out := slices.Clone(entries)
	if out == nil {
		out = []models.FileEntry{}
	}

	var compareKey func(a, b models.FileEntry) int
	switch by {
	case SortBySize:
		compareKey = func(a, b models.FileEntry) int { return cmp.Compare(a.Size, b.Size) }
	case SortByDate:
		compareKey = func(a, b models.FileEntry) int { return a.Modified.Compare(b.Modified.Time) }
	default:
		// A Collator is not safe for concurrent use; one per call
		coll := collate.New(language.Und)
		compareKey = func(a, b models.FileEntry) int { return coll.CompareString(a.Name, b.Name) }
	}

	slices.SortStableFunc(out, func(a, b models.FileEntry) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		c := compareKey(a, b)
		if dir == Descending {
			return -c
		}
		return c
	})
	return out
}

// IsArchive reports whether the text after name's last dot is in the archive
// set. A name without a dot is compared whole, so a file called "zip" is an
// archive. Archives are exempt from the upload size limit and nothing else.
func IsArchive(name string) bool {
	ext := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		ext = name[i+1:]
	}
	return slices.Contains(constants.ArchiveExtensions, strings.ToLower(ext))
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatFileSize renders a byte count with 1024-based units and at most two
// decimals: 0 Bytes, 512 Bytes, 1.5 KB, 2 MB.
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}
	i := 0
	v := float64(size)
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatDate renders a modified time for listings, in local time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 2, 2006, 03:04 PM")
}
