package files

import (
	"sort"
	"time"
)

// Record describes one detected file. FileName is the deduplication key
// within a tracked directory; a same-name replacement is the same file.
type Record struct {
	FileName      string  `json:"file_name"`
	Locator       Locator `json:"locator"`
	LastModified  int64   `json:"last_modified"`
	Size          int64   `json:"size"`
	IsIncremental bool    `json:"is_incremental"`
}

// NewRecord builds a record for an entry of dir.
func NewRecord(dir Locator, name string, size int64, modTime time.Time) Record {
	return Record{
		FileName:     name,
		Locator:      dir.Child(name),
		LastModified: modTime.UnixMilli(),
		Size:         size,
	}
}

// ModTime returns LastModified as a time value.
func (r Record) ModTime() time.Time {
	return time.UnixMilli(r.LastModified)
}

// Names returns the file names of records in input order.
func Names(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.FileName)
	}
	return out
}

// SortedNames returns the members of set in lexical order.
func SortedNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
