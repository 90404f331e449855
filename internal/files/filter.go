package files

import (
	"path/filepath"
	"strings"
)

// Filter decides which directory entries are candidates for tracking.
type Filter struct {
	extensions map[string]struct{}
	suffixes   []string
}

// NewFilter builds a filter from extensions (with or without the leading dot)
// and suffixes that mark files still being written.
func NewFilter(extensions, incompleteSuffixes []string) *Filter {
	f := &Filter{extensions: make(map[string]struct{}, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			f.extensions[ext] = struct{}{}
		}
	}
	for _, suffix := range incompleteSuffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix != "" {
			f.suffixes = append(f.suffixes, suffix)
		}
	}
	return f
}

// Match reports whether name should be tracked. Hidden files, names with an
// incomplete-download suffix and names that cannot be stored one per line are
// rejected.
func (f *Filter) Match(name string) bool {
	if !StorableName(name) || strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range f.suffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	ext := strings.TrimPrefix(filepath.Ext(lower), ".")
	if ext == "" {
		return false
	}
	_, ok := f.extensions[ext]
	return ok
}

// StorableName reports whether name can be kept in the known-file set: it
// must be non-empty and free of slashes and line breaks.
func StorableName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "\n\r/")
}
