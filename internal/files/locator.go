package files

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Kind distinguishes how a tracked directory and its entries are reached.
type Kind int

const (
	// KindPath is a directly addressable filesystem path.
	KindPath Kind = iota
	// KindHandle is an opaque scoped handle resolved through a tree.Tree.
	KindHandle
)

func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindHandle:
		return "handle"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SchemeMount addresses a directory through the generic tree interface
// instead of the native filesystem, e.g. mount:///mnt/share/incoming.
const SchemeMount = "mount"

var (
	ErrEmptyLocator      = errors.New("locator is empty")
	ErrUnsupportedScheme = errors.New("unsupported locator scheme")
)

// Locator identifies a tracked directory or one of its entries.
type Locator struct {
	kind  Kind
	value string
}

// PathLocator wraps an absolute filesystem path.
func PathLocator(path string) Locator {
	return Locator{kind: KindPath, value: filepath.Clean(path)}
}

// HandleLocator wraps an opaque handle URI.
func HandleLocator(uri string) Locator {
	return Locator{kind: KindHandle, value: strings.TrimRight(uri, "/")}
}

// ParseLocator interprets a configured target. Plain paths and file:// URIs
// become path locators; mount:// URIs become handle locators.
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, ErrEmptyLocator
	}
	if !strings.Contains(raw, "://") {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Locator{}, fmt.Errorf("resolve %q: %w", raw, err)
		}
		return PathLocator(abs), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, fmt.Errorf("parse locator %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		if u.Path == "" {
			return Locator{}, ErrEmptyLocator
		}
		return PathLocator(u.Path), nil
	case SchemeMount:
		root := u.Path
		if root == "" {
			return Locator{}, ErrEmptyLocator
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return Locator{}, fmt.Errorf("resolve %q: %w", root, err)
		}
		return HandleLocator((&url.URL{Scheme: SchemeMount, Path: filepath.ToSlash(abs)}).String()), nil
	default:
		return Locator{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (l Locator) Kind() Kind { return l.kind }

func (l Locator) IsZero() bool { return l.value == "" }

func (l Locator) String() string { return l.value }

// Path returns the filesystem path for path locators.
func (l Locator) Path() (string, bool) {
	if l.kind != KindPath {
		return "", false
	}
	return l.value, true
}

// MountRoot returns the filesystem directory backing a mount:// handle.
func (l Locator) MountRoot() (string, bool) {
	if l.kind != KindHandle {
		return "", false
	}
	u, err := url.Parse(l.value)
	if err != nil || u.Scheme != SchemeMount {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// Child returns the locator of an entry directly inside l.
func (l Locator) Child(name string) Locator {
	if l.kind == KindPath {
		return PathLocator(filepath.Join(l.value, name))
	}
	return Locator{kind: KindHandle, value: l.value + "/" + url.PathEscape(name)}
}

func (l Locator) MarshalText() ([]byte, error) {
	return []byte(l.value), nil
}
