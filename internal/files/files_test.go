package files_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dropwatch/internal/files"
)

func TestFilterMatch(t *testing.T) {
	f := files.NewFilter([]string{"jpg", ".JPEG", "png", "webp"}, []string{".tmp", ".download"})

	cases := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"B.JPG", true},
		{"c.jpeg", true},
		{"d.webp", true},
		{"e.gif", false},
		{".hidden.jpg", false},
		{"f.jpg.tmp", false},
		{"g.jpg.download", false},
		{"h.TMP", false},
		{"noext", false},
		{"", false},
		{"line\nbreak.jpg", false},
	}
	for _, tc := range cases {
		if got := f.Match(tc.name); got != tc.want {
			t.Fatalf("Match(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseLocatorPathVariants(t *testing.T) {
	dir := t.TempDir()

	for _, raw := range []string{dir, "file://" + filepath.ToSlash(dir), "  " + dir + "/  "} {
		loc, err := files.ParseLocator(raw)
		if err != nil {
			t.Fatalf("ParseLocator(%q): %v", raw, err)
		}
		if loc.Kind() != files.KindPath {
			t.Fatalf("ParseLocator(%q) kind = %v, want path", raw, loc.Kind())
		}
		if p, ok := loc.Path(); !ok || p != dir {
			t.Fatalf("ParseLocator(%q) path = %q, want %q", raw, p, dir)
		}
	}
}

func TestParseLocatorMountHandle(t *testing.T) {
	dir := t.TempDir()
	loc, err := files.ParseLocator("mount://" + filepath.ToSlash(dir))
	if err != nil {
		t.Fatalf("ParseLocator: %v", err)
	}
	if loc.Kind() != files.KindHandle {
		t.Fatalf("kind = %v, want handle", loc.Kind())
	}
	if _, ok := loc.Path(); ok {
		t.Fatal("handle locator must not expose a path")
	}
	root, ok := loc.MountRoot()
	if !ok || root != dir {
		t.Fatalf("MountRoot = %q, %v; want %q", root, ok, dir)
	}

	child := loc.Child("my photo.jpg")
	childRoot, ok := child.MountRoot()
	if !ok || childRoot != filepath.Join(dir, "my photo.jpg") {
		t.Fatalf("child MountRoot = %q", childRoot)
	}
}

func TestParseLocatorMountHandleKeepsEscapedCharacters(t *testing.T) {
	cases := map[string]string{
		"mount:///srv/a%23b":       "/srv/a#b",
		"mount:///srv/q%3Fx":       "/srv/q?x",
		"mount:///srv/100%25done":  "/srv/100%done",
		"mount:///srv/two%20words": "/srv/two words",
	}
	for raw, want := range cases {
		loc, err := files.ParseLocator(raw)
		if err != nil {
			t.Fatalf("ParseLocator(%q): %v", raw, err)
		}
		root, ok := loc.MountRoot()
		if !ok || root != filepath.FromSlash(want) {
			t.Fatalf("ParseLocator(%q).MountRoot() = %q, %v; want %q", raw, root, ok, want)
		}
		again, err := files.ParseLocator(loc.String())
		if err != nil || again.String() != loc.String() {
			t.Fatalf("reparse of %q = %q, %v", loc.String(), again.String(), err)
		}
		child, ok := loc.Child("x#1.jpg").MountRoot()
		if !ok || child != filepath.Join(filepath.FromSlash(want), "x#1.jpg") {
			t.Fatalf("child of %q = %q, %v", raw, child, ok)
		}
	}
}

func TestParseLocatorErrors(t *testing.T) {
	if _, err := files.ParseLocator("   "); !errors.Is(err, files.ErrEmptyLocator) {
		t.Fatalf("expected ErrEmptyLocator, got %v", err)
	}
	if _, err := files.ParseLocator("content://media/external"); !errors.Is(err, files.ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestNewRecordUsesChildLocator(t *testing.T) {
	dir := files.PathLocator("/data/incoming")
	mod := time.UnixMilli(1_700_000_000_123)
	rec := files.NewRecord(dir, "a.jpg", 42, mod)

	if p, _ := rec.Locator.Path(); p != filepath.Join("/data/incoming", "a.jpg") {
		t.Fatalf("locator path = %q", p)
	}
	if rec.LastModified != 1_700_000_000_123 || rec.Size != 42 || rec.IsIncremental {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.ModTime().Equal(mod) {
		t.Fatalf("ModTime = %v, want %v", rec.ModTime(), mod)
	}
}

func TestSortedNames(t *testing.T) {
	got := files.SortedNames(map[string]struct{}{"c.jpg": {}, "a.jpg": {}, "b.jpg": {}})
	want := []string{"a.jpg", "b.jpg", "c.jpg"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedNames = %v, want %v", got, want)
		}
	}
}
