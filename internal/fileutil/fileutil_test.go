package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestWriteFileAtomicCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.txt")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.txt")
	if err := WriteFileAtomic(path, []byte("good"), 0o644); err != nil {
		t.Fatal(err)
	}

	// A directory at the destination makes the rename fail.
	blocked := filepath.Join(dir, "blocked")
	if err := os.MkdirAll(filepath.Join(blocked, "child"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(blocked, []byte("bad"), 0o644); err == nil {
		t.Fatal("expected rename onto non-empty directory to fail")
	}

	got, err := os.ReadFile(path)
	if err != nil || string(got) != "good" {
		t.Fatalf("previous content lost: %q %v", got, err)
	}
}

func TestIsStaleHandle(t *testing.T) {
	if !IsStaleHandle(fmt.Errorf("wrapped: %w", syscall.ESTALE)) {
		t.Fatal("expected ESTALE to be detected through wrapping")
	}
	if IsStaleHandle(syscall.ENOENT) || IsStaleHandle(nil) {
		t.Fatal("unexpected stale detection")
	}
}

func TestStatWithRetryReturnsNonStaleErrorsImmediately(t *testing.T) {
	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing"), DefaultRetryConfig())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestStatWithRetrySucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 3 {
		t.Fatalf("size = %d, want 3", info.Size())
	}
}

func TestDetectFilesystem(t *testing.T) {
	fsys, err := DetectFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("DetectFilesystem: %v", err)
	}
	if fsys.Name == "" {
		t.Fatal("expected a filesystem name")
	}

	if _, err := DetectFilesystem(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing path")
	}
}
