package tree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dropwatch/internal/files"
)

// Entry is one child of a tree listing.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Tree is scoped, non-recursive access to a single directory.
type Tree interface {
	// Root identifies the directory.
	Root() files.Locator
	// Query lists the directory in batches of at most batchSize entries.
	Query(ctx context.Context, batchSize int, fn func([]Entry) error) error
	// Walk lists the directory one entry at a time. It is slower than Query
	// and is used when Query fails.
	Walk(ctx context.Context, fn func(Entry) error) error
	// Stat returns the current state of one entry.
	Stat(ctx context.Context, name string) (Entry, error)
	// Subscribe returns a channel that receives a value whenever the listing
	// may have changed. The channel is closed when ctx ends.
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

// ErrNoDirectory is returned by Open for locators without a local directory.
var ErrNoDirectory = errors.New("locator has no local directory")

// ErrInvalidName is returned for names that do not address a direct child.
var ErrInvalidName = errors.New("invalid entry name")

// ReadDir lists dir in chunks of batchSize entries, resolving each entry's
// size and modification time. Entries that vanish between listing and stat
// are skipped. Symlinks report their target.
func ReadDir(ctx context.Context, dir string, batchSize int, fn func([]Entry) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer f.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		dirents, readErr := f.ReadDir(batchSize)
		batch := make([]Entry, 0, len(dirents))
		for _, d := range dirents {
			entry, err := direntEntry(dir, d)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return fmt.Errorf("stat %s: %w", d.Name(), err)
			}
			batch = append(batch, entry)
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read directory: %w", readErr)
		}
	}
}

func direntEntry(dir string, d fs.DirEntry) (Entry, error) {
	var (
		info fs.FileInfo
		err  error
	)
	if d.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(filepath.Join(dir, d.Name()))
	} else {
		info, err = d.Info()
	}
	if err != nil {
		return Entry{}, err
	}
	return entryFromInfo(d.Name(), info), nil
}

func entryFromInfo(name string, info fs.FileInfo) Entry {
	return Entry{
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}
