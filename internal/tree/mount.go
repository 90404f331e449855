package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"dropwatch/internal/files"
	"dropwatch/internal/logging"
)

const defaultProbeInterval = time.Second

// Mount serves a directory through the Tree interface. It backs mount://
// handles and also gives path targets a listing and change-probe source.
type Mount struct {
	loc    files.Locator
	root   string
	fsys   fs.FS
	probe  time.Duration
	logger *slog.Logger
}

// Open resolves a locator to a Mount. probe is the interval between
// change-signature checks for Subscribe.
func Open(loc files.Locator, probe time.Duration, logger *slog.Logger) (*Mount, error) {
	root, ok := loc.Path()
	if !ok {
		root, ok = loc.MountRoot()
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDirectory, loc)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open tree %s: %w", loc, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open tree %s: not a directory", loc)
	}
	if probe <= 0 {
		probe = defaultProbeInterval
	}
	return &Mount{
		loc:    loc,
		root:   root,
		fsys:   os.DirFS(root),
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "tree"),
	}, nil
}

func (m *Mount) Root() files.Locator { return m.loc }

func (m *Mount) Query(ctx context.Context, batchSize int, fn func([]Entry) error) error {
	return ReadDir(ctx, m.root, batchSize, fn)
}

func (m *Mount) Walk(ctx context.Context, fn func(Entry) error) error {
	return fs.WalkDir(m.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := fs.Stat(m.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if walkErr := fn(entryFromInfo(d.Name(), info)); walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
}

func (m *Mount) Stat(ctx context.Context, name string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if !fs.ValidPath(name) || name == "." || strings.Contains(name, "/") {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	info, err := fs.Stat(m.fsys, name)
	if err != nil {
		return Entry{}, err
	}
	return entryFromInfo(name, info), nil
}

// Subscribe probes the directory's modification time and entry count every
// probe interval and signals when either changes. Signals are coalesced: a
// pending signal absorbs later ones.
func (m *Mount) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	last, err := m.signature()
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", m.loc, err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(m.probe)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			sig, err := m.signature()
			if err != nil {
				m.logger.Debug("change probe failed", logging.Error(err))
				continue
			}
			if sig == last {
				continue
			}
			m.logger.Debug("directory changed",
				logging.Time("mod_time", sig.modTime),
				logging.Int("entries", sig.entries))
			last = sig
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	return ch, nil
}

type signature struct {
	modTime time.Time
	entries int
}

func (m *Mount) signature() (signature, error) {
	info, err := os.Stat(m.root)
	if err != nil {
		return signature{}, err
	}
	f, err := os.Open(m.root)
	if err != nil {
		return signature{}, err
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return signature{}, err
	}
	return signature{modTime: info.ModTime(), entries: len(names)}, nil
}
