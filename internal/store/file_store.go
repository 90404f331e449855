package store

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"dropwatch/internal/files"
	"dropwatch/internal/fileutil"
	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
)

// FileStore keeps the known-file set in a line-oriented text file.
//
// Every operation re-reads the file, applies its change and rewrites the
// whole file under one mutex. An advisory lock on <path>.lock extends the
// same critical section to other processes sharing the state directory.
type FileStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	lockWarned bool
}

// NewFileStore returns a store backed by path. The file is created lazily on
// the first write.
func NewFileStore(path string, logger *slog.Logger, opts ...Option) *FileStore {
	o := buildOptions(opts)
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "store"),
		now:    o.now,
	}
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) KnownFiles(_ context.Context) map[string]struct{} {
	var known map[string]struct{}
	s.locked(func() {
		known = s.read().known
	})
	return known
}

func (s *FileStore) Metadata(_ context.Context) Metadata {
	var meta Metadata
	s.locked(func() {
		meta = s.read().meta
	})
	return meta
}

func (s *FileStore) Update(_ context.Context, meta Metadata, known map[string]struct{}) {
	known = storableSet(s.logger, known)
	meta.KnownFileCount = len(known)
	s.locked(func() {
		s.write("update", state{meta: meta, known: known})
	})
}

func (s *FileStore) AddKnownFile(_ context.Context, name string) {
	if !files.StorableName(name) {
		warnUnstorableName(s.logger, name)
		return
	}
	s.locked(func() {
		st := s.read()
		if _, ok := st.known[name]; ok {
			return
		}
		st.known[name] = struct{}{}
		st.meta.KnownFileCount = len(st.known)
		s.write("add", st)
	})
}

func (s *FileStore) RemoveKnownFile(_ context.Context, name string) {
	s.locked(func() {
		st := s.read()
		if _, ok := st.known[name]; !ok {
			return
		}
		delete(st.known, name)
		st.meta.KnownFileCount = len(st.known)
		s.write("remove", st)
	})
}

func (s *FileStore) UpdateLastExit(_ context.Context, at time.Time) {
	s.locked(func() {
		st := s.read()
		st.meta.LastExit = at.UnixMilli()
		s.write("last_exit", st)
	})
}

func (s *FileStore) NeedsFullRescan(_ context.Context, interval time.Duration) bool {
	var meta Metadata
	s.locked(func() {
		meta = s.read().meta
	})
	return NeedsRescan(meta, s.now(), interval)
}

// Clear deletes the state file; a missing file reads as empty state.
func (s *FileStore) Clear(_ context.Context) {
	s.locked(func() {
		err := os.Remove(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		metrics.ObserveStore("clear", err)
		if err != nil {
			warnWriteFailed(s.logger, "clear", err)
			return
		}
		metrics.KnownFiles.Set(0)
		s.logger.Debug("known-file state cleared", logging.String("path", s.path))
	})
}

func (s *FileStore) Close() error {
	return s.lock.Close()
}

func (s *FileStore) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err == nil {
		if err = s.lock.Lock(); err == nil {
			defer func() { _ = s.lock.Unlock() }()
		} else if !s.lockWarned {
			s.lockWarned = true
			logging.WarnWithContext(s.logger, "state file lock unavailable", "store_lock_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "concurrent processes sharing this state file may overwrite each other"),
				logging.String(logging.FieldErrorHint, "check permissions of the state directory"))
		}
	}
	fn()
}

func (s *FileStore) read() state {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			metrics.ObserveStore("read", err)
			warnReadFailed(s.logger, err)
		}
		return emptyState()
	}
	st, err := decodeState(data)
	metrics.ObserveStore("read", err)
	if err != nil {
		warnReadFailed(s.logger, err)
		return emptyState()
	}
	return st
}

func (s *FileStore) write(op string, st state) {
	err := fileutil.WriteFileAtomic(s.path, encodeState(st), 0o644)
	metrics.ObserveStore(op, err)
	if err != nil {
		warnWriteFailed(s.logger, op, err)
		return
	}
	metrics.KnownFiles.Set(float64(len(st.known)))
}
