package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dropwatch/internal/config"
	"dropwatch/internal/logging"
	"dropwatch/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type backend struct {
	name string
	ext  string
	open func(t *testing.T, path string, clock *fakeClock) store.Store
}

func backends() []backend {
	return []backend{
		{
			name: "file",
			ext:  ".txt",
			open: func(t *testing.T, path string, clock *fakeClock) store.Store {
				return store.NewFileStore(path, logging.NewNop(), store.WithClock(clock.Now))
			},
		},
		{
			name: "sqlite",
			ext:  ".db",
			open: func(t *testing.T, path string, clock *fakeClock) store.Store {
				s, err := store.OpenSQLite(path, logging.NewNop(), store.WithClock(clock.Now))
				if err != nil {
					t.Fatalf("OpenSQLite: %v", err)
				}
				return s
			},
		},
	}
}

func set(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func forEachBackend(t *testing.T, fn func(t *testing.T, b backend, path string, clock *fakeClock)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
			path := filepath.Join(t.TempDir(), "state", "known"+b.ext)
			fn(t, b, path, clock)
		})
	}
}

func TestFreshStoreIsEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, path string, clock *fakeClock) {
		s := b.open(t, path, clock)
		defer s.Close()
		ctx := context.Background()

		if got := s.KnownFiles(ctx); len(got) != 0 {
			t.Fatalf("expected no known files, got %v", got)
		}
		if got := s.Metadata(ctx); got != (store.Metadata{}) {
			t.Fatalf("expected zero metadata, got %+v", got)
		}
		if !s.NeedsFullRescan(ctx, time.Hour) {
			t.Fatal("a store that never completed a scan needs a full rescan")
		}
	})
}

func TestUpdatePersistsAcrossReopen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, path string, clock *fakeClock) {
		ctx := context.Background()
		s := b.open(t, path, clock)
		meta := store.Metadata{LastExit: 10, LastFullScanComplete: 20, KnownFileCount: 2}
		s.Update(ctx, meta, set("a.jpg", "b.jpg"))
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		reopened := b.open(t, path, clock)
		defer reopened.Close()
		if got := reopened.Metadata(ctx); got != meta {
			t.Fatalf("metadata = %+v, want %+v", got, meta)
		}
		if got := reopened.KnownFiles(ctx); !sameSet(got, set("a.jpg", "b.jpg")) {
			t.Fatalf("known = %v", got)
		}
	})
}

func TestAddAndRemoveKnownFile(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, path string, clock *fakeClock) {
		ctx := context.Background()
		s := b.open(t, path, clock)
		defer s.Close()

		s.Update(ctx, store.Metadata{LastExit: 1, LastFullScanComplete: 2, KnownFileCount: 1}, set("a.jpg"))
		s.AddKnownFile(ctx, "b.jpg")
		s.AddKnownFile(ctx, "b.jpg")
		s.AddKnownFile(ctx, "")

		if got := s.KnownFiles(ctx); !sameSet(got, set("a.jpg", "b.jpg")) {
			t.Fatalf("known after add = %v", got)
		}
		meta := s.Metadata(ctx)
		if meta.KnownFileCount != 2 || meta.LastExit != 1 || meta.LastFullScanComplete != 2 {
			t.Fatalf("metadata after add = %+v", meta)
		}

		s.RemoveKnownFile(ctx, "a.jpg")
		s.RemoveKnownFile(ctx, "missing.jpg")
		if got := s.KnownFiles(ctx); !sameSet(got, set("b.jpg")) {
			t.Fatalf("known after remove = %v", got)
		}
		if got := s.Metadata(ctx).KnownFileCount; got != 1 {
			t.Fatalf("count after remove = %d", got)
		}
	})
}

func TestRejectsNamesWithLineBreaks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, path string, clock *fakeClock) {
		ctx := context.Background()
		s := b.open(t, path, clock)
		defer s.Close()

		s.Update(ctx, store.Metadata{LastFullScanComplete: 1, KnownFileCount: 2}, set("a.jpg", "evil\nb.jpg"))
		s.AddKnownFile(ctx, "notes\nvictim.jpg")
		s.AddKnownFile(ctx, "crlf\r.jpg")
		s.AddKnownFile(ctx, "sub/c.jpg")

		if got := s.KnownFiles(ctx); !sameSet(got, set("a.jpg")) {
			t.Fatalf("known = %v, want only a.jpg", got)
		}
		if got := s.Metadata(ctx).KnownFileCount; got != 1 {
			t.Fatalf("known_file_count = %d, want 1", got)
		}
	})
}

func TestUpdateLastExitKeepsKnownSet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, path string, clock *fakeClock) {
		ctx := context.Background()
		s := b.open(t, path, clock)
		defer s.Close()

		s.Update(ctx, store.Metadata{LastFullScanComplete: 5, KnownFileCount: 1}, set("a.jpg"))
		exit := time.UnixMilli(1_700_000_123_456)
		s.UpdateLastExit(ctx, exit)

		meta := s.Metadata(ctx)
		if meta.LastExit != exit.UnixMilli() || meta.LastFullScanComplete != 5 {
			t.Fatalf("metadata = %+v", meta)
		}
		if got := s.KnownFiles(ctx); !sameSet(got, set("a.jpg")) {
			t.Fatalf("known = %v", got)
		}
	})
}

func TestNeedsFullRescanFollowsInterval(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, path string, clock *fakeClock) {
		ctx := context.Background()
		s := b.open(t, path, clock)
		defer s.Close()

		now := clock.Now().UnixMilli()
		s.Update(ctx, store.Metadata{LastExit: now, LastFullScanComplete: now}, set())
		interval := 24 * time.Hour

		if s.NeedsFullRescan(ctx, interval) {
			t.Fatal("fresh scan should not need a rescan")
		}
		clock.Advance(interval)
		if s.NeedsFullRescan(ctx, interval) {
			t.Fatal("exactly one interval elapsed is not yet stale")
		}
		clock.Advance(time.Millisecond)
		if !s.NeedsFullRescan(ctx, interval) {
			t.Fatal("expected rescan once the interval is exceeded")
		}
	})
}

func TestClearResetsState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, path string, clock *fakeClock) {
		ctx := context.Background()
		s := b.open(t, path, clock)
		defer s.Close()

		now := clock.Now().UnixMilli()
		s.Update(ctx, store.Metadata{LastExit: now, LastFullScanComplete: now, KnownFileCount: 1}, set("a.jpg"))
		s.Clear(ctx)
		s.Clear(ctx)

		if got := s.KnownFiles(ctx); len(got) != 0 {
			t.Fatalf("known after clear = %v", got)
		}
		if !s.NeedsFullRescan(ctx, time.Hour) {
			t.Fatal("cleared store should need a rescan")
		}
	})
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend, path string, clock *fakeClock) {
		ctx := context.Background()
		s := b.open(t, path, clock)
		defer s.Close()

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.AddKnownFile(ctx, fmt.Sprintf("img-%02d.jpg", i))
			}()
		}
		wg.Wait()

		if got := len(s.KnownFiles(ctx)); got != 20 {
			t.Fatalf("expected 20 known files, got %d", got)
		}
		if got := s.Metadata(ctx).KnownFileCount; got != 20 {
			t.Fatalf("expected count 20, got %d", got)
		}
	})
}

func TestFileStoreWritesLineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known.txt")
	s := store.NewFileStore(path, logging.NewNop())
	defer s.Close()

	s.Update(context.Background(), store.Metadata{LastExit: 111, LastFullScanComplete: 222, KnownFileCount: 2}, set("b.jpg", "a.jpg"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if want := "111\n222\n2\na.jpg\nb.jpg\n"; string(data) != want {
		t.Fatalf("state file = %q, want %q", data, want)
	}
}

func TestFileStoreReadsHandWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known.txt")
	content := "100\r\n200\r\n3\r\n\r\na.jpg\r\n   \r\nb c.jpg\r\n\nd.png"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	s := store.NewFileStore(path, logging.NewNop())
	defer s.Close()
	ctx := context.Background()

	if got := s.Metadata(ctx); got != (store.Metadata{LastExit: 100, LastFullScanComplete: 200, KnownFileCount: 3}) {
		t.Fatalf("metadata = %+v", got)
	}
	if got := s.KnownFiles(ctx); !sameSet(got, set("a.jpg", "b c.jpg", "d.png")) {
		t.Fatalf("known = %v", got)
	}
}

func TestFileStoreTreatsCorruptFileAsEmpty(t *testing.T) {
	cases := map[string]string{
		"bad header":  "abc\n200\n1\na.jpg\n",
		"truncated":   "100\n200\n",
		"non-numeric": "100\nnot-a-number\n1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "known.txt")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write state: %v", err)
			}
			s := store.NewFileStore(path, logging.NewNop())
			defer s.Close()
			ctx := context.Background()

			if got := s.KnownFiles(ctx); len(got) != 0 {
				t.Fatalf("expected empty known set, got %v", got)
			}
			if got := s.Metadata(ctx); got != (store.Metadata{}) {
				t.Fatalf("expected zero metadata, got %+v", got)
			}
		})
	}
}

func TestFileStoreSwallowsWriteFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	s := store.NewFileStore(filepath.Join(blocker, "known.txt"), logging.NewNop())
	defer s.Close()
	ctx := context.Background()

	s.Update(ctx, store.Metadata{KnownFileCount: 1}, set("a.jpg"))
	s.AddKnownFile(ctx, "b.jpg")
	s.UpdateLastExit(ctx, time.Now())
	s.Clear(ctx)

	if got := s.KnownFiles(ctx); len(got) != 0 {
		t.Fatalf("unwritable store should read empty, got %v", got)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()

	s, err := store.Open(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open file backend: %v", err)
	}
	if _, ok := s.(*store.FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", s)
	}
	_ = s.Close()

	cfg.Store.Backend = config.StoreBackendSQLite
	s, err = store.Open(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open sqlite backend: %v", err)
	}
	if _, ok := s.(*store.SQLiteStore); !ok {
		t.Fatalf("expected *SQLiteStore, got %T", s)
	}
	_ = s.Close()
	if !strings.HasSuffix(cfg.StorePath(), ".db") {
		t.Fatalf("unexpected sqlite path %q", cfg.StorePath())
	}

	cfg.Store.Backend = "etcd"
	if _, err := store.Open(&cfg, logging.NewNop()); !errors.Is(err, store.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestNeedsRescanPure(t *testing.T) {
	now := time.UnixMilli(10_000)
	cases := []struct {
		last int64
		want bool
	}{
		{0, true},
		{10_000, false},
		{9_000, false},
		{8_999, true},
	}
	for _, tc := range cases {
		if got := store.NeedsRescan(store.Metadata{LastFullScanComplete: tc.last}, now, time.Second); got != tc.want {
			t.Fatalf("NeedsRescan(last=%d) = %v, want %v", tc.last, got, tc.want)
		}
	}
}
