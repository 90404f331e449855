package scanner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"dropwatch/internal/config"
	"dropwatch/internal/files"
	"dropwatch/internal/logging"
	"dropwatch/internal/scanner"
	"dropwatch/internal/store"
	"dropwatch/internal/testsupport"
	"dropwatch/internal/tree"
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

func newScanner(t *testing.T, cfg *config.Config, st store.Store, opts ...scanner.Option) *scanner.Scanner {
	t.Helper()
	s, err := scanner.New(cfg, st, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	return s
}

func assertNames(t *testing.T, label string, records []files.Record, want ...string) {
	t.Helper()
	got := files.Names(records)
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
}

func assertSet(t *testing.T, label string, set map[string]struct{}, want ...string) {
	t.Helper()
	got := files.SortedNames(set)
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
}

func TestScanFreshStoreClassifiesEverythingIncremental(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := testsupport.TargetDir(cfg)
	testsupport.WriteFile(t, dir, "a.jpg", 10)
	testsupport.WriteFile(t, dir, "b.jpg", 20)
	testsupport.WriteFile(t, dir, ".hidden.jpg", 5)
	testsupport.WriteFile(t, dir, "c.jpg.tmp", 5)
	testsupport.WriteFile(t, dir, "notes.txt", 5)
	if err := os.Mkdir(filepath.Join(dir, "album.jpg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	st := testsupport.MustOpenStore(t, cfg)
	result := newScanner(t, cfg, st).Scan(context.Background())

	assertNames(t, "existing", result.Existing)
	assertNames(t, "incremental", result.Incremental, "a.jpg", "b.jpg")
	assertSet(t, "removed", result.Removed)
	for _, r := range result.Incremental {
		if !r.IsIncremental {
			t.Fatalf("%s not flagged incremental", r.FileName)
		}
	}
	if result.Incremental[0].Size != 10 {
		t.Fatalf("a.jpg size = %d, want 10", result.Incremental[0].Size)
	}
	if got, _ := result.Incremental[0].Locator.Path(); got != filepath.Join(dir, "a.jpg") {
		t.Fatalf("locator = %q", got)
	}

	assertSet(t, "known", st.KnownFiles(context.Background()), "a.jpg", "b.jpg")
	if meta := st.Metadata(context.Background()); meta.KnownFileCount != 2 || meta.LastFullScanComplete == 0 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestScanSecondRunDiffsAgainstKnownSet(t *testing.T) {
	for _, backend := range []string{config.StoreBackendFile, config.StoreBackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithStoreBackend(backend))
			dir := testsupport.TargetDir(cfg)
			testsupport.WriteFile(t, dir, "a.jpg", 1)
			testsupport.WriteFile(t, dir, "b.jpg", 1)

			st := testsupport.MustOpenStore(t, cfg)
			s := newScanner(t, cfg, st)
			s.Scan(context.Background())

			testsupport.WriteFile(t, dir, "c.jpg", 1)
			testsupport.RemoveFile(t, dir, "a.jpg")

			result := s.Scan(context.Background())
			if result.Forced {
				t.Fatal("second scan should not be forced")
			}
			assertNames(t, "existing", result.Existing, "b.jpg")
			assertNames(t, "incremental", result.Incremental, "c.jpg")
			assertSet(t, "removed", result.Removed, "a.jpg")
			if result.Existing[0].IsIncremental {
				t.Fatal("existing record flagged incremental")
			}
			assertSet(t, "known", st.KnownFiles(context.Background()), "b.jpg", "c.jpg")
		})
	}
}

func TestScanRestartWithoutChangesHasNoIncremental(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := testsupport.TargetDir(cfg)
	testsupport.WriteFile(t, dir, "a.jpg", 1)
	testsupport.WriteFile(t, dir, "b.png", 1)

	st := testsupport.MustOpenStore(t, cfg)
	newScanner(t, cfg, st).Scan(context.Background())

	result := newScanner(t, cfg, st).Scan(context.Background())
	assertNames(t, "existing", result.Existing, "a.jpg", "b.png")
	assertNames(t, "incremental", result.Incremental)
}

func TestScanForcesFullRescanAfterInterval(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cfg := testsupport.NewConfig(t)
	dir := testsupport.TargetDir(cfg)
	testsupport.WriteFile(t, dir, "a.jpg", 1)
	testsupport.WriteFile(t, dir, "b.jpg", 1)

	st := testsupport.MustOpenStore(t, cfg, store.WithClock(clock.Now))
	s := newScanner(t, cfg, st, scanner.WithClock(clock.Now))
	first := s.Scan(context.Background())
	if !first.Forced {
		t.Fatal("first scan on an empty store should be forced")
	}

	clock.Advance(23 * time.Hour)
	if result := s.Scan(context.Background()); result.Forced || len(result.Incremental) != 0 {
		t.Fatalf("scan inside interval: forced=%v incremental=%v", result.Forced, files.Names(result.Incremental))
	}

	clock.Advance(cfg.Tracking.FullRescanInterval() + time.Minute)
	result := s.Scan(context.Background())
	if !result.Forced {
		t.Fatal("expected forced rescan")
	}
	assertNames(t, "existing", result.Existing)
	assertNames(t, "incremental", result.Incremental, "a.jpg", "b.jpg")
	assertSet(t, "removed", result.Removed)
}

func TestScanEnumerationFailureYieldsEmptyResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := testsupport.TargetDir(cfg)
	testsupport.WriteFile(t, dir, "a.jpg", 1)

	st := testsupport.MustOpenStore(t, cfg)
	s := newScanner(t, cfg, st)
	s.Scan(context.Background())

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove target: %v", err)
	}
	result := s.Scan(context.Background())
	if !result.Empty() {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result.Removed == nil {
		t.Fatal("removed set should be non-nil")
	}
	assertSet(t, "known", st.KnownFiles(context.Background()), "a.jpg")
}

func TestScanCancelledContextYieldsEmptyResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, testsupport.TargetDir(cfg), "a.jpg", 1)
	st := testsupport.MustOpenStore(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if result := newScanner(t, cfg, st).Scan(ctx); !result.Empty() {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestScanMountTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMountTarget())
	dir := testsupport.TargetDir(cfg)
	testsupport.WriteFile(t, dir, "a.jpg", 1)
	testsupport.WriteFile(t, dir, "b.webp", 1)

	st := testsupport.MustOpenStore(t, cfg)
	result := newScanner(t, cfg, st).Scan(context.Background())
	assertNames(t, "incremental", result.Incremental, "a.jpg", "b.webp")
	if result.Incremental[0].Locator.Kind() != files.KindHandle {
		t.Fatalf("expected handle locator, got %v", result.Incremental[0].Locator.Kind())
	}
}

type brokenQueryTree struct {
	tree.Tree
	walked bool
}

func (b *brokenQueryTree) Query(context.Context, int, func([]tree.Entry) error) error {
	return errors.New("query unavailable")
}

func (b *brokenQueryTree) Walk(ctx context.Context, fn func(tree.Entry) error) error {
	b.walked = true
	return b.Tree.Walk(ctx, fn)
}

func TestScanFallsBackToWalkWhenQueryFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMountTarget())
	dir := testsupport.TargetDir(cfg)
	testsupport.WriteFile(t, dir, "a.jpg", 1)

	target, err := cfg.Tracking.Target()
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	mount, err := tree.Open(target, time.Second, logging.NewNop())
	if err != nil {
		t.Fatalf("tree.Open: %v", err)
	}
	broken := &brokenQueryTree{Tree: mount}

	st := testsupport.MustOpenStore(t, cfg)
	result := newScanner(t, cfg, st, scanner.WithTree(broken)).Scan(context.Background())
	if !broken.walked {
		t.Fatal("expected walk fallback")
	}
	assertNames(t, "incremental", result.Incremental, "a.jpg")
}

func TestScanMissingMountYieldsEmptyResult(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMountTarget())
	if err := os.RemoveAll(testsupport.TargetDir(cfg)); err != nil {
		t.Fatalf("remove target: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	if result := newScanner(t, cfg, st).Scan(context.Background()); !result.Empty() {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
