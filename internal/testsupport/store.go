package testsupport

import (
	"context"
	"testing"

	"dropwatch/internal/config"
	"dropwatch/internal/logging"
	"dropwatch/internal/store"
)

// MustOpenStore opens the configured store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...store.Option) store.Store {
	t.Helper()

	st, err := store.Open(cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// SeedKnown adds names to the store's known-file set.
func SeedKnown(t testing.TB, st store.Store, names ...string) {
	t.Helper()

	for _, name := range names {
		st.AddKnownFile(context.Background(), name)
	}
}
