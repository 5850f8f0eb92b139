package testsupport

import (
	"testing"

	"tryon/internal/config"
	"tryon/internal/logging"
	"tryon/internal/queue"
)

// OpenStore opens a queue.Store backed by the test config's queue file.
func OpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	return queue.Open(cfg.Paths.QueueFile, cfg.Paths.ProcessedDir, logging.NewNop())
}

// MustAdd enqueues an item and fails the test on error or duplicate.
func MustAdd(t testing.TB, store *queue.Store, productID, filename string) queue.Item {
	t.Helper()

	item, added, err := store.Add(productID, filename, false)
	if err != nil {
		t.Fatalf("store.Add(%s, %s): %v", productID, filename, err)
	}
	if !added {
		t.Fatalf("store.Add(%s, %s): item already queued", productID, filename)
	}
	return item
}
