package janitor_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tryon/internal/catalog"
	"tryon/internal/config"
	"tryon/internal/janitor"
	"tryon/internal/logging"
	"tryon/internal/queue"
	"tryon/internal/testsupport"
)

func newCollector(t *testing.T) (*config.Config, *queue.Store, *janitor.Collector) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	testsupport.WriteCatalog(t, cfg.Paths.CatalogRoot,
		testsupport.CatalogRow("p1", nil),
		testsupport.CatalogRow("p2", nil))
	store := testsupport.OpenStore(t, cfg)
	catalogStore := catalog.NewStore(cfg.Paths.CatalogRoot, time.Minute, logging.NewNop())
	return cfg, store, janitor.New(cfg, store, catalogStore, logging.NewNop())
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("stat %s: %v", path, err)
	}
	return err == nil
}

func TestRunReclaimsOrphans(t *testing.T) {
	cfg, store, collector := newCollector(t)

	testsupport.MustAdd(t, store, "p1", "cropped_live.png")

	liveCrop := filepath.Join(cfg.Paths.TempCropDir, "cropped_live.png")
	orphanCrop := filepath.Join(cfg.Paths.TempCropDir, "cropped_orphan.png")
	liveProcessed := filepath.Join(cfg.Paths.ProcessedDir, "processed_p1_cropped_live.png")
	orphanProcessed := filepath.Join(cfg.Paths.ProcessedDir, "processed_p9_old.png")
	liveThumb := filepath.Join(cfg.Paths.ThumbnailDir, "thumb_p1_front.jpg")
	orphanThumb := filepath.Join(cfg.Paths.ThumbnailDir, "thumb_p9_front.jpg")
	for _, path := range []string{liveCrop, orphanCrop, liveProcessed, orphanProcessed, liveThumb, orphanThumb} {
		testsupport.WriteFile(t, path, []byte("x"))
	}

	counts := collector.Run()
	if counts.Crops != 1 || counts.Processed != 1 || counts.Thumbnails != 1 {
		t.Fatalf("counts = %+v, want one deletion per area", counts)
	}

	for _, path := range []string{liveCrop, liveProcessed, liveThumb} {
		if !exists(t, path) {
			t.Errorf("live file deleted: %s", path)
		}
	}
	for _, path := range []string{orphanCrop, orphanProcessed, orphanThumb} {
		if exists(t, path) {
			t.Errorf("orphan survived: %s", path)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg, store, collector := newCollector(t)

	testsupport.MustAdd(t, store, "p1", "img.png")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.TempCropDir, "cropped_stale.png"), []byte("x"))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ThumbnailDir, "thumb_gone_a.jpg"), []byte("x"))

	first := collector.Run()
	if first.Total() == 0 {
		t.Fatal("first pass reclaimed nothing")
	}
	second := collector.Run()
	if second.Total() != 0 {
		t.Errorf("second pass reclaimed %d files, want 0", second.Total())
	}
}

func TestRunKeepsRecordedProcessedPath(t *testing.T) {
	cfg, store, collector := newCollector(t)

	testsupport.MustAdd(t, store, "p1", "img.png")
	if err := store.MarkProcessing("p1", "img.png"); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	// Recorded path differs from the computed name; both must survive.
	recorded := filepath.Join(cfg.Paths.ProcessedDir, "processed_custom.png")
	testsupport.WriteFile(t, recorded, []byte("x"))
	if err := store.MarkCompleted("p1", "img.png", recorded, false); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	counts := collector.Run()
	if counts.Processed != 0 {
		t.Errorf("processed deletions = %d, want 0", counts.Processed)
	}
	if !exists(t, recorded) {
		t.Error("recorded processed artifact was deleted")
	}
}

func TestRunSkipsUnparseableThumbnails(t *testing.T) {
	cfg, _, collector := newCollector(t)

	odd := filepath.Join(cfg.Paths.ThumbnailDir, "notes.txt")
	testsupport.WriteFile(t, odd, []byte("x"))

	counts := collector.Run()
	if counts.Thumbnails != 0 {
		t.Errorf("thumbnail deletions = %d, want 0", counts.Thumbnails)
	}
	if !exists(t, odd) {
		t.Error("non-thumbnail file deleted")
	}
}

func TestRunEmptyAreas(t *testing.T) {
	_, _, collector := newCollector(t)

	if counts := collector.Run(); counts.Total() != 0 {
		t.Errorf("counts = %+v, want zero", counts)
	}
}
