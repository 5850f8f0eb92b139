// Package janitor reclaims auxiliary files no longer referenced by any live
// queue item or valid catalog product.
package janitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tryon/internal/catalog"
	"tryon/internal/config"
	"tryon/internal/logging"
	"tryon/internal/queue"
)

// Counts reports per-area deletions from one collection pass.
type Counts struct {
	Crops      int `json:"crops"`
	Processed  int `json:"processed"`
	Thumbnails int `json:"thumbnails"`
}

// Total sums deletions across all areas.
func (c Counts) Total() int {
	return c.Crops + c.Processed + c.Thumbnails
}

// Collector reconciles the temp-crop, processed-output, and thumbnail areas
// against the queue and catalog.
type Collector struct {
	store        *queue.Store
	catalog      *catalog.Store
	tempCropDir  string
	processedDir string
	thumbDir     string
	logger       *slog.Logger
}

// New constructs a collector over the configured storage areas.
func New(cfg *config.Config, store *queue.Store, catalogStore *catalog.Store, logger *slog.Logger) *Collector {
	return &Collector{
		store:        store,
		catalog:      catalogStore,
		tempCropDir:  cfg.Paths.TempCropDir,
		processedDir: cfg.Paths.ProcessedDir,
		thumbDir:     cfg.Paths.ThumbnailDir,
		logger:       logging.NewComponentLogger(logger, "janitor"),
	}
}

// Run performs one collection pass. Deletion failures are logged and
// swallowed; the pass never aborts partway. A pass with nothing to reclaim
// deletes zero files, so back-to-back passes are idempotent.
func (c *Collector) Run() Counts {
	items := c.store.Items()

	liveImages := make(map[string]struct{}, len(items))
	liveProcessed := make(map[string]struct{}, len(items))
	for _, item := range items {
		liveImages[filepath.Base(item.ImageFilename)] = struct{}{}
		liveProcessed[queue.ProcessedFilename(item.ProductID, item.ImageFilename)] = struct{}{}
		if item.ProcessedImagePath != "" {
			liveProcessed[filepath.Base(item.ProcessedImagePath)] = struct{}{}
		}
	}

	var counts Counts
	counts.Crops = c.sweep(c.tempCropDir, func(name string) bool {
		_, live := liveImages[name]
		return !live
	})
	counts.Processed = c.sweep(c.processedDir, func(name string) bool {
		_, live := liveProcessed[name]
		return !live
	})
	counts.Thumbnails = c.sweepThumbnails()

	if counts.Total() > 0 {
		c.logger.Info("garbage collection pass reclaimed files",
			logging.Int("crops", counts.Crops),
			logging.Int("processed", counts.Processed),
			logging.Int("thumbnails", counts.Thumbnails))
	}
	return counts
}

// sweepThumbnails removes thumbnails whose embedded product id no longer
// exists in the catalog. If the catalog cannot be read the area is left
// untouched rather than mass-deleted.
func (c *Collector) sweepThumbnails() int {
	validIDs, err := c.catalog.ValidIDs()
	if err != nil {
		c.logger.Warn("skipping thumbnail sweep; catalog unreadable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale thumbnails retained until next pass"))
		return 0
	}
	return c.sweep(c.thumbDir, func(name string) bool {
		id, ok := thumbnailProductID(name)
		if !ok {
			return false
		}
		_, valid := validIDs[id]
		return !valid
	})
}

// sweep deletes every regular file in dir for which orphaned returns true
// and reports how many deletions succeeded.
func (c *Collector) sweep(dir string, orphaned func(name string) bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("cannot read storage area", logging.String("dir", dir), logging.Error(err))
		}
		return 0
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !orphaned(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.logger.Warn("failed to delete orphaned file",
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		deleted++
	}
	return deleted
}

// thumbnailProductID extracts the product id embedded in a thumbnail
// filename of the form thumb_<id>_<rest>.
func thumbnailProductID(name string) (string, bool) {
	rest, found := strings.CutPrefix(name, "thumb_")
	if !found {
		return "", false
	}
	id, _, found := strings.Cut(rest, "_")
	if !found || id == "" {
		return "", false
	}
	return id, true
}
