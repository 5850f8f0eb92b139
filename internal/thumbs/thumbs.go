// Package thumbs maintains an on-demand thumbnail cache for catalog and
// result images. Thumbnails are generated lazily on first request and reused
// until the garbage collector reclaims them.
package thumbs

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"tryon/internal/config"
	"tryon/internal/fileutil"
	"tryon/internal/logging"
	"tryon/internal/services"
)

// Cache resolves thumbnails for source images, generating them on demand.
type Cache struct {
	dir          string
	maxDimension int
	quality      int
	logger       *slog.Logger
}

// NewCache constructs a thumbnail cache rooted at the configured directory.
func NewCache(cfg *config.Config, logger *slog.Logger) *Cache {
	return &Cache{
		dir:          cfg.Paths.ThumbnailDir,
		maxDimension: cfg.Thumbnails.MaxDimension,
		quality:      cfg.Thumbnails.JPEGQuality,
		logger:       logging.NewComponentLogger(logger, "thumbs"),
	}
}

// Name derives the cached thumbnail filename for a product image. The
// product id is embedded so the garbage collector can map thumbnails back to
// catalog entries.
func Name(productID, filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return fmt.Sprintf("thumb_%s_%s.jpg", productID, base)
}

// Resolve returns the path to serve for the given source image. A cached
// thumbnail is returned when present; otherwise one is generated. When
// generation fails the original path is returned so callers can still serve
// the full-size image.
func (c *Cache) Resolve(productID, sourcePath string) string {
	if !fileutil.Exists(sourcePath) {
		return sourcePath
	}

	thumbPath := filepath.Join(c.dir, Name(productID, sourcePath))
	if fileutil.Exists(thumbPath) {
		return thumbPath
	}

	if err := c.generate(sourcePath, thumbPath); err != nil {
		c.logger.Warn("thumbnail generation failed; serving original",
			logging.String(logging.FieldProductID, productID),
			logging.String(logging.FieldImage, filepath.Base(sourcePath)),
			logging.Error(err))
		return sourcePath
	}
	return thumbPath
}

func (c *Cache) generate(sourcePath, thumbPath string) error {
	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return services.Wrap(services.ErrValidation, "thumbs", "generate", "decode source image", err)
	}
	thumb := imaging.Fit(img, c.maxDimension, c.maxDimension, imaging.Lanczos)
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(c.quality)); err != nil {
		return services.Wrap(services.ErrPersistence, "thumbs", "generate", "write thumbnail", err)
	}
	return nil
}
