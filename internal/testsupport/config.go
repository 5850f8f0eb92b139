// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"tryon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CatalogRoot = filepath.Join(base, "catalogs")
	cfg.Paths.ProcessedDir = filepath.Join(base, "processed_images")
	cfg.Paths.TempCropDir = filepath.Join(base, "temp_crops")
	cfg.Paths.ThumbnailDir = filepath.Join(base, "thumbnails")
	cfg.Paths.QueueFile = filepath.Join(base, "queue_data.json")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithInferenceURL points the inference client at the given endpoint.
func WithInferenceURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Inference.URL = url
	}
}

// WithCatalogTTL overrides the catalog cache TTL in seconds.
func WithCatalogTTL(seconds int) ConfigOption {
	return func(c *config.Config) {
		c.Catalog.CacheTTLSeconds = seconds
	}
}
