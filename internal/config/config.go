package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	CatalogRoot  string `toml:"catalog_root"`
	ProcessedDir string `toml:"processed_dir"`
	TempCropDir  string `toml:"temp_crop_dir"`
	ThumbnailDir string `toml:"thumbnail_dir"`
	QueueFile    string `toml:"queue_file"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
}

// Inference contains configuration for the external try-on inference service.
type Inference struct {
	URL            string  `toml:"url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Category       string  `toml:"category"`
	Seed           int     `toml:"seed"`
	Steps          int     `toml:"steps"`
	CFG            float64 `toml:"cfg"`
}

// RemoteStore contains configuration for mirroring approved artifacts to
// remote object storage. Disabled or credential-less configs are a no-op.
type RemoteStore struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
	ClientID string `toml:"client_id"`
}

// Catalog contains configuration for the catalog store cache.
type Catalog struct {
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
}

// Workflow contains configuration for scheduler timing.
type Workflow struct {
	QueuePollInterval int `toml:"queue_poll_interval"`
	JanitorEveryTicks int `toml:"janitor_every_ticks"`
}

// Thumbnails contains configuration for on-demand thumbnail generation.
type Thumbnails struct {
	MaxDimension int `toml:"max_dimension"`
	JPEGQuality  int `toml:"jpeg_quality"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tryon.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Inference   Inference   `toml:"inference"`
	RemoteStore RemoteStore `toml:"remote_store"`
	Catalog     Catalog     `toml:"catalog"`
	Workflow    Workflow    `toml:"workflow"`
	Thumbnails  Thumbnails  `toml:"thumbnails"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tryon/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was actually found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tryon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories the daemon needs.
// CatalogRoot is expected to exist already; it is external data.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ProcessedDir, c.Paths.TempCropDir, c.Paths.ThumbnailDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.QueueFile); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create queue directory %q: %w", dir, err)
		}
	}
	return nil
}
