package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeInference()
	c.normalizeRemoteStore()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.CatalogRoot, err = expandPath(c.Paths.CatalogRoot); err != nil {
		return fmt.Errorf("paths.catalog_root: %w", err)
	}
	if c.Paths.ProcessedDir, err = expandPath(c.Paths.ProcessedDir); err != nil {
		return fmt.Errorf("paths.processed_dir: %w", err)
	}
	if c.Paths.TempCropDir, err = expandPath(c.Paths.TempCropDir); err != nil {
		return fmt.Errorf("paths.temp_crop_dir: %w", err)
	}
	if c.Paths.ThumbnailDir, err = expandPath(c.Paths.ThumbnailDir); err != nil {
		return fmt.Errorf("paths.thumbnail_dir: %w", err)
	}
	if c.Paths.QueueFile, err = expandPath(c.Paths.QueueFile); err != nil {
		return fmt.Errorf("paths.queue_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeInference() {
	c.Inference.URL = strings.TrimSpace(c.Inference.URL)
	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = defaultInferenceTimeout
	}
	if strings.TrimSpace(c.Inference.Category) == "" {
		c.Inference.Category = defaultInferenceCategory
	}
	if c.Inference.Steps <= 0 {
		c.Inference.Steps = defaultInferenceSteps
	}
	if c.Inference.CFG <= 0 {
		c.Inference.CFG = defaultInferenceCFG
	}
}

func (c *Config) normalizeRemoteStore() {
	if c.RemoteStore.APIKey == "" {
		if value, ok := os.LookupEnv("TRYON_REMOTE_STORE_KEY"); ok {
			c.RemoteStore.APIKey = strings.TrimSpace(value)
		}
	}
	c.RemoteStore.Endpoint = strings.TrimRight(strings.TrimSpace(c.RemoteStore.Endpoint), "/")
	c.RemoteStore.ClientID = strings.TrimSpace(c.RemoteStore.ClientID)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
