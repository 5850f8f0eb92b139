package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateThumbnails(); err != nil {
		return err
	}
	if err := c.validateRemoteStore(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.CatalogRoot == "" {
		return errors.New("paths.catalog_root must be set")
	}
	if c.Paths.ProcessedDir == "" {
		return errors.New("paths.processed_dir must be set")
	}
	if c.Paths.TempCropDir == "" {
		return errors.New("paths.temp_crop_dir must be set")
	}
	if c.Paths.ThumbnailDir == "" {
		return errors.New("paths.thumbnail_dir must be set")
	}
	if c.Paths.QueueFile == "" {
		return errors.New("paths.queue_file must be set")
	}
	return nil
}

func (c *Config) validateInference() error {
	if c.Inference.TimeoutSeconds <= 0 {
		return errors.New("inference.timeout_seconds must be positive")
	}
	if c.Inference.Steps <= 0 {
		return errors.New("inference.steps must be positive")
	}
	if c.Inference.CFG <= 0 {
		return errors.New("inference.cfg must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.JanitorEveryTicks <= 0 {
		return errors.New("workflow.janitor_every_ticks must be positive")
	}
	return nil
}

func (c *Config) validateThumbnails() error {
	if c.Thumbnails.MaxDimension <= 0 {
		return errors.New("thumbnails.max_dimension must be positive")
	}
	if c.Thumbnails.JPEGQuality < 1 || c.Thumbnails.JPEGQuality > 100 {
		return fmt.Errorf("thumbnails.jpeg_quality must be between 1 and 100, got %d", c.Thumbnails.JPEGQuality)
	}
	return nil
}

func (c *Config) validateRemoteStore() error {
	if !c.RemoteStore.Enabled {
		return nil
	}
	if c.RemoteStore.Endpoint == "" {
		return errors.New("remote_store.endpoint must be set when remote_store.enabled is true")
	}
	return nil
}
