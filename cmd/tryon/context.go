package main

import (
	"time"

	"tryon/internal/catalog"
	"tryon/internal/config"
	"tryon/internal/daemon"
	"tryon/internal/logging"
	"tryon/internal/queue"
)

// commandContext lazily loads configuration and constructs the stores the
// commands operate on. Queue mutations go through a running daemon's API
// when one holds the instance lock; otherwise commands touch the queue file
// directly.
type commandContext struct {
	configFlag *string

	cfg        *config.Config
	configPath string
	store      *queue.Store
	catalog    *catalog.Store
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, exists, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	if exists {
		c.configPath = resolvedPath
	}
	return c.cfg, nil
}

func (c *commandContext) queueStore() (*queue.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.store = queue.Open(cfg.Paths.QueueFile, cfg.Paths.ProcessedDir, logging.NewNop())
	return c.store, nil
}

// daemonAPI returns a client for the running daemon, if one currently holds
// the instance lock.
func (c *commandContext) daemonAPI() (*apiClient, bool) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, false
	}
	if !daemon.Running(cfg) {
		return nil, false
	}
	return newAPIClient(cfg.Paths.APIBind), true
}

func (c *commandContext) catalogStore() (*catalog.Store, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.Catalog.CacheTTLSeconds) * time.Second
	c.catalog = catalog.NewStore(cfg.Paths.CatalogRoot, ttl, logging.NewNop())
	return c.catalog, nil
}
