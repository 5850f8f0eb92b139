// Package daemon coordinates the background services and exposes the HTTP
// API. It enforces single-instance execution with a file lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tryon/internal/approval"
	"tryon/internal/catalog"
	"tryon/internal/config"
	"tryon/internal/crops"
	"tryon/internal/janitor"
	"tryon/internal/logging"
	"tryon/internal/processor"
	"tryon/internal/queue"
	"tryon/internal/services"
	"tryon/internal/services/remotestore"
	"tryon/internal/thumbs"
	"tryon/internal/workflow"
)

// Daemon owns the long-running services: queue store, catalog, scheduler,
// and the HTTP API server.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	catalog   *catalog.Store
	processor *processor.Processor
	workflow  *workflow.Manager
	approval  *approval.Workflow
	crops     *crops.Store
	thumbs    *thumbs.Cache
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	QueueFilePath string        `json:"queue_file_path"`
	LockFilePath  string        `json:"lock_file_path"`
	Queue         queue.Summary `json:"queue"`
}

// New constructs a daemon with all services wired from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	store := queue.Open(cfg.Paths.QueueFile, cfg.Paths.ProcessedDir, logger)
	catalogStore := catalog.NewStore(cfg.Paths.CatalogRoot, time.Duration(cfg.Catalog.CacheTTLSeconds)*time.Second, logger)
	proc := processor.New(cfg, store, catalogStore, logger)
	collector := janitor.New(cfg, store, catalogStore, logger)
	manager := workflow.NewManager(cfg, store, proc, collector, logger)
	remote := remotestore.NewClient(cfg)
	approver := approval.New(cfg, store, catalogStore, remote, logger)

	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		catalog:   catalogStore,
		processor: proc,
		workflow:  manager,
		approval:  approver,
		crops:     crops.NewStore(cfg, logger),
		thumbs:    thumbs.NewCache(cfg, logger),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// LockPath returns the instance lock file for a configuration.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "tryond.lock")
}

// Running reports whether a daemon for the given configuration currently
// holds the instance lock. The probe acquires and releases the lock, so it
// must not be called from a process that intends to keep it.
func Running(cfg *config.Config) bool {
	lock := flock.New(LockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

// Start acquires the instance lock and launches the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tryon daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API server and scheduler and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.workflow.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// APIAddr reports the bound API address, empty before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status snapshots daemon and queue state.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		QueueFilePath: d.cfg.Paths.QueueFile,
		LockFilePath:  d.lockPath,
		Queue:         d.store.Summarize(),
	}
}

// ProcessNow dispatches a specific pending item immediately, bypassing the
// tick cadence but honoring the single-flight guard.
func (d *Daemon) ProcessNow(ctx context.Context, productID, filename string) error {
	item, ok := d.store.Find(productID, filename)
	if !ok {
		return services.Wrap(services.ErrNotFound, "daemon", "process",
			fmt.Sprintf("queue item %s/%s", productID, filename), nil)
	}
	if item.Status != queue.StatusPending {
		return fmt.Errorf("item %s/%s is %s, only pending items can be dispatched", productID, filename, item.Status)
	}
	if d.store.HasProcessing() {
		return errors.New("another job is already processing")
	}
	return d.processor.Process(ctx, item)
}
