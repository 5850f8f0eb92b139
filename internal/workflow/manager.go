// Package workflow drives the processing pipeline: a fixed-interval
// cooperative loop that dispatches one queued job at a time and periodically
// triggers garbage collection.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tryon/internal/config"
	"tryon/internal/janitor"
	"tryon/internal/logging"
	"tryon/internal/queue"
)

// Processor handles one queue item end to end.
type Processor interface {
	Process(ctx context.Context, item queue.Item) error
}

// Collector performs one garbage collection pass.
type Collector interface {
	Run() janitor.Counts
}

// Manager runs the scheduler loop. At most one job is in flight at any time;
// a tick that observes a processing item does nothing.
type Manager struct {
	store        *queue.Store
	processor    Processor
	collector    Collector
	logger       *slog.Logger
	pollInterval time.Duration
	janitorEvery int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ticks   int
}

// NewManager constructs the scheduler from configuration.
func NewManager(cfg *config.Config, store *queue.Store, processor Processor, collector Collector, logger *slog.Logger) *Manager {
	return &Manager{
		store:        store,
		processor:    processor,
		collector:    collector,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		janitorEvery: cfg.Workflow.JanitorEveryTicks,
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.run(runCtx)

	m.logger.Info("workflow started",
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("janitor_every_ticks", m.janitorEvery))
	return nil
}

// Stop terminates background processing and waits for the current job, if
// any, to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the scheduler loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick executes one scheduler iteration: dispatch the oldest pending job
// unless one is already processing, then run the janitor on its cadence.
// Exported so the cadence can be driven directly in tests and by on-demand
// process requests.
func (m *Manager) Tick(ctx context.Context) {
	m.dispatch(ctx)

	m.mu.Lock()
	m.ticks++
	due := m.janitorEvery > 0 && m.ticks%m.janitorEvery == 0
	m.mu.Unlock()
	if due {
		m.collector.Run()
	}
}

func (m *Manager) dispatch(ctx context.Context) {
	if m.store.HasProcessing() {
		return
	}
	item, ok := m.store.NextPending()
	if !ok {
		return
	}

	err := m.processor.Process(ctx, item)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("job processing failed",
			logging.String(logging.FieldProductID, item.ProductID),
			logging.String(logging.FieldImage, item.ImageFilename),
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, "inspect queue item status and re-enqueue if needed"))
	}
}

// RunJanitor triggers an immediate garbage collection pass, used after queue
// mutations through the API.
func (m *Manager) RunJanitor() janitor.Counts {
	return m.collector.Run()
}
