package workflow_test

import (
	"context"
	"testing"

	"tryon/internal/janitor"
	"tryon/internal/logging"
	"tryon/internal/queue"
	"tryon/internal/testsupport"
	"tryon/internal/workflow"
)

type recordingProcessor struct {
	store     *queue.Store
	processed []queue.Item
	fail      bool
}

func (p *recordingProcessor) Process(_ context.Context, item queue.Item) error {
	p.processed = append(p.processed, item)
	if err := p.store.MarkProcessing(item.ProductID, item.ImageFilename); err != nil {
		return err
	}
	if p.fail {
		return p.store.MarkFailed(item.ProductID, item.ImageFilename)
	}
	return p.store.MarkCompleted(item.ProductID, item.ImageFilename, "", false)
}

type countingCollector struct {
	runs int
}

func (c *countingCollector) Run() janitor.Counts {
	c.runs++
	return janitor.Counts{}
}

func newManager(t *testing.T, janitorEvery int) (*queue.Store, *recordingProcessor, *countingCollector, *workflow.Manager) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Workflow.JanitorEveryTicks = janitorEvery
	store := testsupport.OpenStore(t, cfg)
	processor := &recordingProcessor{store: store}
	collector := &countingCollector{}
	manager := workflow.NewManager(cfg, store, processor, collector, logging.NewNop())
	return store, processor, collector, manager
}

func TestTickDispatchesOldestPending(t *testing.T) {
	store, processor, _, manager := newManager(t, 0)
	testsupport.MustAdd(t, store, "p1", "first.png")
	testsupport.MustAdd(t, store, "p2", "second.png")

	manager.Tick(context.Background())
	if len(processor.processed) != 1 {
		t.Fatalf("processed %d items in one tick, want 1", len(processor.processed))
	}
	if processor.processed[0].ProductID != "p1" {
		t.Errorf("processed %s first, want p1", processor.processed[0].ProductID)
	}

	manager.Tick(context.Background())
	if len(processor.processed) != 2 {
		t.Fatalf("processed %d items after two ticks, want 2", len(processor.processed))
	}
	if processor.processed[1].ProductID != "p2" {
		t.Errorf("processed %s second, want p2", processor.processed[1].ProductID)
	}
}

func TestTickSkipsWhileJobInFlight(t *testing.T) {
	store, processor, _, manager := newManager(t, 0)
	testsupport.MustAdd(t, store, "p1", "busy.png")
	testsupport.MustAdd(t, store, "p2", "waiting.png")
	if err := store.MarkProcessing("p1", "busy.png"); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	manager.Tick(context.Background())
	if len(processor.processed) != 0 {
		t.Errorf("dispatched %d items while one was processing, want 0", len(processor.processed))
	}
}

func TestTickIdleQueue(t *testing.T) {
	_, processor, _, manager := newManager(t, 0)

	manager.Tick(context.Background())
	if len(processor.processed) != 0 {
		t.Errorf("dispatched %d items from an empty queue", len(processor.processed))
	}
}

func TestJanitorRunsOnCadence(t *testing.T) {
	_, _, collector, manager := newManager(t, 5)

	for i := 0; i < 12; i++ {
		manager.Tick(context.Background())
	}
	if collector.runs != 2 {
		t.Errorf("janitor ran %d times over 12 ticks with cadence 5, want 2", collector.runs)
	}
}

func TestJanitorRunsRegardlessOfJobActivity(t *testing.T) {
	store, processor, collector, manager := newManager(t, 2)
	testsupport.MustAdd(t, store, "p1", "busy.png")
	if err := store.MarkProcessing("p1", "busy.png"); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	manager.Tick(context.Background())
	manager.Tick(context.Background())
	if len(processor.processed) != 0 {
		t.Fatalf("dispatched while busy")
	}
	if collector.runs != 1 {
		t.Errorf("janitor ran %d times, want 1", collector.runs)
	}
}

func TestProcessorFailureDoesNotStopScheduling(t *testing.T) {
	store, processor, _, manager := newManager(t, 0)
	processor.fail = true
	testsupport.MustAdd(t, store, "p1", "a.png")
	testsupport.MustAdd(t, store, "p2", "b.png")

	manager.Tick(context.Background())
	manager.Tick(context.Background())
	if len(processor.processed) != 2 {
		t.Fatalf("processed %d items, want 2", len(processor.processed))
	}

	summary := store.Summarize()
	if summary.Failed != 2 {
		t.Errorf("failed count = %d, want 2", summary.Failed)
	}
}

func TestStartStop(t *testing.T) {
	_, _, _, manager := newManager(t, 0)

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !manager.Running() {
		t.Error("Running() = false after Start")
	}
	if err := manager.Start(ctx); err == nil {
		t.Error("second Start succeeded, want error")
	}

	manager.Stop()
	if manager.Running() {
		t.Error("Running() = true after Stop")
	}
	manager.Stop()
}
