package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"tryon/internal/fileutil"
	"tryon/internal/logging"
	"tryon/internal/services"
)

// Store provides serialized access to the extraction queue. All reads hand
// out copies; no caller ever holds a live reference into the item list.
type Store struct {
	path         string
	processedDir string
	logger       *slog.Logger

	mu    sync.Mutex
	items []Item
}

// Open loads the queue from its durable file. A missing or unreadable file
// yields an empty queue; startup never fails on queue state.
func Open(path, processedDir string, logger *slog.Logger) *Store {
	logger = logging.NewComponentLogger(logger, "queue")
	s := &Store{
		path:         path,
		processedDir: processedDir,
		logger:       logger,
	}
	if err := s.load(); err != nil {
		logger.Warn("failed to load queue file; starting empty",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldEventType, "queue_load_failed"),
			logging.String(logging.FieldErrorHint, "previous queue contents are ignored"),
		)
	}
	return s
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read queue file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse queue file: %w", err)
	}

	kept := items[:0]
	for _, item := range items {
		if item.ProductID == "" || item.ImageFilename == "" {
			continue
		}
		if _, ok := ParseStatus(string(item.Status)); !ok {
			item.Status = StatusPending
		}
		kept = append(kept, item)
	}
	s.items = kept

	s.logger.Debug("loaded queue",
		logging.Int("item_count", len(s.items)),
		logging.String("path", s.path))
	return nil
}

// save rewrites the durable representation with the full current item list.
// Callers must hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrPersistence, "queue", "save", "encode queue", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return services.Wrap(services.ErrPersistence, "queue", "save", "write queue file", err)
	}
	return nil
}

// Path returns the durable queue file location.
func (s *Store) Path() string {
	return s.path
}

// Add appends a new pending item unless an item with the same identity is
// already queued. The returned bool reports whether the queue changed.
func (s *Store) Add(productID, filename string, isCropped bool) (Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.Matches(productID, filename) {
			return existing, false, nil
		}
	}

	item := Item{
		ProductID:     productID,
		ImageFilename: filename,
		Status:        StatusPending,
		IsCropped:     isCropped,
	}
	s.items = append(s.items, item)
	if err := s.save(); err != nil {
		s.items = s.items[:len(s.items)-1]
		return Item{}, false, err
	}

	s.logger.Info("item enqueued",
		logging.String(logging.FieldProductID, productID),
		logging.String(logging.FieldImage, filename),
		logging.Bool("is_cropped", isCropped),
		logging.Int("queue_length", len(s.items)))
	return item, true, nil
}

// Remove deletes the matching item and its processed output file, if any.
// Returns a not-found error when no item matches.
func (s *Store) Remove(productID, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(productID, filename)
	if idx < 0 {
		return services.Wrap(services.ErrNotFound, "queue", "remove",
			fmt.Sprintf("no item for %s/%s", productID, filename), nil)
	}

	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	if err := s.save(); err != nil {
		return err
	}

	s.deleteProcessedOutput(removed)
	s.logger.Info("item removed",
		logging.String(logging.FieldProductID, productID),
		logging.String(logging.FieldImage, filename))
	return nil
}

// ClearApproved removes every approved item in one pass and returns the
// count removed.
func (s *Store) ClearApproved() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Item, 0, len(s.items))
	var cleared []Item
	for _, item := range s.items {
		if item.Status == StatusApproved {
			cleared = append(cleared, item)
			continue
		}
		kept = append(kept, item)
	}
	if len(cleared) == 0 {
		return 0, nil
	}

	s.items = kept
	if err := s.save(); err != nil {
		return 0, err
	}

	for _, item := range cleared {
		s.deleteProcessedOutput(item)
	}
	s.logger.Info("approved items cleared", logging.Int("count", len(cleared)))
	return len(cleared), nil
}

// Items returns a copy of the current queue in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Item, len(s.items))
	copy(cp, s.items)
	return cp
}

// Find returns a copy of the matching item.
func (s *Store) Find(productID, filename string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(productID, filename); idx >= 0 {
		return s.items[idx], true
	}
	return Item{}, false
}

// NextPending returns the earliest-inserted pending item.
func (s *Store) NextPending() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Status == StatusPending {
			return item, true
		}
	}
	return Item{}, false
}

// HasProcessing reports whether any item is currently in flight.
func (s *Store) HasProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Status == StatusProcessing {
			return true
		}
	}
	return false
}

// Summarize returns aggregate counts per lifecycle state.
func (s *Store) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := Summary{Total: len(s.items)}
	for _, item := range s.items {
		switch item.Status {
		case StatusPending:
			summary.Pending++
		case StatusProcessing:
			summary.Processing++
		case StatusCompleted:
			summary.Completed++
		case StatusFailed:
			summary.Failed++
		case StatusApproved:
			summary.Approved++
		}
	}
	return summary
}

// MarkProcessing transitions the item to processing and persists.
func (s *Store) MarkProcessing(productID, filename string) error {
	return s.transition(productID, filename, StatusProcessing, func(item *Item) {})
}

// MarkCompleted transitions the item to completed, recording the processed
// output path and whether the fallback policy produced it.
func (s *Store) MarkCompleted(productID, filename, processedPath string, fallback bool) error {
	return s.transition(productID, filename, StatusCompleted, func(item *Item) {
		item.ProcessedImagePath = processedPath
		item.Fallback = fallback
	})
}

// MarkFailed transitions the item to failed and persists.
func (s *Store) MarkFailed(productID, filename string) error {
	return s.transition(productID, filename, StatusFailed, func(item *Item) {})
}

// MarkApproved transitions the item to approved and persists. Only the
// approval workflow calls this.
func (s *Store) MarkApproved(productID, filename string) error {
	return s.transition(productID, filename, StatusApproved, func(item *Item) {})
}

func (s *Store) transition(productID, filename string, to Status, apply func(*Item)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(productID, filename)
	if idx < 0 {
		return services.Wrap(services.ErrNotFound, "queue", "transition",
			fmt.Sprintf("no item for %s/%s", productID, filename), nil)
	}

	from := s.items[idx].Status
	if !CanTransition(from, to) {
		return services.Wrap(services.ErrValidation, "queue", "transition",
			fmt.Sprintf("invalid transition %s -> %s for %s/%s", from, to, productID, filename), nil)
	}

	prev := s.items[idx]
	s.items[idx].Status = to
	apply(&s.items[idx])
	if err := s.save(); err != nil {
		s.items[idx] = prev
		return err
	}

	s.logger.Debug("item transitioned",
		logging.String(logging.FieldProductID, productID),
		logging.String(logging.FieldImage, filename),
		logging.String("from", string(from)),
		logging.String("to", string(to)))
	return nil
}

func (s *Store) indexOf(productID, filename string) int {
	for i, item := range s.items {
		if item.Matches(productID, filename) {
			return i
		}
	}
	return -1
}

// deleteProcessedOutput removes an item's processed artifact from the
// processed-output area. Best effort; absence is normal for items that never
// completed.
func (s *Store) deleteProcessedOutput(item Item) {
	if s.processedDir == "" {
		return
	}
	candidates := []string{item.ProcessedFilename()}
	if item.ProcessedImagePath != "" && item.ProcessedImagePath != candidates[0] {
		candidates = append(candidates, item.ProcessedImagePath)
	}
	for _, name := range candidates {
		path := filepath.Join(s.processedDir, filepath.Base(name))
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to delete processed output",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "processed_delete_failed"))
		}
	}
}
