package catalog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"tryon/internal/logging"
	"tryon/internal/services"
)

// Store caches the scanned product set with a TTL and serializes catalog
// file rewrites.
type Store struct {
	root   string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	products  []Product
	refreshed time.Time
}

// NewStore creates a catalog store over the given root directory.
func NewStore(root string, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		root:   root,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "catalog"),
		now:    time.Now,
	}
}

// Refresh returns the cached product set, rescanning first when the cache is
// older than the TTL, empty, or force is set. The cached set is swapped
// wholesale; partial updates never happen.
func (s *Store) Refresh(force bool) ([]Product, error) {
	s.mu.RLock()
	fresh := !force && len(s.products) > 0 && s.now().Sub(s.refreshed) < s.ttl
	if fresh {
		products := s.products
		s.mu.RUnlock()
		return products, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have refreshed while we waited for the write lock.
	if !force && len(s.products) > 0 && s.now().Sub(s.refreshed) < s.ttl {
		return s.products, nil
	}

	products, err := Scan(s.root, s.logger)
	if err != nil {
		return nil, err
	}
	s.products = products
	s.refreshed = s.now()
	s.logger.Info("catalog cache refreshed", logging.Int("product_count", len(products)))
	return products, nil
}

// Lookup returns the first product with the given id in scan order.
func (s *Store) Lookup(id string) (Product, error) {
	products, err := s.Refresh(false)
	if err != nil {
		return Product{}, err
	}
	for _, product := range products {
		if product.ID == id {
			return product, nil
		}
	}
	return Product{}, services.Wrap(services.ErrNotFound, "catalog", "lookup",
		fmt.Sprintf("product %s", id), nil)
}

// ValidIDs returns the set of product ids currently known to the catalog.
func (s *Store) ValidIDs() (map[string]struct{}, error) {
	products, err := s.Refresh(false)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(products))
	for _, product := range products {
		ids[product.ID] = struct{}{}
	}
	return ids, nil
}

// UpdateField rewrites the catalog file at csvPath with column set to value
// on the row matching id, then forces a cache refresh. The rewrite is a
// whole-file read-modify-write; there is no locking against concurrent
// readers of the file itself.
func (s *Store) UpdateField(csvPath, id, column, value string) error {
	if err := s.updateCatalogFile(csvPath, id, column, value); err != nil {
		return err
	}
	if _, err := s.Refresh(true); err != nil {
		return fmt.Errorf("refresh after update: %w", err)
	}
	return nil
}

func (s *Store) updateCatalogFile(csvPath, id, column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(csvPath)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "catalog", "update", "open catalog", err)
	}
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	file.Close()
	if err != nil {
		return services.Wrap(services.ErrPersistence, "catalog", "update", "read catalog", err)
	}
	if len(records) == 0 {
		return services.Wrap(services.ErrValidation, "catalog", "update", "catalog file is empty", nil)
	}

	header := records[0]
	columnIdx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == column {
			columnIdx = i
			break
		}
	}
	if columnIdx < 0 {
		header = append(header, column)
		records[0] = header
		columnIdx = len(header) - 1
	}

	idIdx, ok := indexColumns(header)[columnID]
	if !ok {
		return services.Wrap(services.ErrValidation, "catalog", "update",
			fmt.Sprintf("catalog missing required %q column", columnID), nil)
	}

	updated := false
	for i, record := range records[1:] {
		if idIdx >= len(record) || strings.TrimSpace(record[idIdx]) != id {
			continue
		}
		for len(record) <= columnIdx {
			record = append(record, "")
		}
		record[columnIdx] = value
		records[i+1] = record
		updated = true
	}
	if !updated {
		return services.Wrap(services.ErrNotFound, "catalog", "update",
			fmt.Sprintf("product %s not in %s", id, csvPath), nil)
	}

	if err := rewriteCatalogFile(csvPath, records); err != nil {
		return services.Wrap(services.ErrPersistence, "catalog", "update", "write catalog", err)
	}
	s.logger.Info("catalog field updated",
		logging.String(logging.FieldProductID, id),
		logging.String("column", column),
		logging.String("path", csvPath))
	return nil
}
