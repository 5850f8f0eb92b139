package processor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"tryon/internal/catalog"
	"tryon/internal/config"
	"tryon/internal/fileutil"
	"tryon/internal/logging"
	"tryon/internal/queue"
	"tryon/internal/services/vton"
)

// InferenceClient generates a try-on result for a source image.
type InferenceClient interface {
	Generate(ctx context.Context, filename string, image []byte) ([]byte, error)
}

// ProductLookup resolves product ids to catalog products.
type ProductLookup interface {
	Lookup(id string) (catalog.Product, error)
}

// Processor executes one queue item at a time against the inference service.
type Processor struct {
	store        *queue.Store
	catalog      ProductLookup
	inference    InferenceClient
	tempCropDir  string
	processedDir string
	logger       *slog.Logger
}

// New constructs a processor wired to the queue store, catalog, and
// inference client.
func New(cfg *config.Config, store *queue.Store, products ProductLookup, logger *slog.Logger) *Processor {
	return NewWithClient(cfg, store, products, vton.NewClient(cfg), logger)
}

// NewWithClient constructs a processor with an injected inference client.
func NewWithClient(cfg *config.Config, store *queue.Store, products ProductLookup, client InferenceClient, logger *slog.Logger) *Processor {
	return &Processor{
		store:        store,
		catalog:      products,
		inference:    client,
		tempCropDir:  cfg.Paths.TempCropDir,
		processedDir: cfg.Paths.ProcessedDir,
		logger:       logging.NewComponentLogger(logger, "processor"),
	}
}

// Process runs the item to a terminal status. The returned error reports
// infrastructure problems (queue persistence); processing failures are
// recorded on the item itself.
func (p *Processor) Process(ctx context.Context, item queue.Item) error {
	logger := p.logger.With(
		logging.String(logging.FieldProductID, item.ProductID),
		logging.String(logging.FieldImage, item.ImageFilename),
	)

	if err := p.store.MarkProcessing(item.ProductID, item.ImageFilename); err != nil {
		return err
	}

	inputPath, ok := p.resolveSource(item, logger)
	if !ok {
		return p.store.MarkFailed(item.ProductID, item.ImageFilename)
	}

	source, err := os.ReadFile(inputPath)
	if err != nil {
		logger.Error("failed to read source image",
			logging.String("path", inputPath),
			logging.Error(err),
			logging.String(logging.FieldEventType, "source_read_failed"))
		return p.store.MarkFailed(item.ProductID, item.ImageFilename)
	}

	processedFilename := item.ProcessedFilename()
	outputPath := filepath.Join(p.processedDir, processedFilename)

	fallback := false
	result, err := p.inference.Generate(ctx, item.ImageFilename, source)
	if err == nil {
		err = os.WriteFile(outputPath, result, 0o644)
		if err != nil {
			logger.Error("failed to write inference result",
				logging.String("path", outputPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "result_write_failed"))
			return p.store.MarkFailed(item.ProductID, item.ImageFilename)
		}
	} else {
		logger.Warn("inference failed; using source image as result",
			logging.Error(err),
			logging.String(logging.FieldEventType, "inference_fallback"),
			logging.String(logging.FieldImpact, "result is the unmodified source image"))
		if err := fileutil.CopyFile(inputPath, outputPath); err != nil {
			logger.Error("fallback copy failed",
				logging.String("path", outputPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "fallback_copy_failed"))
			return p.store.MarkFailed(item.ProductID, item.ImageFilename)
		}
		fallback = true
	}

	if err := p.store.MarkCompleted(item.ProductID, item.ImageFilename, processedFilename, fallback); err != nil {
		return err
	}
	logger.Info("processing complete",
		logging.String("processed", processedFilename),
		logging.Bool("fallback", fallback))
	return nil
}

// resolveSource finds the input image: the temporary crop area wins on
// filename match, otherwise the catalog's garment tree is consulted.
func (p *Processor) resolveSource(item queue.Item, logger *slog.Logger) (string, bool) {
	tempPath := filepath.Join(p.tempCropDir, filepath.Base(item.ImageFilename))
	if fileutil.Exists(tempPath) {
		return tempPath, true
	}

	product, err := p.catalog.Lookup(item.ProductID)
	if err != nil {
		logger.Warn("product lookup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "product_lookup_failed"),
			logging.String(logging.FieldErrorHint, "remove the item and re-enqueue after fixing the catalog"))
		return "", false
	}

	path := product.ImagePath(item.ImageFilename)
	if !fileutil.Exists(path) {
		logger.Warn("source image not found",
			logging.String("path", path),
			logging.String(logging.FieldEventType, "source_missing"))
		return "", false
	}
	return path, true
}
