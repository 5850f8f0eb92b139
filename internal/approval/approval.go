// Package approval promotes completed try-on results into the catalog.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tryon/internal/catalog"
	"tryon/internal/config"
	"tryon/internal/fileutil"
	"tryon/internal/logging"
	"tryon/internal/queue"
	"tryon/internal/services"
	"tryon/internal/services/remotestore"
)

// Workflow commits an approved artifact to the catalog's canonical storage
// and records the approval on the queue item.
type Workflow struct {
	store        *queue.Store
	catalog      *catalog.Store
	remote       *remotestore.Client
	processedDir string
	logger       *slog.Logger
}

// Result reports what an approval produced.
type Result struct {
	VtonFilename string `json:"vton_filename"`
	Mirrored     bool   `json:"mirrored"`
}

// New constructs the approval workflow.
func New(cfg *config.Config, store *queue.Store, catalogStore *catalog.Store, remote *remotestore.Client, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:        store,
		catalog:      catalogStore,
		remote:       remote,
		processedDir: cfg.Paths.ProcessedDir,
		logger:       logging.NewComponentLogger(logger, "approval"),
	}
}

// Approve copies the processed artifact into the product's garment directory
// under the canonical vton name, updates the catalog column, and marks any
// matching queue item approved. A missing queue item is tolerated.
//
// The sequence is not atomic: a failure after the artifact copy but before
// the catalog update leaves the file in place without a catalog reference.
func (w *Workflow) Approve(ctx context.Context, productID, filename, processedFilename string) (Result, error) {
	logger := w.logger.With(
		logging.String(logging.FieldProductID, productID),
		logging.String(logging.FieldImage, filename),
	)

	product, err := w.catalog.Lookup(productID)
	if err != nil {
		return Result{}, err
	}

	sourcePath := filepath.Join(w.processedDir, filepath.Base(processedFilename))
	if !fileutil.Exists(sourcePath) {
		return Result{}, services.Wrap(services.ErrNotFound, "approval", "approve",
			fmt.Sprintf("processed artifact %s", processedFilename), nil)
	}

	vtonFilename := productID + "_vton.png"
	destPath := filepath.Join(product.GarmentDir, productID, vtonFilename)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrPersistence, "approval", "approve", "create garment directory", err)
	}
	if err := fileutil.CopyFile(sourcePath, destPath); err != nil {
		return Result{}, services.Wrap(services.ErrPersistence, "approval", "approve", "copy artifact", err)
	}

	mirrored := w.mirror(ctx, productID, vtonFilename, sourcePath, logger)

	if err := w.catalog.UpdateField(product.SourceCSV, productID, catalog.ColumnVtonReady, vtonFilename); err != nil {
		return Result{}, err
	}

	if _, ok := w.store.Find(productID, filename); ok {
		if err := w.store.MarkApproved(productID, filename); err != nil {
			return Result{}, err
		}
	}

	logger.Info("image approved",
		logging.String("vton_filename", vtonFilename),
		logging.Bool("mirrored", mirrored))
	return Result{VtonFilename: vtonFilename, Mirrored: mirrored}, nil
}

// mirror uploads the artifact to remote object storage. Failures are logged
// and never fail the approval.
func (w *Workflow) mirror(ctx context.Context, productID, vtonFilename, sourcePath string, logger *slog.Logger) bool {
	if w.remote == nil || !w.remote.Enabled() {
		return false
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		logger.Warn("failed to read artifact for mirroring",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mirror_read_failed"),
			logging.String(logging.FieldImpact, "artifact exists locally but not in remote storage"))
		return false
	}
	if err := w.remote.Put(ctx, productID, vtonFilename, data); err != nil {
		logger.Warn("remote mirror failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mirror_upload_failed"),
			logging.String(logging.FieldImpact, "artifact exists locally but not in remote storage"))
		return false
	}
	return true
}
