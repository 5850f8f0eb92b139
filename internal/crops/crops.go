// Package crops stores user-uploaded cropped garment images. Crops live in a
// temporary staging area until the queue item referencing them reaches a
// terminal state and the garbage collector reclaims them.
package crops

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"tryon/internal/config"
	"tryon/internal/logging"
	"tryon/internal/services"
)

// FilenamePrefix marks files in the staging area that originated as uploads.
const FilenamePrefix = "cropped_"

// Store saves uploaded crop images under generated names.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore constructs a crop store over the configured staging directory.
func NewStore(cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		dir:    cfg.Paths.TempCropDir,
		logger: logging.NewComponentLogger(logger, "crops"),
	}
}

// Save writes the uploaded image to the staging area under a fresh
// collision-free name and returns that name. The original upload filename is
// discarded apart from logging.
func (s *Store) Save(originalName string, data io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrPersistence, "crops", "save", "create staging directory", err)
	}

	name := FilenamePrefix + uuid.NewString() + ".png"
	path := filepath.Join(s.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", services.Wrap(services.ErrPersistence, "crops", "save", "create crop file", err)
	}
	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		os.Remove(path)
		return "", services.Wrap(services.ErrPersistence, "crops", "save", "write crop file", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", services.Wrap(services.ErrPersistence, "crops", "save", "close crop file", err)
	}

	s.logger.Info("crop stored",
		logging.String(logging.FieldImage, name),
		logging.String("original_filename", filepath.Base(originalName)))
	return name, nil
}

// Path resolves a stored crop name to its path in the staging area. Names
// that escape the staging directory or lack the crop prefix are rejected.
func (s *Store) Path(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || !strings.HasPrefix(base, FilenamePrefix) {
		return "", services.Wrap(services.ErrValidation, "crops", "path", "invalid crop name "+name, nil)
	}
	return filepath.Join(s.dir, base), nil
}

// IsCropName reports whether a queue image filename refers to a stored crop.
func IsCropName(name string) bool {
	return strings.HasPrefix(filepath.Base(name), FilenamePrefix)
}
