package catalog

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tryon/internal/fileutil"
	"tryon/internal/logging"
)

// Scan walks root recursively, parses every recognized catalog file, and
// returns the combined product list in scan order. Unreadable catalogs are
// logged and skipped; an unreadable root is an error.
func Scan(root string, logger *slog.Logger) ([]Product, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var products []Product
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("scan catalog root: %w", walkErr)
			}
			logger.Warn("skipping unreadable path during catalog scan",
				logging.String("path", path),
				logging.Error(walkErr))
			return nil
		}
		if !entry.IsDir() {
			return nil
		}

		catalogPath := findCatalogFile(path)
		if catalogPath == "" {
			return nil
		}

		garmentDir := findGarmentDir(path)
		rows, err := parseCatalogFile(catalogPath, garmentDir)
		if err != nil {
			logger.Warn("failed to parse catalog file",
				logging.String("path", catalogPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "catalog_parse_failed"),
				logging.String(logging.FieldErrorHint, "fix or remove the catalog file"))
			return nil
		}
		products = append(products, rows...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func findCatalogFile(dir string) string {
	for _, name := range catalogFilenames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func findGarmentDir(dir string) string {
	for _, name := range garmentDirNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	// Default to the conventional name even when missing so paths resolve
	// predictably once images arrive.
	return filepath.Join(dir, garmentDirNames[0])
}

func parseCatalogFile(path, garmentDir string) ([]Product, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	columns := indexColumns(records[0])
	if _, ok := columns[columnID]; !ok {
		return nil, fmt.Errorf("catalog missing required %q column", columnID)
	}

	products := make([]Product, 0, len(records)-1)
	for _, record := range records[1:] {
		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		id := field(columnID)
		if id == "" {
			continue
		}

		products = append(products, Product{
			ID:              id,
			Name:            field(columnName),
			Brand:           field(columnBrand),
			MRP:             parseFloat(field(columnMRP)),
			DiscountPercent: parseFloat(field(columnDiscount)),
			Category:        field(columnCategory),
			SubCategory:     field(columnSubCategory),
			Gender:          field(columnGender),
			Color:           field(columnColor),
			Description:     field(columnDescription),
			MaterialCare:    field(columnMaterialCare),
			Sizes:           field(columnSizes),
			ThumbnailImage:  field(columnThumbnail),
			VtonImage:       field(ColumnVtonReady),
			OtherImages:     splitImageList(field(columnOtherImages)),
			SizeChart:       field(columnSizeChart),
			SizeChartUnit:   field(columnSizeChartUnit),
			GarmentDir:      garmentDir,
			SourceCSV:       path,
		})
	}
	return products, nil
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	return columns
}

func parseFloat(value string) float64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func splitImageList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	images := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			images = append(images, trimmed)
		}
	}
	return images
}

// rewriteCatalogFile writes records back to path through an atomic rename.
func rewriteCatalogFile(path string, records [][]string) error {
	var builder strings.Builder
	writer := csv.NewWriter(&builder)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return fileutil.WriteFileAtomic(path, []byte(builder.String()), 0o644)
}
