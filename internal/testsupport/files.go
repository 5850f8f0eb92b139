package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to path, creating parent directories as needed.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteCatalog writes a catalogue.csv under dir with the standard header and
// the provided rows, and creates the sibling garment directory. It returns
// the catalogue path.
func WriteCatalog(t testing.TB, dir string, rows ...[]string) string {
	t.Helper()

	header := []string{
		"id", "Name", "Brand", "MRP", "Discount %", "Category", "Sub_Category",
		"Gender", "Color", "Description", "Material Care", "sizes",
		"Thumbnail Image Filename", "Vton Ready Image Filename",
		"Other images filename", "size_chart", "size_chart_unit",
	}
	lines := []string{strings.Join(header, ",")}
	for _, row := range rows {
		padded := make([]string, len(header))
		copy(padded, row)
		lines = append(lines, strings.Join(padded, ","))
	}

	path := filepath.Join(dir, "catalogue.csv")
	WriteFile(t, path, []byte(strings.Join(lines, "\n")+"\n"))
	if err := os.MkdirAll(filepath.Join(dir, "garment"), 0o755); err != nil {
		t.Fatalf("mkdir garment: %v", err)
	}
	return path
}

// CatalogRow builds a full-width catalogue row for the given product id with
// sensible defaults, overridable by position through the extra map.
func CatalogRow(id string, overrides map[int]string) []string {
	row := []string{
		id, "Test Garment " + id, "TestBrand", "999", "10", "Saree", "Silk",
		"Women", "Red", "A test garment", "Dry clean", "M;L",
		"thumb.png", "", "front.png; back.png", "", "",
	}
	for idx, value := range overrides {
		if idx >= 0 && idx < len(row) {
			row[idx] = value
		}
	}
	return row
}

// WriteGarmentImage writes a placeholder image file under the product's
// garment subdirectory and returns its path.
func WriteGarmentImage(t testing.TB, catalogDir, productID, filename string, content []byte) string {
	t.Helper()

	path := filepath.Join(catalogDir, "garment", productID, filename)
	WriteFile(t, path, content)
	return path
}
