package crops_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tryon/internal/crops"
	"tryon/internal/logging"
	"tryon/internal/testsupport"
)

func TestSaveGeneratesUniqueNames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := crops.NewStore(cfg, logging.NewNop())

	first, err := store.Save("user-upload.png", bytes.NewReader([]byte("crop-a")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := store.Save("user-upload.png", bytes.NewReader([]byte("crop-b")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first == second {
		t.Errorf("two uploads produced the same name %q", first)
	}
	for _, name := range []string{first, second} {
		if !strings.HasPrefix(name, crops.FilenamePrefix) || !strings.HasSuffix(name, ".png") {
			t.Errorf("name %q does not match cropped_*.png", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(cfg.Paths.TempCropDir, first))
	if err != nil {
		t.Fatalf("read stored crop: %v", err)
	}
	if string(data) != "crop-a" {
		t.Errorf("stored crop content = %q", data)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := crops.NewStore(cfg, logging.NewNop())

	for _, name := range []string{"../etc/passwd", "cropped_a/../b.png", "plain.png"} {
		if _, err := store.Path(name); err == nil {
			t.Errorf("Path(%q) accepted, want error", name)
		}
	}

	name, err := store.Save("x.png", bytes.NewReader([]byte("ok")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, err := store.Path(name)
	if err != nil {
		t.Fatalf("Path(%q): %v", name, err)
	}
	if filepath.Dir(path) != cfg.Paths.TempCropDir {
		t.Errorf("resolved path %s outside staging dir", path)
	}
}

func TestIsCropName(t *testing.T) {
	if !crops.IsCropName("cropped_123.png") {
		t.Error("IsCropName(cropped_123.png) = false")
	}
	if crops.IsCropName("front.png") {
		t.Error("IsCropName(front.png) = true")
	}
}
