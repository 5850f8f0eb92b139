package thumbs_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"tryon/internal/logging"
	"tryon/internal/testsupport"
	"tryon/internal/thumbs"
)

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestResolveGeneratesBoundedThumbnail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, logging.NewNop())

	source := filepath.Join(cfg.Paths.CatalogRoot, "garment", "p1", "front.png")
	writePNG(t, source, 1200, 800)

	resolved := cache.Resolve("p1", source)
	if resolved == source {
		t.Fatal("Resolve returned original path, want thumbnail")
	}
	if filepath.Dir(resolved) != cfg.Paths.ThumbnailDir {
		t.Errorf("thumbnail outside cache dir: %s", resolved)
	}
	if !strings.HasPrefix(filepath.Base(resolved), "thumb_p1_") {
		t.Errorf("thumbnail name = %s, want thumb_p1_ prefix", filepath.Base(resolved))
	}

	img, err := imaging.Open(resolved)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > cfg.Thumbnails.MaxDimension || bounds.Dy() > cfg.Thumbnails.MaxDimension {
		t.Errorf("thumbnail %dx%d exceeds max dimension %d", bounds.Dx(), bounds.Dy(), cfg.Thumbnails.MaxDimension)
	}
}

func TestResolveReusesCachedThumbnail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, logging.NewNop())

	source := filepath.Join(cfg.Paths.CatalogRoot, "garment", "p1", "front.png")
	writePNG(t, source, 600, 600)

	first := cache.Resolve("p1", source)
	info, err := os.Stat(first)
	if err != nil {
		t.Fatalf("stat first thumbnail: %v", err)
	}

	second := cache.Resolve("p1", source)
	if second != first {
		t.Errorf("second Resolve = %s, want %s", second, first)
	}
	again, err := os.Stat(second)
	if err != nil {
		t.Fatalf("stat second thumbnail: %v", err)
	}
	if !again.ModTime().Equal(info.ModTime()) {
		t.Error("thumbnail regenerated instead of reused")
	}
}

func TestResolveFallsBackOnUndecodableImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, logging.NewNop())

	source := filepath.Join(cfg.Paths.CatalogRoot, "garment", "p1", "broken.png")
	testsupport.WriteFile(t, source, []byte("not an image"))

	if resolved := cache.Resolve("p1", source); resolved != source {
		t.Errorf("Resolve = %s, want original %s", resolved, source)
	}
}

func TestResolveMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := thumbs.NewCache(cfg, logging.NewNop())

	missing := filepath.Join(cfg.Paths.CatalogRoot, "garment", "p1", "gone.png")
	if resolved := cache.Resolve("p1", missing); resolved != missing {
		t.Errorf("Resolve = %s, want %s", resolved, missing)
	}
}

func TestName(t *testing.T) {
	if got := thumbs.Name("p1", "/some/dir/front.png"); got != "thumb_p1_front.jpg" {
		t.Errorf("Name = %q, want thumb_p1_front.jpg", got)
	}
}
