package approval_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tryon/internal/approval"
	"tryon/internal/catalog"
	"tryon/internal/config"
	"tryon/internal/logging"
	"tryon/internal/queue"
	"tryon/internal/services"
	"tryon/internal/services/remotestore"
	"tryon/internal/testsupport"
)

type captureDoer struct {
	requests []*http.Request
	bodies   []string
	status   int
	err      error
}

func (d *captureDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		d.bodies = append(d.bodies, string(data))
	}
	if d.err != nil {
		return nil, d.err
	}
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func newFixture(t *testing.T, remote *remotestore.Client) (*config.Config, *queue.Store, *catalog.Store, *approval.Workflow) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	testsupport.WriteCatalog(t, cfg.Paths.CatalogRoot, testsupport.CatalogRow("p1", nil))
	store := testsupport.OpenStore(t, cfg)
	catalogStore := catalog.NewStore(cfg.Paths.CatalogRoot, time.Minute, logging.NewNop())
	workflow := approval.New(cfg, store, catalogStore, remote, logging.NewNop())
	return cfg, store, catalogStore, workflow
}

func stageCompleted(t *testing.T, cfg *config.Config, store *queue.Store, productID, filename string) string {
	t.Helper()

	testsupport.MustAdd(t, store, productID, filename)
	if err := store.MarkProcessing(productID, filename); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	processedName := queue.ProcessedFilename(productID, filename)
	processedPath := filepath.Join(cfg.Paths.ProcessedDir, processedName)
	testsupport.WriteFile(t, processedPath, []byte("result-bytes"))
	if err := store.MarkCompleted(productID, filename, processedPath, false); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	return processedName
}

func TestApprovePromotesArtifact(t *testing.T) {
	cfg, store, catalogStore, workflow := newFixture(t, nil)
	processedName := stageCompleted(t, cfg, store, "p1", "img.png")

	result, err := workflow.Approve(context.Background(), "p1", "img.png", processedName)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if result.VtonFilename != "p1_vton.png" {
		t.Errorf("VtonFilename = %q, want p1_vton.png", result.VtonFilename)
	}
	if result.Mirrored {
		t.Error("Mirrored = true with no remote client")
	}

	dest := filepath.Join(cfg.Paths.CatalogRoot, "garment", "p1", "p1_vton.png")
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read promoted artifact: %v", err)
	}
	if string(data) != "result-bytes" {
		t.Errorf("promoted artifact content = %q", data)
	}

	product, err := catalogStore.Lookup("p1")
	if err != nil {
		t.Fatalf("Lookup after approve: %v", err)
	}
	if product.VtonImage != "p1_vton.png" {
		t.Errorf("VtonImage = %q, want p1_vton.png", product.VtonImage)
	}

	item, ok := store.Find("p1", "img.png")
	if !ok {
		t.Fatal("queue item missing after approve")
	}
	if item.Status != queue.StatusApproved {
		t.Errorf("status = %s, want approved", item.Status)
	}
}

func TestApproveOverwritesExistingVtonImage(t *testing.T) {
	cfg, store, _, workflow := newFixture(t, nil)
	processedName := stageCompleted(t, cfg, store, "p1", "img.png")

	dest := filepath.Join(cfg.Paths.CatalogRoot, "garment", "p1", "p1_vton.png")
	testsupport.WriteFile(t, dest, []byte("stale"))

	if _, err := workflow.Approve(context.Background(), "p1", "img.png", processedName); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read promoted artifact: %v", err)
	}
	if string(data) != "result-bytes" {
		t.Errorf("promoted artifact content = %q, want fresh bytes", data)
	}
}

func TestApproveUnknownProduct(t *testing.T) {
	cfg, store, _, workflow := newFixture(t, nil)
	processedName := stageCompleted(t, cfg, store, "p1", "img.png")

	_, err := workflow.Approve(context.Background(), "nope", "img.png", processedName)
	if !services.IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestApproveMissingArtifact(t *testing.T) {
	_, _, _, workflow := newFixture(t, nil)

	_, err := workflow.Approve(context.Background(), "p1", "img.png", "processed_p1_img.png")
	if !services.IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestApproveWithoutQueueItem(t *testing.T) {
	cfg, _, _, workflow := newFixture(t, nil)
	processedName := "processed_p1_img.png"
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ProcessedDir, processedName), []byte("result-bytes"))

	result, err := workflow.Approve(context.Background(), "p1", "img.png", processedName)
	if err != nil {
		t.Fatalf("Approve without queue item: %v", err)
	}
	if result.VtonFilename != "p1_vton.png" {
		t.Errorf("VtonFilename = %q", result.VtonFilename)
	}
}

func TestApproveMirrorsToRemoteStore(t *testing.T) {
	doer := &captureDoer{}
	remote := remotestore.NewClientWithDoer("https://store.example.com/objects", "secret", "client-1", doer)
	cfg, store, _, workflow := newFixture(t, remote)
	processedName := stageCompleted(t, cfg, store, "p1", "img.png")

	result, err := workflow.Approve(context.Background(), "p1", "img.png", processedName)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !result.Mirrored {
		t.Error("Mirrored = false, want true")
	}
	if len(doer.requests) != 1 {
		t.Fatalf("remote requests = %d, want 1", len(doer.requests))
	}
	req := doer.requests[0]
	if req.Method != http.MethodPut {
		t.Errorf("method = %s, want PUT", req.Method)
	}
	if !strings.Contains(req.URL.String(), "p1_vton.png") {
		t.Errorf("upload URL = %s, want key containing p1_vton.png", req.URL)
	}
	if doer.bodies[0] != "result-bytes" {
		t.Errorf("uploaded body = %q", doer.bodies[0])
	}
}

func TestApproveSucceedsWhenMirrorFails(t *testing.T) {
	doer := &captureDoer{err: errors.New("connection refused")}
	remote := remotestore.NewClientWithDoer("https://store.example.com/objects", "secret", "client-1", doer)
	cfg, store, _, workflow := newFixture(t, remote)
	processedName := stageCompleted(t, cfg, store, "p1", "img.png")

	result, err := workflow.Approve(context.Background(), "p1", "img.png", processedName)
	if err != nil {
		t.Fatalf("Approve should tolerate mirror failure, got %v", err)
	}
	if result.Mirrored {
		t.Error("Mirrored = true despite upload failure")
	}

	dest := filepath.Join(cfg.Paths.CatalogRoot, "garment", "p1", "p1_vton.png")
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("promoted artifact missing: %v", err)
	}
}
