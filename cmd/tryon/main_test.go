package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"tryon/internal/testsupport"
)

func writeTestConfig(t *testing.T) string {
	return writeTestConfigBind(t, "127.0.0.1:0")
}

func writeTestConfigBind(t *testing.T, apiBind string) string {
	t.Helper()

	base := t.TempDir()
	cfg := fmt.Sprintf(`[paths]
catalog_root = %q
processed_dir = %q
temp_crop_dir = %q
thumbnail_dir = %q
queue_file = %q
log_dir = %q
api_bind = %q

[inference]
url = "http://127.0.0.1:1/infer"
`,
		filepath.Join(base, "catalogs"),
		filepath.Join(base, "processed"),
		filepath.Join(base, "crops"),
		filepath.Join(base, "thumbs"),
		filepath.Join(base, "queue.json"),
		filepath.Join(base, "logs"),
		apiBind,
	)

	path := filepath.Join(base, "tryon.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	testsupport.WriteCatalog(t, filepath.Join(base, "catalogs"), testsupport.CatalogRow("p1", nil))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueueAddListRemove(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "queue", "add", "p1", "img.png")
	if err != nil {
		t.Fatalf("queue add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Queued p1 / img.png") {
		t.Errorf("add output = %q", out)
	}

	out, err = runCommand(t, "--config", configPath, "queue", "add", "p1", "img.png")
	if err != nil {
		t.Fatalf("duplicate queue add: %v", err)
	}
	if !strings.Contains(out, "Already queued") {
		t.Errorf("duplicate add output = %q", out)
	}

	out, err = runCommand(t, "--config", configPath, "queue", "list", "--json")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var listed struct {
		Items []struct {
			ProductID string `json:"product_id"`
			Status    string `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if len(listed.Items) != 1 || listed.Items[0].Status != "pending" {
		t.Errorf("listed items = %+v", listed.Items)
	}

	out, err = runCommand(t, "--config", configPath, "queue", "remove", "p1", "img.png")
	if err != nil {
		t.Fatalf("queue remove: %v\n%s", err, out)
	}
	if _, err = runCommand(t, "--config", configPath, "queue", "remove", "p1", "img.png"); err == nil {
		t.Error("second remove succeeded, want not-found error")
	}
}

func TestQueueListStatusFilter(t *testing.T) {
	configPath := writeTestConfig(t)

	if out, err := runCommand(t, "--config", configPath, "queue", "add", "p1", "img.png"); err != nil {
		t.Fatalf("queue add: %v\n%s", err, out)
	}

	out, err := runCommand(t, "--config", configPath, "queue", "list", "--status", "pending", "--json")
	if err != nil {
		t.Fatalf("queue list: %v\n%s", err, out)
	}
	var listed struct {
		Items []struct {
			ProductID string `json:"product_id"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if len(listed.Items) != 1 {
		t.Errorf("pending items = %+v", listed.Items)
	}

	out, err = runCommand(t, "--config", configPath, "queue", "list", "--status", "approved", "--json")
	if err != nil {
		t.Fatalf("queue list approved: %v\n%s", err, out)
	}
	listed.Items = nil
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if len(listed.Items) != 0 {
		t.Errorf("approved items = %+v", listed.Items)
	}

	_, err = runCommand(t, "--config", configPath, "queue", "list", "--status", "bogus")
	if err == nil {
		t.Fatal("bogus status accepted")
	}
	if !strings.Contains(err.Error(), "pending, processing, completed, failed, approved") {
		t.Errorf("error = %v", err)
	}
}

func TestQueueMutationsRouteThroughRunningDaemon(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/queue":
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"item":{"product_id":"p1","image_filename":"img.png","status":"pending"},"added":true}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/queue/approved":
			io.WriteString(w, `{"removed":2,"reclaimed":{"crops":1,"processed":0,"thumbnails":0}}`)
		case r.Method == http.MethodDelete:
			io.WriteString(w, `{"status":"removed"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	configPath := writeTestConfigBind(t, strings.TrimPrefix(server.URL, "http://"))
	base := filepath.Dir(configPath)

	// Hold the instance lock the way a running daemon would.
	logDir := filepath.Join(base, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	lock := flock.New(filepath.Join(logDir, "tryond.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquire test lock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()

	out, err := runCommand(t, "--config", configPath, "queue", "add", "p1", "img.png")
	if err != nil {
		t.Fatalf("queue add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Queued p1 / img.png") {
		t.Errorf("add output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(base, "queue.json")); !os.IsNotExist(err) {
		t.Error("queue file touched locally while a daemon holds the lock")
	}

	out, err = runCommand(t, "--config", configPath, "queue", "remove", "p1", "img.png")
	if err != nil {
		t.Fatalf("queue remove: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Removed p1 / img.png") {
		t.Errorf("remove output = %q", out)
	}

	out, err = runCommand(t, "--config", configPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Removed 2 approved items (1 auxiliary files reclaimed)") {
		t.Errorf("clear output = %q", out)
	}

	mu.Lock()
	got := strings.Join(requests, "\n")
	mu.Unlock()
	for _, want := range []string{
		"POST /api/queue",
		"DELETE /api/queue/p1/img.png",
		"DELETE /api/queue/approved",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("daemon never received %q; saw:\n%s", want, got)
		}
	}
}

func TestQueueAddReclaimsOrphanedFiles(t *testing.T) {
	configPath := writeTestConfig(t)
	base := filepath.Dir(configPath)

	cropsDir := filepath.Join(base, "crops")
	if err := os.MkdirAll(cropsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(cropsDir, "cropped_stale.png")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "--config", configPath, "queue", "add", "p1", "img.png")
	if err != nil {
		t.Fatalf("queue add: %v\n%s", err, out)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("orphaned crop survived the add")
	}
}

func TestQueueAddUnknownProduct(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCommand(t, "--config", configPath, "queue", "add", "missing", "img.png"); err == nil {
		t.Error("add for unknown product succeeded, want error")
	}
}

func TestCatalogListJSON(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "catalog", "list", "--json")
	if err != nil {
		t.Fatalf("catalog list: %v\n%s", err, out)
	}
	var listed struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode catalog output: %v\n%s", err, out)
	}
	if listed.Total != 1 || listed.Products[0].ID != "p1" {
		t.Errorf("catalog output = %+v", listed)
	}
}

func TestGCCommand(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "gc")
	if err != nil {
		t.Fatalf("gc: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Reclaimed 0 files") {
		t.Errorf("gc output = %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Error("second init without --overwrite succeeded, want error")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Errorf("init with --overwrite: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "tryon") {
		t.Errorf("version output = %q", out)
	}
}
