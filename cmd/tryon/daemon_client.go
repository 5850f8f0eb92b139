package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tryon/internal/janitor"
	"tryon/internal/queue"
)

// apiClient talks to a running daemon's HTTP API. The daemon rewrites the
// whole queue file on every save, so a process mutating the file behind its
// back would have its changes erased; mutations made while a daemon holds
// the instance lock must go through it instead.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(bind string) *apiClient {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return &apiClient{
		base: "http://" + bind,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiEnqueueResult struct {
	Item  queue.Item `json:"item"`
	Added bool       `json:"added"`
}

type apiClearResult struct {
	Removed   int            `json:"removed"`
	Reclaimed janitor.Counts `json:"reclaimed"`
}

func (c *apiClient) enqueue(productID, filename string, cropped bool) (queue.Item, bool, error) {
	payload, err := json.Marshal(map[string]any{
		"product_id":     productID,
		"image_filename": filename,
		"is_cropped":     cropped,
	})
	if err != nil {
		return queue.Item{}, false, err
	}
	resp, err := c.http.Post(c.base+"/api/queue", "application/json", bytes.NewReader(payload))
	if err != nil {
		return queue.Item{}, false, fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	var result apiEnqueueResult
	if err := decodeAPIResponse(resp, &result); err != nil {
		return queue.Item{}, false, err
	}
	return result.Item, result.Added, nil
}

func (c *apiClient) remove(productID, filename string) error {
	resp, err := c.delete("/api/queue/" + url.PathEscape(productID) + "/" + url.PathEscape(filename))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp, nil)
}

func (c *apiClient) clearApproved() (apiClearResult, error) {
	resp, err := c.delete("/api/queue/approved")
	if err != nil {
		return apiClearResult{}, err
	}
	defer resp.Body.Close()
	var result apiClearResult
	if err := decodeAPIResponse(resp, &result); err != nil {
		return apiClearResult{}, err
	}
	return result, nil
}

func (c *apiClient) delete(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodDelete, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact daemon: %w", err)
	}
	return resp, nil
}

// decodeAPIResponse decodes a 2xx payload into out, or surfaces the error
// message the daemon returned.
func decodeAPIResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("daemon: %s", failure.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
