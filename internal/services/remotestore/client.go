package remotestore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tryon/internal/config"
	"tryon/internal/services"
)

// HTTPDoer describes the HTTP client used for object uploads.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client uploads objects under deterministic keys. The zero-value client and
// any client built from a disabled config are no-ops.
type Client struct {
	endpoint string
	apiKey   string
	clientID string
	client   HTTPDoer
}

// NewClient constructs an upload client from configuration. When mirroring
// is disabled or the endpoint is missing, the client is inert.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil || !cfg.RemoteStore.Enabled {
		return &Client{}
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.RemoteStore.Endpoint), "/")
	if endpoint == "" {
		return &Client{}
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(cfg.RemoteStore.APIKey),
		clientID: strings.TrimSpace(cfg.RemoteStore.ClientID),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithDoer constructs a client with an injected HTTP doer (used in tests).
func NewClientWithDoer(endpoint, apiKey, clientID string, doer HTTPDoer) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:   strings.TrimSpace(apiKey),
		clientID: strings.TrimSpace(clientID),
		client:   doer,
	}
}

// Enabled reports whether uploads will actually be attempted.
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != "" && c.client != nil
}

// Key derives the deterministic object key for a product artifact.
func (c *Client) Key(productID, filename string) string {
	if c.clientID == "" {
		return fmt.Sprintf("%s/%s", productID, filename)
	}
	return fmt.Sprintf("%s/%s/%s", c.clientID, productID, filename)
}

// Put uploads data under the key derived from product id and filename.
// Disabled clients return nil without any network activity.
func (c *Client) Put(ctx context.Context, productID, filename string, data []byte) error {
	if !c.Enabled() {
		return nil
	}

	key := c.Key(productID, filename)
	target := c.endpoint + "/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrExternalService, "remotestore", "put", "build request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "remotestore", "put", "upload object", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrExternalService, "remotestore", "put",
			fmt.Sprintf("upload returned %d for key %s", resp.StatusCode, key), nil)
	}
	return nil
}
