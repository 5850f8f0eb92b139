package vton

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tryon/internal/config"
	"tryon/internal/services"
)

// HTTPDoer describes the HTTP client used by the inference service client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Params are the fixed generation parameters sent with every request.
type Params struct {
	Category string
	Seed     int
	Steps    int
	CFG      float64
}

// Client posts garment images to the inference endpoint and returns the
// generated image bytes.
type Client struct {
	url    string
	params Params
	client HTTPDoer
}

// NewClient constructs an inference client from configuration. The returned
// client enforces the configured request timeout.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil {
		return &Client{client: http.DefaultClient}
	}
	return &Client{
		url: cfg.Inference.URL,
		params: Params{
			Category: cfg.Inference.Category,
			Seed:     cfg.Inference.Seed,
			Steps:    cfg.Inference.Steps,
			CFG:      cfg.Inference.CFG,
		},
		client: &http.Client{Timeout: time.Duration(cfg.Inference.TimeoutSeconds) * time.Second},
	}
}

// NewClientWithDoer constructs a client with an injected HTTP doer (used in tests).
func NewClientWithDoer(url string, params Params, doer HTTPDoer) *Client {
	return &Client{url: url, params: params, client: doer}
}

// Generate sends the image as multipart content and returns the response
// body on HTTP 200. Any transport failure or non-200 status is an external
// service error; the caller owns the fallback policy.
func (c *Client) Generate(ctx context.Context, filename string, image []byte) ([]byte, error) {
	if strings.TrimSpace(c.url) == "" {
		return nil, services.Wrap(services.ErrExternalService, "vton", "generate", "inference url not configured", nil)
	}

	body, contentType, err := c.encodeRequest(filename, image)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "vton", "generate", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "vton", "generate", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		marker := services.ErrExternalService
		if isTimeout(err) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, "vton", "generate", "post image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Wrap(services.ErrExternalService, "vton", "generate",
			fmt.Sprintf("inference returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "vton", "generate", "read response", err)
	}
	return result, nil
}

// isTimeout distinguishes requests that ran out the clock from ones the
// endpoint refused, so the two failure modes stay separable for callers.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) encodeRequest(filename string, image []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", ContentTypeForFilename(filename))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"category": c.params.Category,
		"seed":     strconv.Itoa(c.params.Seed),
		"steps":    strconv.Itoa(c.params.Steps),
		"cfg":      strconv.FormatFloat(c.params.CFG, 'f', -1, 64),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// ContentTypeForFilename infers the image content type from the filename
// extension. Everything that is not PNG is treated as JPEG.
func ContentTypeForFilename(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
