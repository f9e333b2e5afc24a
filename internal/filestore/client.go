// Package filestore is the client for the content-addressed pinning gateway
// holding paper PDFs. Uploads return a CID; the public gateway URL derived
// from it is what paper rows store. Calls are best-effort side effects with
// no retries: a failed upload aborts the surrounding operation and a failed
// delete is logged and ignored by callers.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nubianresearch/research-repository-service/internal/config"
	"github.com/nubianresearch/research-repository-service/internal/domain"
	"github.com/nubianresearch/research-repository-service/internal/observability"
)

// File is a pinned object on the gateway.
type File struct {
	// ID is the pinning service's own identifier, used for deletion.
	ID string `json:"id"`

	// CID is the content identifier, the durable reference to the bytes.
	CID string `json:"cid"`

	// Name is the original filename recorded at upload.
	Name string `json:"name"`

	// Size is the pinned size in bytes.
	Size int64 `json:"size"`
}

// Store is the content-addressed file store interface consumed by handlers.
type Store interface {
	// Upload pins the file and returns its CID and service id.
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (*File, error)

	// GetByCID looks up a pinned file by content identifier.
	// Returns domain.ErrNotFound when nothing is pinned under the CID.
	GetByCID(ctx context.Context, cid string) (*File, error)

	// Delete unpins the files with the given service ids.
	Delete(ctx context.Context, ids []string) error

	// FileURL returns the public gateway URL for a CID.
	FileURL(cid string) string
}

// Compile-time interface verification.
var _ Store = (*Client)(nil)

// Client talks to a Pinata-style pinning API.
type Client struct {
	baseURL     string
	gatewayHost string
	token       string
	client      *http.Client
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewClient creates a pinning gateway client from filestore configuration.
// metrics may be nil when instrumentation is not wanted.
func NewClient(cfg *config.FileStoreConfig, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.APIBaseURL, "/"),
		gatewayHost: cfg.GatewayHost,
		token:       cfg.Token,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With().Str("component", "filestore").Logger(),
		metrics:     metrics,
	}
}

// apiEnvelope is the response wrapper the pinning API uses.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// fileListData is the payload of a file listing response.
type fileListData struct {
	Files []File `json:"files"`
}

// Upload pins the file content and returns its CID.
func (c *Client) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*File, error) {
	if filename == "" {
		return nil, domain.NewValidationError("file", "filename is required")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var file File
	if err := c.do(req, "upload", &file); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("cid", file.CID).
		Str("filename", filename).
		Str("content_type", contentType).
		Msg("file pinned")

	return &file, nil
}

// GetByCID looks up a pinned file by content identifier.
func (c *Client) GetByCID(ctx context.Context, cid string) (*File, error) {
	if cid == "" {
		return nil, domain.NewValidationError("cid", "cid is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/files?cid="+url.QueryEscape(cid), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}

	var list fileListData
	if err := c.do(req, "lookup", &list); err != nil {
		return nil, err
	}

	if len(list.Files) == 0 {
		return nil, domain.NewNotFoundError("file", cid)
	}

	return &list.Files[0], nil
}

// Delete unpins the files with the given service ids.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
			c.baseURL+"/files/"+url.PathEscape(id), nil)
		if err != nil {
			return fmt.Errorf("failed to build delete request: %w", err)
		}

		if err := c.do(req, "delete", nil); err != nil {
			return err
		}
	}

	return nil
}

// FileURL returns the public gateway URL for a CID.
func (c *Client) FileURL(cid string) string {
	return fmt.Sprintf("https://%s/ipfs/%s", c.gatewayHost, cid)
}

// do executes a request, decodes the enveloped response into out when out is
// non-nil, and records instrumentation for the operation.
func (c *Client) do(req *http.Request, operation string, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.client.Do(req)
	if c.metrics != nil {
		c.metrics.FileStoreRequestDuration.WithLabelValues(operation).
			Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.observe(operation, "error")
		return domain.NewExternalAPIError("filestore", 0,
			fmt.Sprintf("%s request failed", operation),
			fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(operation, "error")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewExternalAPIError("filestore", resp.StatusCode,
			strings.TrimSpace(string(snippet)), domain.ErrServiceUnavailable)
	}

	c.observe(operation, "success")

	if out == nil {
		return nil
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", operation, err)
	}

	return nil
}

// observe records the outcome counter when metrics are wired.
func (c *Client) observe(operation, outcome string) {
	if c.metrics != nil {
		c.metrics.FileStoreRequests.WithLabelValues(operation, outcome).Inc()
	}
}
