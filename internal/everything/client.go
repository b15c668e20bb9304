// Package everything is the HTTP client for the file-index search backend.
//
// The backend exposes two JSON endpoints:
//
//	POST {base}/search       {query, include_highlights, count} -> {items, has_more}
//	POST {base}/search/meta  {query}                            -> [items]
//
// The second one returns full metadata (id, created_date, pdf_creator)
// and is used to re-resolve a file after it was renamed.
package everything

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/folio/internal/models"
)

// Request is a file search.
type Request struct {
	Query             string `json:"query"`
	IncludeHighlights bool   `json:"include_highlights"`
	Count             int    `json:"count"`
}

// Response is a file search result.
type Response struct {
	Items   []models.FileRecord `json:"items"`
	HasMore bool                `json:"has_more"`
}

// TokenProvider returns a bearer token for backend requests.
type TokenProvider func(ctx context.Context) (string, error)

// Client talks to the backend over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenProvider adds an Authorization header to every request.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) { c.tokenProvider = tp }
}

// New creates a client for baseURL. timeout bounds each request.
func New(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{MaxIdleConnsPerHost: 10},
		},
		logger: logger.With(slog.String("component", "everything")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a file search. A blank query returns an empty result
// without a round trip.
func (c *Client) Search(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Response{Items: []models.FileRecord{}}, nil
	}
	var resp Response
	if err := c.post(ctx, "/search", req, &resp); err != nil {
		return Response{}, err
	}
	if resp.Items == nil {
		resp.Items = []models.FileRecord{}
	}
	return resp, nil
}

// SearchMeta runs a metadata lookup. A blank query returns no records.
func (c *Client) SearchMeta(ctx context.Context, query string) ([]models.FileRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	var items []models.FileRecord
	if err := c.post(ctx, "/search/meta", struct {
		Query string `json:"query"`
	}{query}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("everything: encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("everything: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokenProvider != nil {
		token, tokenErr := c.tokenProvider(ctx)
		if tokenErr != nil {
			return fmt.Errorf("everything: token: %w", tokenErr)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("everything: %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("everything: request done",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("everything: decode %s: %w", path, err)
	}
	return nil
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("everything: %s: status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("everything: %s: status %d: %s", e.Path, e.Code, e.Body)
}
