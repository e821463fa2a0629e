// Package backstage queries a Backstage software catalog over its REST API.
package backstage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/catalog"
)

var _ catalog.Client = (*Client)(nil)

// Config points at a Backstage backend.
type Config struct {
	BaseURL string
	Token   string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client implements catalog.Client against /api/catalog/entities.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Backstage catalog client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger.Named("catalog"),
	}, nil
}

// Entities fetches every entity matching filter.
func (c *Client) Entities(ctx context.Context, filter catalog.Filter) ([]catalog.Entity, error) {
	endpoint := c.baseURL + "/api/catalog/entities?" + url.Values{"filter": {filterExpression(filter)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close catalog response", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entities []catalog.Entity
	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return nil, fmt.Errorf("decode catalog entities: %w", err)
	}
	return entities, nil
}

// filterExpression renders a Filter in Backstage's comma-joined filter syntax.
// A key without "=" matches entities where the field exists.
func filterExpression(f catalog.Filter) string {
	parts := make([]string, 0, 3)
	if f.Kind != "" {
		parts = append(parts, "kind="+f.Kind)
	}
	if f.SpecType != "" {
		parts = append(parts, "spec.type="+f.SpecType)
	}
	if f.AnnotationKey != "" {
		parts = append(parts, "metadata.annotations."+f.AnnotationKey)
	}
	return strings.Join(parts, ",")
}
