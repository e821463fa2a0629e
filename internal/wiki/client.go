// Package wiki is a thin authenticated JSON client for the Confluence REST API.
package wiki

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/confluence-collector/internal/metrics"
)

// maxErrorBody caps how much of a failed response body is logged.
const maxErrorBody = 4 << 10

// Config controls Client behavior.
type Config struct {
	BaseURL  string
	Username string
	Password string
	// RequestsPerSecond paces outgoing requests; zero disables pacing.
	RequestsPerSecond float64
	// HTTPClient defaults to a client with no timeout beyond the transport's.
	HTTPClient *http.Client
}

// Client issues authenticated GET requests and decodes JSON bodies.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse wiki base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("wiki base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:    base,
		authHeader: basicAuth(cfg.Username, cfg.Password),
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger.Named("wiki"),
	}, nil
}

// BaseURL returns the wiki root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Absolute joins the base URL with an API-provided relative link.
func (c *Client) Absolute(link string) string {
	return c.baseURL + link
}

// GetJSON fetches rawURL and decodes the JSON body into out.
// Non-2xx responses yield *HTTPError; undecodable bodies yield *DecodeError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveWikiRequest(0, time.Since(start))
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()
	metrics.ObserveWikiRequest(resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("wiki request failed",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return &HTTPError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{URL: rawURL, Err: err}
	}
	return nil
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
