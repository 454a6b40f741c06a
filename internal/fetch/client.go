package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mlenz/stockpipe/internal/model"
)

// Client fetches daily OHLCV rows from an HTTP JSON endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	now func() time.Time // Injectable for tests; stamps IngestTS
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new price source client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock sets the IngestTS clock.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// APIError represents an error response from the price source.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("price source error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// wire types for the /daily endpoint.
type dailyResponse struct {
	Rows []dailyRow `json:"rows"`
}

type dailyRow struct {
	Instrument string  `json:"instrument"`
	Date       string  `json:"date"` // "2006-01-02"
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     int64   `json:"volume"`
}

// Fetch retrieves rows for the instruments over [start, end], inclusive.
func (c *Client) Fetch(ctx context.Context, ids []string, start, end time.Time) ([]model.PriceRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("symbols", strings.Join(ids, ","))
	query.Set("start", start.Format("2006-01-02"))
	query.Set("end", end.Format("2006-01-02"))

	body, err := c.doWithRetry(ctx, "/daily", query)
	if err != nil {
		return nil, err
	}

	var resp dailyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	ingestTS := c.now().UTC()
	rows := make([]model.PriceRow, 0, len(resp.Rows))
	for _, wr := range resp.Rows {
		date, err := time.Parse("2006-01-02", wr.Date)
		if err != nil {
			return nil, fmt.Errorf("row %s: parse date %q: %w", wr.Instrument, wr.Date, err)
		}
		rows = append(rows, model.PriceRow{
			Instrument: wr.Instrument,
			Date:       model.Day(date),
			Open:       wr.Open,
			High:       wr.High,
			Low:        wr.Low,
			Close:      wr.Close,
			Volume:     wr.Volume,
			IngestTS:   ingestTS,
		})
	}

	c.logger.Debug("fetched price rows",
		"instruments", len(ids),
		"rows", len(rows),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)
	return rows, nil
}

// doRequest performs a single GET against the endpoint.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, path, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		// Check if error is retryable
		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
