package feed

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

	"github.com/mkofler/tickpoll/internal/model"
)

// HTTPSource fetches quotes from the provider-A REST feed.
type HTTPSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// NewHTTPSource creates a REST quote source.
func NewHTTPSource(baseURL, apiKey string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.maxRetries = max
		s.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPSource) {
		s.logger = logger
	}
}

// FeedError represents an error response from the quote feed.
type FeedError struct {
	StatusCode int
	Message    string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("quote feed error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *FeedError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

type quotesResponse struct {
	Quotes []struct {
		Symbol  string  `json:"symbol"`
		Day     string  `json:"day"`
		Instant string  `json:"instant"`
		Price   float64 `json:"price"`
	} `json:"quotes"`
}

// FetchQuotes requests the latest quote for each symbol.
func (s *HTTPSource) FetchQuotes(ctx context.Context, symbols []string) ([]model.QuoteSample, error) {
	query := url.Values{"symbols": {strings.Join(symbols, ",")}}

	body, err := s.doWithRetry(ctx, "/quotes", query)
	if err != nil {
		return nil, err
	}

	var resp quotesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal quotes response: %w", err)
	}

	samples := make([]model.QuoteSample, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		samples = append(samples, model.QuoteSample{
			Symbol:  q.Symbol,
			Day:     q.Day,
			Instant: q.Instant,
			Price:   q.Price,
		})
	}
	return samples, nil
}

func (s *HTTPSource) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := s.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &FeedError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	return body, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (s *HTTPSource) doWithRetry(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := s.retryBackoff

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			s.logger.Debug("retrying quote fetch",
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

		body, err := s.doRequest(ctx, path, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		feedErr, ok := err.(*FeedError)
		if !ok || !feedErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
