// Package fetch downloads catalogue archives and plugin assets over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Causes carried inside ports.NetworkError.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrServerError  = errors.New("server error")
	ErrFetchFailed  = errors.New("unexpected status")
	ErrTooLarge     = errors.New("response exceeds size limit")
)

// ClientConfig configures the HTTP fetcher.
type ClientConfig struct {
	// Timeout bounds a whole request including the body transfer.
	Timeout time.Duration
	// UserAgent is the User-Agent header value.
	UserAgent string
	// MaxBytes caps a response body; zero means unlimited.
	MaxBytes int64
}

// DefaultClientConfig returns sensible defaults for archive downloads.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   5 * time.Minute,
		UserAgent: "addonctl/1.0",
		MaxBytes:  256 << 20,
	}
}

// HTTPFetcher implements ports.Fetcher with net/http.
type HTTPFetcher struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher.
func NewHTTPFetcher(config ClientConfig) *HTTPFetcher {
	return &HTTPFetcher{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Fetch streams url into dst. Any transport failure or non-200 status is a
// *ports.NetworkError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &ports.NetworkError{URL: url, Err: fmt.Errorf("request creation failed: %w", err)}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, &ports.NetworkError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		// Continue
	case http.StatusNotFound:
		return 0, &ports.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: ErrNotFound}
	case http.StatusUnauthorized, http.StatusForbidden:
		return 0, &ports.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: ErrUnauthorized}
	case http.StatusTooManyRequests:
		return 0, &ports.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: ErrRateLimited}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return 0, &ports.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: ErrServerError}
	default:
		return 0, &ports.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: ErrFetchFailed}
	}

	body := io.Reader(resp.Body)
	if f.config.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.config.MaxBytes+1)
	}
	n, err := io.Copy(dst, body)
	if err != nil {
		return n, &ports.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if f.config.MaxBytes > 0 && n > f.config.MaxBytes {
		return n, &ports.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: ErrTooLarge}
	}
	return n, nil
}

// Ensure HTTPFetcher implements ports.Fetcher.
var _ ports.Fetcher = (*HTTPFetcher)(nil)
