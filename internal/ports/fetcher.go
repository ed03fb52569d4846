package ports

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Fetcher downloads a remote file.
type Fetcher interface {
	// Fetch streams the body at url into dst and returns the number of bytes written.
	// Transport and HTTP status failures are reported as *NetworkError.
	Fetch(ctx context.Context, url string, dst io.Writer) (int64, error)
}

// NetworkError reports a transport failure. Callers may retry.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is or wraps a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
