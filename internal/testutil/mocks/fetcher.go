package mocks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Fetcher is a thread-safe test double for ports.Fetcher serving canned bodies by URL.
type Fetcher struct {
	mu     sync.RWMutex
	bodies map[string][]byte
	errors map[string]error
	hook   func(ctx context.Context, url string)
	calls  []string
}

// NewFetcher creates a new Fetcher mock.
func NewFetcher() *Fetcher {
	return &Fetcher{
		bodies: make(map[string][]byte),
		errors: make(map[string]error),
	}
}

// AddBody registers the body served for url.
func (m *Fetcher) AddBody(url string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[url] = body
	delete(m.errors, url)
}

// AddError registers an error returned for url.
func (m *Fetcher) AddError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[url] = err
}

// OnFetch installs a hook run at the start of every Fetch, e.g. to block.
func (m *Fetcher) OnFetch(hook func(ctx context.Context, url string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}

// Fetch writes the registered body for url into dst.
func (m *Fetcher) Fetch(ctx context.Context, url string, dst io.Writer) (int64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, url)
	}

	m.mu.RLock()
	err, hasErr := m.errors[url]
	body, hasBody := m.bodies[url]
	m.mu.RUnlock()

	if hasErr {
		return 0, err
	}
	if !hasBody {
		return 0, &ports.NetworkError{URL: url, StatusCode: http.StatusNotFound, Err: errors.New("not found")}
	}
	return io.Copy(dst, bytes.NewReader(body))
}

// Calls returns the fetched URLs in order.
func (m *Fetcher) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Ensure Fetcher implements ports.Fetcher.
var _ ports.Fetcher = (*Fetcher)(nil)
