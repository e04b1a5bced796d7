// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/picasync/internal/storage"
)

// ErrInjected is returned by failing test doubles.
var ErrInjected = errors.New("injected failure")

// FailingEngine wraps a [storage.Engine] and fails selected operations,
// simulating quota errors or a storage engine that is unavailable.
type FailingEngine struct {
	mu       sync.Mutex
	inner    storage.Engine
	failGet  bool
	failSet  bool
	SetCalls int
}

// NewFailingEngine wraps inner. A nil inner uses a fresh [storage.MemoryEngine].
func NewFailingEngine(inner storage.Engine) *FailingEngine {
	if inner == nil {
		inner = storage.NewMemoryEngine()
	}
	return &FailingEngine{inner: inner}
}

// FailGets toggles read failures.
func (f *FailingEngine) FailGets(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet = fail
}

// FailSets toggles write failures (Set, Remove and Clear).
func (f *FailingEngine) FailSets(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet = fail
}

func (f *FailingEngine) state() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failGet, f.failSet
}

func (f *FailingEngine) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if failGet, _ := f.state(); failGet {
		return nil, false, ErrInjected
	}
	return f.inner.Get(ctx, key)
}

func (f *FailingEngine) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.SetCalls++
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.inner.Set(ctx, key, value)
}

func (f *FailingEngine) Remove(ctx context.Context, key string) error {
	if _, failSet := f.state(); failSet {
		return ErrInjected
	}
	return f.inner.Remove(ctx, key)
}

func (f *FailingEngine) Clear(ctx context.Context) error {
	if _, failSet := f.state(); failSet {
		return ErrInjected
	}
	return f.inner.Clear(ctx)
}

func (f *FailingEngine) Keys(ctx context.Context) ([]string, error) {
	if failGet, _ := f.state(); failGet {
		return nil, ErrInjected
	}
	return f.inner.Keys(ctx)
}

// Eventually polls cond every few milliseconds until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %v: %s", timeout, msg)
	}
}

// Never asserts cond stays false for the whole window.
func Never(t *testing.T, window time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("condition unexpectedly met: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}
