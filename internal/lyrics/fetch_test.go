package lyrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebovdev/voxradio/internal/auth"
)

const testLRC = "[ar:Someone]\n[00:01.00]one\n[00:02.00]two\n"

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func (c *memoryCache) Get(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.entries[url]
	return body, ok
}

func (c *memoryCache) Save(url, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[url] = body
	return nil
}

func newTestFetcher(cache TextCache) *Fetcher {
	f := NewFetcher(nil, "voxradio-test", auth.Identity{MAC: "AA:BB:CC:DD:EE:FF", Secret: "k"}, cache)
	f.retryDelay = time.Millisecond
	return f
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/plain" {
			t.Errorf("Accept = %q, want text/plain", r.Header.Get("Accept"))
		}
		if r.Header.Get(auth.HeaderDynamicKey) == "" {
			t.Error("missing dynamic key header")
		}
		_, _ = w.Write([]byte(testLRC))
	}))
	defer server.Close()

	body, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != testLRC {
		t.Errorf("Fetch() = %q, want %q", body, testLRC)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(testLRC))
	}))
	defer server.Close()

	body, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != testLRC || calls.Load() != 3 {
		t.Errorf("Fetch() = %q after %d calls, want body after 3", body, calls.Load())
	}
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := newTestFetcher(nil).Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("Fetch() should fail when every attempt fails")
	}
	if calls.Load() != MaxAttempts {
		t.Errorf("server saw %d requests, want %d", calls.Load(), MaxAttempts)
	}
}

func TestFetchDoesNotFollowRedirects(t *testing.T) {
	var targetHits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		targetHits.Add(1)
		_, _ = w.Write([]byte(testLRC))
	}))
	defer target.Close()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer server.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	if !errors.Is(err, errRedirect) {
		t.Fatalf("Fetch() error = %v, want a redirect failure", err)
	}
	if targetHits.Load() != 0 {
		t.Error("redirect target should never be requested")
	}
	if calls.Load() != MaxAttempts {
		t.Errorf("server saw %d requests, want %d", calls.Load(), MaxAttempts)
	}
}

func TestFetchKeepsPartialBodyOnReadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte(testLRC))
	}))
	defer server.Close()

	body, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want the partial body", err)
	}
	if body != testLRC {
		t.Errorf("Fetch() = %q, want %q", body, testLRC)
	}
}

func TestFetchEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if _, err := newTestFetcher(nil).Fetch(context.Background(), server.URL); !errors.Is(err, ErrNoLyrics) {
		t.Errorf("Fetch() error = %v, want ErrNoLyrics", err)
	}
}

func TestFetchUsesCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(testLRC))
	}))
	defer server.Close()

	cache := &memoryCache{}
	f := newTestFetcher(cache)

	for i := 0; i < 2; i++ {
		body, err := f.Fetch(context.Background(), server.URL)
		if err != nil || body != testLRC {
			t.Fatalf("Fetch() #%d = %q, %v", i, body, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d requests, want 1 with a warm cache", calls.Load())
	}
}

func TestFetchEmptyURL(t *testing.T) {
	if _, err := newTestFetcher(nil).Fetch(context.Background(), ""); !errors.Is(err, ErrNoLyrics) {
		t.Errorf("Fetch(\"\") error = %v, want ErrNoLyrics", err)
	}
}
