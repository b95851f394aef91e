package cipher

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

// failingTransport always returns an error.
type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("mock error")
}

func TestMetrics(t *testing.T) {
	resetCaches()
	metrics = struct {
		totalRequests     int64
		cacheHits         int64
		cacheMisses       int64
		avgDecipherTime   time.Duration
		totalDecipherTime time.Duration
		mu                sync.Mutex
	}{}

	playerJSURL := "https://example.com/player.js"
	signature := "test_signature"

	httpClient := &http.Client{Transport: failingTransport{}}

	// First request fails to download player.js, still counts as a miss.
	_, _ = Decipher(httpClient, playerJSURL, signature)

	snap := Metrics()
	if snap.TotalRequests != 1 {
		t.Errorf("expected TotalRequests = 1, got %d", snap.TotalRequests)
	}
	if snap.CacheMisses != 1 {
		t.Errorf("expected CacheMisses = 1, got %d", snap.CacheMisses)
	}
	if snap.CacheHits != 0 {
		t.Errorf("expected CacheHits = 0, got %d", snap.CacheHits)
	}

	storeSignature(signature, "deciphered")

	// Second request is served from the signature cache.
	out, err := Decipher(httpClient, playerJSURL, signature)
	if err != nil {
		t.Fatalf("cache hit should not error: %v", err)
	}
	if out != "deciphered" {
		t.Fatalf("cache hit returned %q", out)
	}

	snap = Metrics()
	if snap.TotalRequests != 2 {
		t.Errorf("expected TotalRequests = 2, got %d", snap.TotalRequests)
	}
	if snap.CacheMisses != 1 {
		t.Errorf("expected CacheMisses = 1, got %d", snap.CacheMisses)
	}
	if snap.CacheHits != 1 {
		t.Errorf("expected CacheHits = 1, got %d", snap.CacheHits)
	}
}
