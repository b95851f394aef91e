package botguard

import (
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	out := Output{Token: "tok", ExpiresAt: time.Now().Add(time.Hour), Metadata: map[string]string{"src": "test"}}
	c.Set("k", out)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.Token != "tok" || got.Metadata["src"] != "test" {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	c.Set("k", Output{Token: "tok", ExpiresAt: time.Now().Add(-time.Minute)})
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry should be treated as missing")
	}
}

func TestFileCacheRequiresRoot(t *testing.T) {
	if _, err := NewFileCache(""); err == nil {
		t.Fatal("expected error for empty rootDir")
	}
}
