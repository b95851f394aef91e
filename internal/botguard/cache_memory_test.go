package botguard

import (
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	out := Output{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	c.Set("k", out)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.Token != "tok" {
		t.Fatalf("got token %q", got.Token)
	}
}
