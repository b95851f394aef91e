//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/ytget/ytgrab"
)

func TestE2E_Download(t *testing.T) {
	if os.Getenv("YTGRAB_E2E") == "" {
		t.Skip("YTGRAB_E2E not set")
	}
	url := os.Getenv("YTGRAB_E2E_URL")
	if url == "" {
		url = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	}
	f := ytgrab.New().WithOutputPath(t.TempDir())
	ctx := context.Background()
	if _, err := f.Download(ctx, url); err != nil {
		t.Fatalf("e2e download failed: %v", err)
	}
}

func TestE2E_Playlist(t *testing.T) {
	if os.Getenv("YTGRAB_E2E") == "" {
		t.Skip("YTGRAB_E2E not set")
	}
	playlistID := os.Getenv("YTGRAB_E2E_PLAYLIST")
	if playlistID == "" {
		t.Skip("YTGRAB_E2E_PLAYLIST not set")
	}
	items, err := ytgrab.New().PlaylistItemsAll(context.Background(), playlistID, 10)
	if err != nil {
		t.Fatalf("e2e playlist listing failed: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("playlist returned no items")
	}
}
