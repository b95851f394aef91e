package main

import "testing"

func TestParseRateLimit(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"500KB/s", 500000},
		{"500KB", 500000},
		{"2MiB/s", 2 << 20},
		{"1MB", 1000000},
		{" 4KiB/s ", 4096},
	}
	for _, tc := range cases {
		got, err := parseRateLimit(tc.in)
		if err != nil {
			t.Fatalf("%q -> error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q -> got %d, want %d", tc.in, got, tc.want)
		}
	}

	if _, err := parseRateLimit("fast"); err == nil {
		t.Fatal("expected error for non-numeric rate")
	}
}

func TestExtractPlaylistID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/playlist?list=PLabc123", "PLabc123"},
		{"https://www.youtube.com/watch?v=xyz&list=PLdef456", "PLdef456"},
		{"PLbare789", "PLbare789"},
	}
	for _, tc := range cases {
		got, err := extractPlaylistID(tc.in)
		if err != nil {
			t.Fatalf("%q -> error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q -> got %q, want %q", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{
		"https://www.youtube.com/watch?v=xyz",
		"not a playlist id",
	} {
		if got, err := extractPlaylistID(in); err == nil {
			t.Fatalf("%q -> got %q, want error", in, got)
		}
	}
}

func TestLooksLikePlaylist(t *testing.T) {
	if !looksLikePlaylist("https://www.youtube.com/watch?v=xyz&list=PLabc") {
		t.Error("URL with list param should be treated as a playlist")
	}
	if looksLikePlaylist("https://www.youtube.com/watch?v=xyz") {
		t.Error("plain watch URL is not a playlist")
	}
}
