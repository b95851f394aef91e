package ytgrab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ytget/ytgrab/errs"
	"github.com/ytget/ytgrab/types"
	"github.com/ytget/ytgrab/youtube/formats"
	"github.com/ytget/ytgrab/youtube/innertube"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc123", "abc123"},
		{"https://youtu.be/xyz789", "xyz789"},
		{"https://www.youtube.com/shorts/brZCOVlyPPo", "brZCOVlyPPo"},
		{"https://youtube.com/shorts/abc123", "abc123"},
		{"https://www.youtube.com/shorts/xyz789?si=3E6i4QoYvnJjqS_b", "xyz789"},
		{"https://www.youtube.com/embed/def456", "def456"},
		{"https://m.youtube.com/watch?v=mob111", "mob111"},
		{"https://youtube.com/watch?app=desktop&v=def456&feature=youtu.be", "def456"},
		{"https://youtu.be/ghi789?si=token", "ghi789"},
	}
	for _, tc := range cases {
		got, err := extractVideoID(tc.url)
		if err != nil {
			t.Fatalf("%s -> error: %v (want %s)", tc.url, err, tc.want)
		}
		if got != tc.want {
			t.Fatalf("%s -> got %s (want %s)", tc.url, got, tc.want)
		}
	}
}

func TestExtractVideoID_Invalid(t *testing.T) {
	cases := []string{
		"https://www.youtube.com/watch?foo=bar",
		"https://example.com/",
		"https://example.com/watch?v=abc123",
		"https://www.youtube.com/playlist?list=PLxxxx",
		"https://www.youtube.com/channel/UCxxxx",
	}
	for _, u := range cases {
		got, err := extractVideoID(u)
		if got != "" || err == nil {
			t.Fatalf("%s -> got=%q err=%v; want empty id and error", u, got, err)
		}
	}
}

func TestChainableSetters(t *testing.T) {
	f := New().
		WithFormat("best", ".MP4").
		WithRateLimit(-5).
		WithInnertubeClient(" WEB ", " 2.2025 ").
		WithStripMetadata(true)

	if f.options.FormatSelector != "best" {
		t.Errorf("format selector not applied: %q", f.options.FormatSelector)
	}
	if f.options.DesiredExt != "mp4" {
		t.Errorf("extension not normalized: %q", f.options.DesiredExt)
	}
	if f.options.RateLimitBps != 0 {
		t.Errorf("negative rate limit should clamp to zero, got %d", f.options.RateLimitBps)
	}
	if f.options.ITClientName != "WEB" || f.options.ITClientVersion != "2.2025" {
		t.Errorf("innertube client not trimmed: %q %q", f.options.ITClientName, f.options.ITClientVersion)
	}
	if !f.options.StripMetadata {
		t.Error("strip metadata flag not applied")
	}
}

func TestOutputPathFor(t *testing.T) {
	f := New()
	format := &types.Format{MimeType: `video/mp4; codecs="avc1.64001F"`}
	info := &VideoInfo{Title: "My: Test/Video"}

	got := f.outputPathFor(info, format)
	if filepath.Ext(got) != ".mp4" {
		t.Fatalf("derived name should carry mime extension, got %q", got)
	}
	if got != "My_ Test_Video.mp4" {
		t.Fatalf("unexpected derived name %q", got)
	}
}

func TestOutputPathForDirectory(t *testing.T) {
	dir := t.TempDir()
	f := New().WithOutputPath(dir)
	format := &types.Format{MimeType: "video/webm"}
	info := &VideoInfo{Title: "clip"}

	got := f.outputPathFor(info, format)
	if filepath.Dir(got) != dir {
		t.Fatalf("expected file inside %q, got %q", dir, got)
	}
	if filepath.Base(got) != "clip.webm" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestOutputPathForDeduplicates(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	f := New().WithOutputPath(existing)
	format := &types.Format{MimeType: "video/mp4"}
	info := &VideoInfo{Title: "clip"}

	got := f.outputPathFor(info, format)
	if got != filepath.Join(dir, "clip_1.mp4") {
		t.Fatalf("expected _1 suffix for existing file, got %q", got)
	}
}

func TestMapPlayability(t *testing.T) {
	cases := []struct {
		status string
		reason string
		want   error
	}{
		{"OK", "", nil},
		{"", "", nil},
		{"ERROR", "The uploader has not made this video available in your country", errs.ErrGeoBlocked},
		{"ERROR", "This video is blocked due to geographic restrictions", errs.ErrGeoBlocked},
		{"ERROR", "Rate limit exceeded, try again later", errs.ErrRateLimited},
		{"ERROR", "Quota exceeded for this request", errs.ErrRateLimited},
		{"ERROR", "Video unavailable", errs.ErrVideoUnavailable},
		{"LOGIN_REQUIRED", "Sign in to confirm your age", errs.ErrAgeRestricted},
		{"UNPLAYABLE", "This video is private", errs.ErrPrivate},
		{"UNPLAYABLE", "Playback on other websites has been disabled", errs.ErrVideoUnavailable},
	}
	for _, tc := range cases {
		var pr innertube.PlayerResponse
		pr.PlayabilityStatus.Status = tc.status
		pr.PlayabilityStatus.Reason = tc.reason

		err := mapPlayability(&pr)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s/%s -> unexpected error %v", tc.status, tc.reason, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s/%s -> got %v, want %v", tc.status, tc.reason, err, tc.want)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func stubResponse(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// stubYouTubeTransport serves the watch page (API key scrape), the player
// endpoint and ranged media requests entirely in memory.
func stubYouTubeTransport(payload string) http.RoundTripper {
	playerJSON := fmt.Sprintf(`{
		"playabilityStatus": {"status": "OK"},
		"videoDetails": {
			"videoId": "vid00000001",
			"title": "clip",
			"author": "someone",
			"lengthSeconds": "10",
			"viewCount": "42"
		},
		"streamingData": {
			"formats": [{
				"itag": 18,
				"mimeType": "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"",
				"bitrate": 1000,
				"url": "https://media.example.com/clip.mp4",
				"contentLength": "%d"
			}]
		}
	}`, len(payload))

	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case req.URL.Host == "www.youtube.com" && strings.HasPrefix(req.URL.Path, "/watch"):
			return stubResponse(http.StatusOK, nil, `"INNERTUBE_API_KEY":"test-key"`), nil
		case req.URL.Host == "www.youtube.com" && req.URL.Path == "/youtubei/v1/player":
			h := http.Header{}
			h.Set("Content-Type", "application/json")
			return stubResponse(http.StatusOK, h, playerJSON), nil
		case req.URL.Host == "www.youtube.com":
			return stubResponse(http.StatusOK, nil, "<html></html>"), nil
		case req.URL.Host == "media.example.com":
			var start, end int
			if _, err := fmt.Sscanf(req.Header.Get("Range"), "bytes=%d-%d", &start, &end); err != nil {
				return stubResponse(http.StatusBadRequest, nil, "missing range"), nil
			}
			if end >= len(payload) {
				end = len(payload) - 1
			}
			h := http.Header{}
			h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(payload)))
			body := payload[start : end+1]
			if req.Method == http.MethodHead {
				body = ""
			}
			return stubResponse(http.StatusPartialContent, h, body), nil
		}
		return stubResponse(http.StatusNotFound, nil, "not found"), nil
	})
}

func TestDownloadSavesFileAndReportsPath(t *testing.T) {
	payload := "hello media"
	dir := t.TempDir()

	f := New().
		WithHTTPClient(&http.Client{Transport: stubYouTubeTransport(payload)}).
		WithOutputPath(dir)

	info, err := f.Download(context.Background(), "https://www.youtube.com/watch?v=vid00000001")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}

	wantPath := filepath.Join(dir, "clip.mp4")
	if info.FilePath != wantPath {
		t.Fatalf("FilePath = %q, want %q", info.FilePath, wantPath)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("file content %q, want %q", data, payload)
	}
	if info.Title != "clip" || info.Duration != 10 || info.ViewCount != 42 {
		t.Fatalf("metadata not carried through: %+v", info)
	}
}

func TestSelectFormatByExt(t *testing.T) {
	list := []types.Format{
		{Itag: 18, MimeType: "video/mp4", URL: "u1"},
		{Itag: 22, MimeType: "video/mp4", URL: "u2"},
		{Itag: 100, MimeType: "video/webm", URL: "u3"},
	}
	if f := formats.SelectFormat(list, "", "webm"); f == nil || f.URL != "u3" {
		t.Fatalf("want webm u3, got %+v", f)
	}
	if f := formats.SelectFormat(list, "", ""); f == nil || f.URL != "u2" {
		t.Fatalf("want itag 22 u2, got %+v", f)
	}
}

func TestSelectFormat_ItagAndHeight(t *testing.T) {
	list := []types.Format{
		{Itag: 18, MimeType: "video/mp4", URL: "u1", Quality: "360p", Bitrate: 1000},
		{Itag: 22, MimeType: "video/mp4", URL: "u2", Quality: "720p", Bitrate: 2000},
		{Itag: 100, MimeType: "video/webm", URL: "u3", Quality: "480p", Bitrate: 1500},
	}

	if f := formats.SelectFormat(list, "itag=18", ""); f == nil || f.Itag != 18 {
		t.Fatalf("itag=18 -> got %+v", f)
	}
	if f := formats.SelectFormat(list, "height<=480", ""); f == nil || (f.Quality != "480p" && f.Quality != "360p") {
		t.Fatalf("height<=480 -> want 360p/480p, got %+v", f)
	}
	if f := formats.SelectFormat(list, "", ".WEBM"); f == nil || f.URL != "u3" {
		t.Fatalf("ext .WEBM -> want u3, got %+v", f)
	}
}
