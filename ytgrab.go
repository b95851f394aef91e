// Package ytgrab provides a high-level API for resolving and downloading
// YouTube videos and playlists. A Fetcher is configured with chainable
// setters and then drives the pipeline: metadata fetch, format selection,
// signature resolution, chunked download and optional post-processing.
package ytgrab

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/ytgrab/client"
	"github.com/ytget/ytgrab/downloader"
	"github.com/ytget/ytgrab/errs"
	"github.com/ytget/ytgrab/internal/botguard"
	"github.com/ytget/ytgrab/internal/history"
	"github.com/ytget/ytgrab/internal/logx"
	"github.com/ytget/ytgrab/internal/mimeext"
	"github.com/ytget/ytgrab/internal/sanitize"
	"github.com/ytget/ytgrab/postprocess"
	"github.com/ytget/ytgrab/types"
	"github.com/ytget/ytgrab/youtube/cipher"
	"github.com/ytget/ytgrab/youtube/formats"
	"github.com/ytget/ytgrab/youtube/innertube"
)

// VideoInfo contains video metadata and the full list of available formats.
type VideoInfo = types.VideoInfo

// Format describes an available media format.
type Format = types.Format

// Progress describes current progress of an ongoing download.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Options contains configuration for a single download invocation.
// Use the chainable setters on Fetcher to populate it.
type Options struct {
	FormatSelector  string
	DesiredExt      string
	OutputPath      string
	HTTPClient      *http.Client
	ProgressFunc    func(Progress)
	RateLimitBps    int64
	ITClientName    string
	ITClientVersion string
	StripMetadata   bool
}

// Fetcher resolves and downloads videos using the lower-level packages.
type Fetcher struct {
	options Options
	archive *history.Store
	bg      struct {
		solver botguard.Solver
		mode   botguard.Mode
		cache  botguard.Cache
		debug  bool
		ttl    time.Duration
	}
}

var alog = logx.For(logx.App)

func startPprofServer() {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		alog.Info("starting pprof server on :6060")
		if err := http.ListenAndServe(":6060", mux); err != nil {
			alog.Error("pprof server error", "err", err)
		}
	}()
}

// New creates a Fetcher with default options.
func New() *Fetcher {
	if os.Getenv("YTGRAB_PPROF") == "1" {
		startPprofServer()
	}
	return &Fetcher{}
}

// WithFormat sets a format selector and optional desired extension.
// Examples: "itag=22", "best", "height<=480". Extension is case-insensitive.
func (f *Fetcher) WithFormat(quality, ext string) *Fetcher {
	f.options.FormatSelector = quality
	f.options.DesiredExt = strings.TrimPrefix(strings.ToLower(ext), ".")
	return f
}

// WithHTTPClient sets a custom HTTP client used for all network calls.
func (f *Fetcher) WithHTTPClient(httpClient *http.Client) *Fetcher {
	f.options.HTTPClient = httpClient
	return f
}

// WithProgress registers a callback that receives progress updates.
func (f *Fetcher) WithProgress(fn func(Progress)) *Fetcher {
	f.options.ProgressFunc = fn
	return f
}

// WithOutputPath sets the output file path. If empty, a safe filename is
// derived from the video title and mime extension. If a directory path is
// provided, the derived filename is placed inside that directory.
func (f *Fetcher) WithOutputPath(path string) *Fetcher {
	f.options.OutputPath = path
	return f
}

// WithRateLimit sets a download rate limit in bytes per second. Zero disables limiting.
func (f *Fetcher) WithRateLimit(bytesPerSecond int64) *Fetcher {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	f.options.RateLimitBps = bytesPerSecond
	return f
}

// WithInnertubeClient sets the InnerTube client persona name and version.
func (f *Fetcher) WithInnertubeClient(name, version string) *Fetcher {
	f.options.ITClientName = strings.TrimSpace(name)
	f.options.ITClientVersion = strings.TrimSpace(version)
	return f
}

// WithStripMetadata removes container metadata from downloads with ffmpeg.
func (f *Fetcher) WithStripMetadata(strip bool) *Fetcher {
	f.options.StripMetadata = strip
	return f
}

// WithHistory attaches a download archive. Videos already recorded in it are
// skipped by Download. A nil store disables skipping.
func (f *Fetcher) WithHistory(store *history.Store) *Fetcher {
	f.archive = store
	return f
}

// WithBotguard configures attestation usage.
func (f *Fetcher) WithBotguard(mode botguard.Mode, solver botguard.Solver, cache botguard.Cache) *Fetcher {
	f.bg.mode = mode
	f.bg.solver = solver
	f.bg.cache = cache
	return f
}

// WithBotguardDebug enables attestation debug logging.
func (f *Fetcher) WithBotguardDebug(debug bool) *Fetcher {
	f.bg.debug = debug
	return f
}

// WithBotguardTTL sets the default attestation TTL when the solver does not
// specify an expiry.
func (f *Fetcher) WithBotguardTTL(ttl time.Duration) *Fetcher {
	f.bg.ttl = ttl
	return f
}

func (f *Fetcher) httpClient() *http.Client {
	if f.options.HTTPClient != nil {
		return f.options.HTTPClient
	}
	return client.New().HTTPClient
}

func (f *Fetcher) innertubeClient(httpClient *http.Client) *innertube.Client {
	it := innertube.New(httpClient)
	it.WithBotguard(f.bg.solver, f.bg.mode, f.bg.cache).
		WithBotguardDebug(f.bg.debug).
		WithBotguardTTL(f.bg.ttl)
	name := f.options.ITClientName
	ver := f.options.ITClientVersion
	if name == "" {
		name = "ANDROID"
	}
	if ver == "" {
		ver = "20.10.38"
	}
	return it.WithClient(name, ver)
}

// Resolve fetches metadata for videoURL and resolves the final media URL of
// the selected format.
func (f *Fetcher) Resolve(ctx context.Context, videoURL string) (string, *VideoInfo, error) {
	finalURL, info, _, err := f.resolve(ctx, videoURL)
	return finalURL, info, err
}

func (f *Fetcher) resolve(ctx context.Context, videoURL string) (string, *VideoInfo, *types.Format, error) {
	videoID, err := extractVideoID(videoURL)
	if err != nil {
		return "", nil, nil, fmt.Errorf("extract video id failed: %w", err)
	}
	alog.Debug("resolving video", "id", videoID)

	httpClient := f.httpClient()
	playerResponse, err := f.innertubeClient(httpClient).GetPlayerResponse(videoID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("get player response failed: %w", err)
	}

	if err := mapPlayability(playerResponse); err != nil {
		return "", nil, nil, err
	}

	availableFormats, err := formats.ParseFormats(playerResponse)
	if err != nil {
		return "", nil, nil, fmt.Errorf("parse formats failed: %w", err)
	}
	if len(availableFormats) == 0 {
		return "", nil, nil, errs.ErrNoFormats
	}
	selectedFormat := formats.SelectFormat(availableFormats, f.options.FormatSelector, f.options.DesiredExt)
	if selectedFormat == nil {
		return "", nil, nil, errs.ErrNoFormats
	}

	finalURL := selectedFormat.URL
	if strings.TrimSpace(finalURL) == "" || strings.Contains(finalURL, "&n=") || strings.Contains(finalURL, "?n=") {
		playerJSURL, perr := cipher.FetchPlayerJS(httpClient, watchURL(videoID))
		if perr != nil {
			return "", nil, nil, fmt.Errorf("fetch player.js url failed: %w", perr)
		}
		u, rerr := formats.ResolveFormatURL(httpClient, *selectedFormat, playerJSURL)
		if rerr != nil {
			return "", nil, nil, fmt.Errorf("%w: %v", errs.ErrCipherFailed, rerr)
		}
		finalURL = u
	}

	details := playerResponse.VideoDetails
	duration, _ := strconv.Atoi(details.LengthSeconds)
	viewCount, _ := strconv.ParseInt(details.ViewCount, 10, 64)
	info := &VideoInfo{
		ID:          videoID,
		Title:       details.Title,
		Description: details.ShortDescription,
		Duration:    duration,
		Uploader:    details.Author,
		ViewCount:   viewCount,
		Formats:     availableFormats,
	}
	return finalURL, info, selectedFormat, nil
}

// mapPlayability converts a player response playability status into the
// module's sentinel errors. A nil return means the video is playable.
func mapPlayability(pr *innertube.PlayerResponse) error {
	status := strings.ToUpper(pr.PlayabilityStatus.Status)
	reason := strings.ToLower(pr.PlayabilityStatus.Reason)
	switch status {
	case "ERROR":
		if strings.Contains(reason, "geograph") || strings.Contains(reason, "available in your country") {
			return errs.ErrGeoBlocked
		}
		if strings.Contains(reason, "rate limit") || strings.Contains(reason, "quota") {
			return errs.ErrRateLimited
		}
		return errs.ErrVideoUnavailable
	case "LOGIN_REQUIRED":
		return errs.ErrAgeRestricted
	case "UNPLAYABLE":
		if strings.Contains(reason, "private") {
			return errs.ErrPrivate
		}
		return errs.ErrVideoUnavailable
	}
	return nil
}

// Download resolves videoURL and downloads the selected format to disk.
// With an attached history store, already-recorded videos are skipped. When
// metadata stripping is enabled the file is rewritten by ffmpeg after the
// download completes.
func (f *Fetcher) Download(ctx context.Context, videoURL string) (*VideoInfo, error) {
	finalURL, info, selectedFormat, err := f.resolve(ctx, videoURL)
	if err != nil {
		return nil, err
	}

	if f.archive != nil {
		seen, err := f.archive.Seen(info.ID)
		if err != nil {
			return nil, fmt.Errorf("history lookup failed: %w", err)
		}
		if seen {
			alog.Info("skipping already-downloaded video", "id", info.ID, "title", info.Title)
			return info, nil
		}
	}

	outputPath := f.outputPathFor(info, selectedFormat)

	dl := downloader.New(f.httpClient(), func(p downloader.Progress) {
		if f.options.ProgressFunc != nil {
			f.options.ProgressFunc(Progress{TotalSize: p.TotalSize, DownloadedSize: p.DownloadedSize, Percent: p.Percent})
		}
	}, f.options.RateLimitBps)

	if err := dl.Download(ctx, finalURL, outputPath); err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	info.FilePath = outputPath

	if f.options.StripMetadata {
		proc, err := postprocess.New()
		if err != nil {
			return nil, err
		}
		proc.WithProgress(func(percent float64) {
			alog.Debug("metadata strip progress", "percent", fmt.Sprintf("%.1f", percent))
		})
		if err := proc.StripMetadata(ctx, outputPath); err != nil {
			return nil, err
		}
	}

	if f.archive != nil {
		var size int64
		if fi, err := os.Stat(outputPath); err == nil {
			size = fi.Size()
		}
		entry := history.Entry{
			VideoID:    info.ID,
			Title:      info.Title,
			Path:       outputPath,
			Size:       size,
			FinishedAt: time.Now(),
		}
		if err := f.archive.Record(entry); err != nil {
			alog.Warn("failed to record download in history", "id", info.ID, "err", err)
		}
	}

	return info, nil
}

// outputPathFor derives the destination path from the configured output path
// and video metadata, de-duplicating against existing files.
func (f *Fetcher) outputPathFor(info *VideoInfo, selectedFormat *types.Format) string {
	deriveName := func() string {
		ext := mimeext.ExtFromMime(selectedFormat.MimeType)
		title := strings.TrimSpace(info.Title)
		if title == "" {
			title = "video"
		}
		return sanitize.ToSafeFilename(title, ext)
	}

	outputPath := f.options.OutputPath
	switch {
	case outputPath == "":
		outputPath = deriveName()
	default:
		if fi, err := os.Stat(outputPath); err == nil && fi.IsDir() {
			outputPath = filepath.Join(outputPath, deriveName())
		}
	}
	return sanitize.EnsureUnique(outputPath)
}

// PlaylistItems returns the first page of playlist items.
func (f *Fetcher) PlaylistItems(ctx context.Context, playlistID string, limit int) ([]types.PlaylistItem, error) {
	return f.innertubeClient(f.httpClient()).GetPlaylistItems(playlistID, limit)
}

// PlaylistItemsAll returns playlist items following continuations up to limit.
func (f *Fetcher) PlaylistItemsAll(ctx context.Context, playlistID string, limit int) ([]types.PlaylistItem, error) {
	return f.innertubeClient(f.httpClient()).GetPlaylistItemsAll(playlistID, limit)
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func isYouTubeHost(host string) bool {
	switch strings.ToLower(host) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		return true
	}
	return false
}

// extractVideoID pulls the video ID out of watch, youtu.be, shorts and embed
// URLs. Playlist, channel and non-YouTube URLs are rejected.
func extractVideoID(videoURL string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(u.Host, "youtu.be") {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("invalid youtube url: missing video id")
	}
	if isYouTubeHost(u.Host) {
		switch {
		case strings.HasPrefix(u.Path, "/watch"):
			if id := u.Query().Get("v"); id != "" {
				return id, nil
			}
		case strings.HasPrefix(u.Path, "/shorts/"):
			if id := pathSegmentAfter(u.Path, "/shorts/"); id != "" {
				return id, nil
			}
		case strings.HasPrefix(u.Path, "/embed/"):
			if id := pathSegmentAfter(u.Path, "/embed/"); id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("invalid youtube url")
}

func pathSegmentAfter(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
