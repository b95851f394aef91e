package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/ytget/ytgrab"
	"github.com/ytget/ytgrab/client"
	"github.com/ytget/ytgrab/internal/history"
	"github.com/ytget/ytgrab/internal/logx"
	"github.com/ytget/ytgrab/types"
)

const defaultPlaylistLimit = 100

var llog = logx.For(logx.App)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	format        string
	ext           string
	output        string
	noProgress    bool
	httpTimeout   time.Duration
	retries       int64
	userAgent     string
	proxy         string
	rateLimitBps  int64
	playlist      bool
	limit         int64
	concurrency   int64
	stripMetadata bool
	archivePath   string
}

func newCommand() *cli.Command {
	var target string

	return &cli.Command{
		Name:    "ytgrab",
		Usage:   "download YouTube videos and playlists",
		Version: "0.1.0",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "url",
				UsageText:   "<video or playlist URL>",
				Destination: &target,
				Max:         1,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "format selector: itag=NN, best, worst, height<=N, height>=N",
			},
			&cli.StringFlag{
				Name:  "ext",
				Usage: "preferred container extension, e.g. mp4 or webm",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output file or directory",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "disable the terminal progress bar",
			},
			&cli.DurationFlag{
				Name:  "http-timeout",
				Usage: "HTTP request timeout",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "retry count for transient HTTP failures",
			},
			&cli.StringFlag{
				Name:  "ua",
				Usage: "override the User-Agent header",
			},
			&cli.StringFlag{
				Name:  "proxy",
				Usage: "proxy URL, e.g. http://127.0.0.1:1080",
			},
			&cli.StringFlag{
				Name:  "rate-limit",
				Usage: "download rate limit, e.g. 500KB/s or 2MiB/s",
			},
			&cli.BoolFlag{
				Name:  "playlist",
				Usage: "treat the argument as a playlist",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "max number of playlist items",
				Value: defaultPlaylistLimit,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "concurrent downloads in playlist mode",
				Value: 2,
			},
			&cli.BoolFlag{
				Name:  "strip-metadata",
				Usage: "remove container metadata with ffmpeg after download",
			},
			&cli.StringFlag{
				Name:  "archive",
				Usage: "path to a download archive database; recorded videos are skipped",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if strings.TrimSpace(target) == "" {
				return fmt.Errorf("missing video or playlist URL")
			}
			if cmd.Bool("verbose") {
				logx.SetLevel(log.DebugLevel)
			}
			opts, err := getOptionsFromCmd(cmd)
			if err != nil {
				return err
			}
			return cmdMain(ctx, opts, target)
		},
	}
}

func getOptionsFromCmd(cmd *cli.Command) (options, error) {
	opts := options{
		format:        cmd.String("format"),
		ext:           cmd.String("ext"),
		output:        cmd.String("output"),
		noProgress:    cmd.Bool("no-progress"),
		httpTimeout:   cmd.Duration("http-timeout"),
		retries:       cmd.Int("retries"),
		userAgent:     cmd.String("ua"),
		proxy:         cmd.String("proxy"),
		playlist:      cmd.Bool("playlist"),
		limit:         cmd.Int("limit"),
		concurrency:   cmd.Int("concurrency"),
		stripMetadata: cmd.Bool("strip-metadata"),
		archivePath:   cmd.String("archive"),
	}

	if raw := cmd.String("rate-limit"); raw != "" {
		bps, err := parseRateLimit(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid --rate-limit %q: %w", raw, err)
		}
		opts.rateLimitBps = bps
	}
	if opts.concurrency < 1 {
		opts.concurrency = 1
	}
	if opts.limit < 1 {
		opts.limit = defaultPlaylistLimit
	}
	return opts, nil
}

// parseRateLimit converts a humanized rate ("2MiB/s", "500KB") to bytes/sec.
func parseRateLimit(raw string) (int64, error) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "/s")
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// extractPlaylistID accepts either a playlist URL with a list parameter or a
// bare playlist ID.
func extractPlaylistID(raw string) (string, error) {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		if id := u.Query().Get("list"); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("no playlist id in URL %q", raw)
	}
	if strings.ContainsAny(raw, "/?&= ") {
		return "", fmt.Errorf("invalid playlist id %q", raw)
	}
	return raw, nil
}

func (o options) newFetcher(progressFn func(ytgrab.Progress), store *history.Store) *ytgrab.Fetcher {
	httpClient := client.NewWith(client.Config{
		Timeout:   o.httpTimeout,
		Retries:   int(o.retries),
		UserAgent: o.userAgent,
		ProxyURL:  o.proxy,
	}).HTTPClient

	f := ytgrab.New().
		WithFormat(o.format, o.ext).
		WithOutputPath(o.output).
		WithRateLimit(o.rateLimitBps).
		WithHTTPClient(httpClient).
		WithStripMetadata(o.stripMetadata).
		WithHistory(store)
	if progressFn != nil {
		f.WithProgress(progressFn)
	}
	return f
}

func cmdMain(ctx context.Context, opts options, target string) error {
	var store *history.Store
	if opts.archivePath != "" {
		s, err := history.Open(opts.archivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	if opts.playlist || looksLikePlaylist(target) {
		return downloadPlaylist(ctx, opts, target, store)
	}
	return downloadVideo(ctx, opts, target, store)
}

func looksLikePlaylist(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Query().Get("list") != ""
}

func downloadVideo(ctx context.Context, opts options, videoURL string, store *history.Store) error {
	var progressFn func(ytgrab.Progress)
	if !opts.noProgress {
		var bar *progressbar.ProgressBar
		progressFn = func(p ytgrab.Progress) {
			if bar == nil {
				total := p.TotalSize
				if total <= 0 {
					total = -1 // spinner when the size is unknown
				}
				bar = progressbar.NewOptions64(total,
					progressbar.OptionSetDescription("downloading"),
					progressbar.OptionShowBytes(true),
					progressbar.OptionSetWidth(30),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set64(p.DownloadedSize)
		}
	}

	info, err := opts.newFetcher(progressFn, store).Download(ctx, videoURL)
	if err != nil {
		return err
	}
	llog.Info("download finished", "title", info.Title, "id", info.ID, "path", info.FilePath)
	return nil
}

func downloadPlaylist(ctx context.Context, opts options, target string, store *history.Store) error {
	playlistID, err := extractPlaylistID(target)
	if err != nil {
		return err
	}

	items, err := opts.newFetcher(nil, store).PlaylistItemsAll(ctx, playlistID, int(opts.limit))
	if err != nil {
		return fmt.Errorf("list playlist items: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("playlist %s has no items", playlistID)
	}
	llog.Info("downloading playlist", "id", playlistID, "items", len(items), "workers", opts.concurrency)

	workChan := make(chan types.PlaylistItem, opts.concurrency)
	resultChan := make(chan error, opts.concurrency)

	for i := int64(0); i < opts.concurrency; i++ {
		go playlistWorker(ctx, opts, store, workChan, resultChan)
	}
	go func() {
		for _, item := range items {
			workChan <- item
		}
	}()

	failed := 0
	for recv := 0; recv < len(items); recv++ {
		if err := <-resultChan; err != nil {
			failed++
		}
	}
	close(workChan)

	if failed > 0 {
		return fmt.Errorf("%d of %d playlist items failed", failed, len(items))
	}
	llog.Info("playlist finished", "items", len(items))
	return nil
}

// playlistWorker downloads items until the channel closes, one at a time.
// Failures are logged and reported but never stop the other workers.
func playlistWorker(ctx context.Context, opts options, store *history.Store, workChan chan types.PlaylistItem, resultChan chan error) {
	for item := range workChan {
		f := opts.newFetcher(nil, store)
		videoURL := "https://www.youtube.com/watch?v=" + item.VideoID
		info, err := f.Download(ctx, videoURL)
		if err != nil {
			llog.Warn("playlist item failed", "index", item.Index, "id", item.VideoID, "err", err)
		} else {
			llog.Info("playlist item done", "index", item.Index, "title", info.Title, "path", info.FilePath)
		}
		resultChan <- err
	}
}
