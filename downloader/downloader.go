// Package downloader saves media streams to disk with chunked range
// requests, resume support, retry with backoff and optional rate limiting.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/ytgrab/internal/logx"
)

const (
	defaultChunkSizeBytes  = 1 << 20 // 1MiB
	defaultMaxRetries      = 3
	temporaryFileSuffix    = ".tmp"
	initialBackoffDuration = 200 * time.Millisecond
	maxBackoffDuration     = 3 * time.Second
	copyBufferSizeBytes    = 32 * 1024

	headerRange          = "Range"
	headerContentRange   = "Content-Range"
	headerContentLength  = "Content-Length"
	headerUserAgent      = "User-Agent"
	headerAccept         = "Accept"
	headerAcceptLanguage = "Accept-Language"
	headerAcceptEncoding = "Accept-Encoding"
	headerConnection     = "Connection"
	headerCacheControl   = "Cache-Control"

	userAgentValue = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

var dlog = logx.For(logx.Downloader)

// Progress holds information about download progress.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Downloader downloads media files with chunked HTTP range requests,
// retry/backoff and optional rate limiting. Safe to reuse across downloads.
type Downloader struct {
	Client       *http.Client
	ProgressFunc func(Progress)

	chunkSize    int64
	maxRetries   int
	rateLimitBps int64
}

// New creates a downloader. A nil client falls back to a default http.Client;
// rateLimitBps=0 disables rate limiting.
func New(client *http.Client, progressFunc func(Progress), rateLimitBps int64) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{
		Client:       client,
		ProgressFunc: progressFunc,
		chunkSize:    defaultChunkSizeBytes,
		maxRetries:   defaultMaxRetries,
		rateLimitBps: rateLimitBps,
	}
}

func isGoogleVideoHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.ToLower(u.Hostname())
	return h == "googlevideo.com" || strings.HasSuffix(h, ".googlevideo.com")
}

func (d *Downloader) setCommonHeaders(req *http.Request) {
	req.Header.Set(headerUserAgent, userAgentValue)
	req.Header.Set(headerAccept, "*/*")
	req.Header.Set(headerAcceptEncoding, "identity")
	req.Header.Set(headerConnection, "keep-alive")
	req.Header.Set(headerCacheControl, "no-cache")
	if !isGoogleVideoHost(req.URL.String()) {
		req.Header.Set(headerAcceptLanguage, "en-US,en;q=0.9")
	}
}

// sizeFromHeaders extracts the total size from Content-Range
// ("bytes a-b/total") or Content-Length.
func sizeFromHeaders(h http.Header) (int64, bool) {
	if cr := h.Get(headerContentRange); cr != "" {
		parts := strings.Split(cr, "/")
		if len(parts) == 2 {
			if v, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				return v, true
			}
		}
		return 0, false
	}
	if cl := h.Get(headerContentLength); cl != "" {
		if v, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// probeSize issues a two-byte range request with the given method and parses
// the size out of the response headers.
func (d *Downloader) probeSize(ctx context.Context, method, urlStr string) (int64, bool) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return 0, false
	}
	d.setCommonHeaders(req)
	req.Header.Set(headerRange, "bytes=0-1")

	resp, err := d.Client.Do(req)
	if err != nil || resp == nil {
		return 0, false
	}
	defer func() { _ = resp.Body.Close() }()
	dlog.Debug("size probe", "method", method, "status", resp.StatusCode)
	return sizeFromHeaders(resp.Header)
}

// detectTotalSize determines the total stream size. googlevideo hosts reject
// HEAD, so those go straight to a ranged GET.
func (d *Downloader) detectTotalSize(ctx context.Context, urlStr string) (int64, error) {
	if !isGoogleVideoHost(urlStr) {
		if size, ok := d.probeSize(ctx, http.MethodHead, urlStr); ok {
			return size, nil
		}
	}
	if size, ok := d.probeSize(ctx, http.MethodGet, urlStr); ok {
		return size, nil
	}
	return 0, errors.New("cannot determine total size")
}

// sleepForRate enforces a simple rate limit based on bytes written in this step.
func (d *Downloader) sleepForRate(written int64) {
	if d.rateLimitBps <= 0 || written <= 0 {
		return
	}
	dur := time.Duration(int64(time.Second) * written / d.rateLimitBps)
	if dur > 0 {
		time.Sleep(dur)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchChunk requests one byte range with retry and backoff. The caller owns
// the response body.
func (d *Downloader) fetchChunk(ctx context.Context, urlStr string, start, end int64) (*http.Response, error) {
	backoff := initialBackoffDuration
	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		d.setCommonHeaders(req)
		rangeVal := fmt.Sprintf("bytes=%d-%d", start, end)
		req.Header.Set(headerRange, rangeVal)
		dlog.Debug("requesting chunk", "range", rangeVal, "attempt", attempt+1)

		resp, err := d.Client.Do(req)
		if err == nil && resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return resp, nil
		}
		lastErr = err
		if resp != nil {
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			lastErr = fmt.Errorf("HTTP status %d", resp.StatusCode)
		}
		dlog.Warn("chunk request failed", "attempt", attempt+1, "err", lastErr)
		if err := sleepContext(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > maxBackoffDuration {
			backoff = maxBackoffDuration
		}
	}
	return nil, fmt.Errorf("download chunk failed: %w", lastErr)
}

// Download saves the stream at urlStr to outputPath. Partial data is written
// to outputPath+".tmp" and the download resumes from it when present; the
// temp file is renamed into place only after the stream completes.
func (d *Downloader) Download(ctx context.Context, urlStr string, outputPath string) error {
	tmpPath := outputPath + temporaryFileSuffix
	var outFile *os.File
	var err error
	if _, statErr := os.Stat(tmpPath); statErr == nil {
		outFile, err = os.OpenFile(tmpPath, os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open tmp for append: %w", err)
		}
		dlog.Debug("resuming from existing temp file", "path", tmpPath)
	} else {
		outFile, err = os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
	}
	defer func() { _ = outFile.Close() }()

	currentInfo, err := outFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat temp file: %w", err)
	}
	downloaded := currentInfo.Size()

	totalSize, err := d.detectTotalSize(ctx, urlStr)
	if err != nil {
		dlog.Warn("could not determine total size, downloading blind", "err", err)
		totalSize = 0
	}
	dlog.Info("starting download", "path", outputPath, "resumeFrom", downloaded, "total", totalSize)

	for downloaded < totalSize || totalSize == 0 {
		start := downloaded
		// Bounded chunks even when the size is unknown; unbounded first
		// requests get rejected by googlevideo.
		end := start + d.chunkSize - 1
		if totalSize > 0 && end >= totalSize {
			end = totalSize - 1
		}
		requested := end - start + 1

		resp, err := d.fetchChunk(ctx, urlStr, start, end)
		if err != nil {
			return err
		}

		read, err := d.copyChunk(outFile, resp.Body, totalSize, &downloaded)
		_ = resp.Body.Close()
		if err != nil {
			return err
		}

		if totalSize == 0 {
			// Without a known size the only end signal is a short chunk.
			if read < requested {
				break
			}
			continue
		}
		if downloaded >= totalSize {
			break
		}
	}

	if fi, err := os.Stat(tmpPath); err == nil && fi.Size() == 0 {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("empty download: 0 bytes written")
	}
	return os.Rename(tmpPath, outputPath)
}

func (d *Downloader) copyChunk(outFile *os.File, body io.Reader, totalSize int64, downloaded *int64) (int64, error) {
	buf := make([]byte, copyBufferSizeBytes)
	read := int64(0)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := outFile.Write(buf[:n]); werr != nil {
				return read, fmt.Errorf("failed to write chunk: %w", werr)
			}
			*downloaded += int64(n)
			read += int64(n)
			if d.ProgressFunc != nil {
				p := Progress{TotalSize: totalSize, DownloadedSize: *downloaded}
				if totalSize > 0 {
					p.Percent = float64(*downloaded) / float64(totalSize) * 100
				}
				d.ProgressFunc(p)
			}
			d.sleepForRate(int64(n))
		}
		if rerr == io.EOF {
			return read, nil
		}
		if rerr != nil {
			return read, fmt.Errorf("failed to read response body: %w", rerr)
		}
	}
}
