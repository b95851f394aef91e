package formats

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ytget/ytgrab/internal/logx"
	"github.com/ytget/ytgrab/types"
	"github.com/ytget/ytgrab/youtube/cipher"
	"github.com/ytget/ytgrab/youtube/innertube"
)

var heightRe = regexp.MustCompile(`([0-9]{3,4})p`)

var flog = logx.For(logx.Format)

func getSubtype(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.Split(mime, "/")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

func parseHeight(label string) int {
	m := heightRe.FindStringSubmatch(label)
	if len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}
	return 0
}

// ParseFormats extracts the available media formats, progressive and
// adaptive, from an InnerTube player response.
func ParseFormats(data *innertube.PlayerResponse) ([]types.Format, error) {
	var formats []types.Format
	allFormats := append(data.StreamingData.Formats, data.StreamingData.AdaptiveFormats...)

	for _, formatData := range allFormats {
		f, ok := formatData.(map[string]any)
		if !ok {
			continue
		}

		var itag int
		if v, ok := f["itag"].(float64); ok {
			itag = int(v)
		}

		var bitrate int
		if v, ok := f["bitrate"].(float64); ok {
			bitrate = int(v)
		}

		var size int64
		if v, ok := f["contentLength"].(string); ok {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				size = parsed
			}
		}

		mimeType, _ := f["mimeType"].(string)
		quality, _ := f["qualityLabel"].(string)

		format := types.Format{
			Itag:     itag,
			MimeType: mimeType,
			Quality:  quality,
			Bitrate:  bitrate,
			Size:     size,
		}

		if urlVal, ok := f["url"].(string); ok {
			format.URL = urlVal
		} else if sc, ok := f["signatureCipher"].(string); ok {
			format.SignatureCipher = sc
		}

		formats = append(formats, format)
	}
	return formats, nil
}

// SelectFormat chooses a format according to criteria without requiring
// direct URLs. Supported selectors:
//   - itag=NN: specific format by itag (e.g., "itag=22" for 720p MP4)
//   - best: highest quality (height, then bitrate)
//   - worst: lowest quality
//   - height<=NNN / height>=NNN: height constraints
//
// ext filters by file extension ("mp4", "webm"). If the selector is absent
// or nothing matches, a heuristic is used: prefer itag 22 (720p MP4), then
// itag 18 (360p MP4), then progressive mp4 with avc1, else first available.
func SelectFormat(formats []types.Format, quality, ext string) *types.Format {
	if len(formats) == 0 {
		return nil
	}
	all := make([]types.Format, 0, len(formats))
	all = append(all, formats...)

	filtered := make([]types.Format, 0, len(all))
	for i := range all {
		if mimeSubtypeEquals(all[i], ext) {
			filtered = append(filtered, all[i])
		}
	}
	if len(filtered) == 0 {
		filtered = all
	}

	q := strings.TrimSpace(strings.ToLower(quality))
	if strings.HasPrefix(q, "itag=") {
		val := strings.TrimPrefix(q, "itag=")
		if it, err := strconv.Atoi(val); err == nil {
			for i := range filtered {
				if itagEquals(filtered[i], it) {
					return &filtered[i]
				}
			}
		}
	}

	var minH, maxH int
	if strings.HasPrefix(q, "height<=") {
		if v, err := strconv.Atoi(strings.TrimPrefix(q, "height<=")); err == nil {
			maxH = v
		}
	}
	if strings.HasPrefix(q, "height>=") {
		if v, err := strconv.Atoi(strings.TrimPrefix(q, "height>=")); err == nil {
			minH = v
		}
	}
	if minH > 0 || maxH > 0 {
		tmp := filtered[:0]
		for i := range filtered {
			if withinHeight(filtered[i], minH, maxH) {
				tmp = append(tmp, filtered[i])
			}
		}
		if len(tmp) > 0 {
			filtered = tmp
		}
	}

	if q == "best" || q == "worst" {
		best := filtered[0]
		for _, f := range filtered[1:] {
			if betterByHeightThenBitrate(f, best) {
				best = f
			}
		}
		if q == "best" {
			return &best
		}
		worst := filtered[0]
		for _, f := range filtered[1:] {
			if betterByHeightThenBitrate(worst, f) {
				worst = f
			}
		}
		return &worst
	}

	// Heuristic: highest-resolution progressive MP4 first.
	var itag22, itag18 *types.Format
	for i := range filtered {
		if filtered[i].Itag == 22 {
			f := filtered[i]
			itag22 = &f
		}
		if filtered[i].Itag == 18 {
			f := filtered[i]
			itag18 = &f
		}
	}
	if itag22 != nil {
		return itag22
	}
	if itag18 != nil {
		return itag18
	}

	for i := range filtered {
		if strings.Contains(filtered[i].MimeType, "video/mp4") && strings.Contains(filtered[i].MimeType, "avc1") {
			return &filtered[i]
		}
	}
	for i := range filtered {
		if hasDirectURL(filtered[i]) {
			return &filtered[i]
		}
	}
	return &filtered[0]
}

// DecryptSignatures deciphers formats that carry a signatureCipher and
// updates their URL in place. Formats that fail are skipped, not fatal.
func DecryptSignatures(httpClient *http.Client, formats []types.Format, playerJSURL string) error {
	successCount := 0
	skippedCount := 0

	for i := range formats {
		if formats[i].URL != "" {
			successCount++
			continue
		}
		if formats[i].SignatureCipher == "" {
			continue
		}

		u, err := resolveFromCipher(httpClient, formats[i].SignatureCipher, playerJSURL)
		if err != nil {
			flog.Warn("decipher failed", "itag", formats[i].Itag, "err", err)
			skippedCount++
			continue
		}
		formats[i].URL = u
		successCount++
	}

	flog.Debug("signature decryption done", "ok", successCount, "skipped", skippedCount)
	return nil
}

// ResolveFormatURL builds the final downloadable URL for a selected format.
// A direct URL only needs the n parameter decoded; a signatureCipher needs
// the s parameter deciphered first.
func ResolveFormatURL(httpClient *http.Client, f types.Format, playerJSURL string) (string, error) {
	if strings.TrimSpace(f.URL) != "" {
		u, err := url.Parse(f.URL)
		if err != nil {
			return "", fmt.Errorf("parse direct url failed: %w", err)
		}
		q := u.Query()
		applyThrottleParams(httpClient, q, playerJSURL)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	if strings.TrimSpace(f.SignatureCipher) == "" {
		return "", fmt.Errorf("no url or signatureCipher for selected format")
	}
	return resolveFromCipher(httpClient, f.SignatureCipher, playerJSURL)
}

// resolveFromCipher deciphers a signatureCipher query into a playable URL.
func resolveFromCipher(httpClient *http.Client, signatureCipher, playerJSURL string) (string, error) {
	parsed, err := url.ParseQuery(signatureCipher)
	if err != nil {
		return "", fmt.Errorf("parse signatureCipher failed: %w", err)
	}
	sig := parsed.Get("s")
	sp := parsed.Get("sp")
	if sp == "" {
		sp = "signature"
	}
	cipherURL := parsed.Get("url")
	if cipherURL == "" || sig == "" {
		return "", fmt.Errorf("signatureCipher missing signature or url")
	}
	decodedSig, err := cipher.Decipher(httpClient, playerJSURL, sig)
	if err != nil {
		return "", fmt.Errorf("decipher signature failed: %w", err)
	}
	u, err := url.Parse(cipherURL)
	if err != nil {
		return "", fmt.Errorf("parse cipher url failed: %w", err)
	}
	q := u.Query()
	q.Set(sp, decodedSig)
	applyThrottleParams(httpClient, q, playerJSURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// applyThrottleParams decodes the n parameter when present and forces
// ratebypass/alr so ranged requests are not throttled or bounced.
func applyThrottleParams(httpClient *http.Client, q url.Values, playerJSURL string) {
	if nval := q.Get("n"); nval != "" {
		if nout, err := cipher.DecipherN(httpClient, playerJSURL, nval); err == nil && nout != "" {
			q.Set("n", nout)
		}
	}
	if q.Get("ratebypass") == "" {
		q.Set("ratebypass", "yes")
	}
	if q.Get("alr") == "" {
		q.Set("alr", "yes")
	}
}
