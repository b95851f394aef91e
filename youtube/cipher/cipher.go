package cipher

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/robertkrimen/otto"

	"github.com/ytget/ytgrab/internal/logx"
)

const (
	userAgentValue   = "Mozilla/5.0"
	ytBase           = "https://www.youtube.com"
	decipherFuncName = "decipher"
	ncodeFuncName    = "ncode"
)

var playerJSURLRegex = regexp.MustCompile(`"jsUrl":"([^"]+)"`)

var clog = logx.For(logx.Cipher)

// FetchPlayerJS requests the provided video page URL and scrapes the
// "jsUrl" field to find the player.js URL.
func FetchPlayerJS(httpClient *http.Client, videoURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, videoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgentValue)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := playerJSURLRegex.FindSubmatch(body)
	if len(matches) < 2 || len(matches[1]) == 0 {
		return "", NewError(ErrCodePlayerJSNotFound, "could not find player js url in video page")
	}

	jsPath := strings.ReplaceAll(string(matches[1]), `\/`, `/`)
	if strings.HasPrefix(jsPath, "http") {
		return jsPath, nil
	}
	return ytBase + jsPath, nil
}

// DebugGetPlayerJS resolves the player.js URL for a watch page and returns
// both the URL and the script body. Diagnostic helper for the CLI.
func DebugGetPlayerJS(httpClient *http.Client, videoURL string) (string, []byte, error) {
	playerJSURL, err := FetchPlayerJS(httpClient, videoURL)
	if err != nil {
		return "", nil, err
	}
	body, err := getPlayerJS(httpClient, playerJSURL)
	if err != nil {
		return playerJSURL, nil, err
	}
	return playerJSURL, body, nil
}

func getPlayerJS(httpClient *http.Client, playerJSURL string) ([]byte, error) {
	if body, ok := cachedPlayerJS(playerJSURL); ok {
		return body, nil
	}

	req, err := http.NewRequest(http.MethodGet, playerJSURL, nil)
	if err != nil {
		return nil, NewError(ErrCodePlayerJSDownload, "failed to create request for player.js", err.Error())
	}
	req.Header.Set("User-Agent", userAgentValue)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, NewError(ErrCodePlayerJSDownload, "failed to download player.js", err.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, NewError(ErrCodePlayerJSDownload, fmt.Sprintf("player.js returned status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(ErrCodePlayerJSDownload, "failed to read player.js content", err.Error())
	}

	storePlayerJS(playerJSURL, body)
	return body, nil
}

// Decipher decrypts a stream signature. Results are cached; decryption is
// attempted with the regex parser first, then otto, then a pattern fallback.
func Decipher(httpClient *http.Client, playerJSURL string, signature string) (string, error) {
	recordRequest()
	if v, ok := cachedSignature(signature); ok {
		recordCacheHit()
		return v, nil
	}
	recordCacheMiss()

	start := time.Now()
	playerJSContent, err := getPlayerJS(httpClient, playerJSURL)
	if err != nil {
		return "", err
	}
	playerJS := string(playerJSContent)

	if out, ok := tryRegexDecipher(playerJS, signature); ok {
		clog.Debug("deciphered via regex parser")
		storeSignature(signature, out)
		recordDecipherTime(time.Since(start))
		return out, nil
	}
	if out, ok := tryOttoDecipher(playerJS, signature); ok {
		clog.Debug("deciphered via otto")
		storeSignature(signature, out)
		recordDecipherTime(time.Since(start))
		return out, nil
	}
	if out, ok := tryPatternFallback(playerJS, signature); ok {
		clog.Warn("deciphered via pattern fallback, result may be wrong")
		storeSignature(signature, out)
		recordDecipherTime(time.Since(start))
		return out, nil
	}

	return "", NewError(ErrCodeSignatureDecipher, "all decipher methods failed")
}

// DecipherN decodes the throttling n-parameter when player.js defines ncode().
// When the function is absent the original value is returned unchanged.
func DecipherN(httpClient *http.Client, playerJSURL string, nval string) (string, error) {
	playerJSContent, err := getPlayerJS(httpClient, playerJSURL)
	if err != nil {
		return "", err
	}
	vm := otto.New()
	if _, err := vm.Run(sanitizePlayerJS(string(playerJSContent))); err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "failed to run player.js", err.Error())
	}
	fn, err := vm.Get(ncodeFuncName)
	if err != nil || !fn.IsFunction() {
		return nval, nil
	}
	value, err := vm.Call(ncodeFuncName, nil, nval)
	if err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "failed to call ncode function", err.Error())
	}
	result, err := value.ToString()
	if err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "ncode did not return a string", err.Error())
	}
	return result, nil
}

// otto chokes on modern regex literals (lookarounds, named groups). Strip
// them before execution; the decipher code never relies on them.
var sanitizeREs = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\(\?<[=!][^)]*\)`), "("},
	{regexp.MustCompile(`\(\?[=!][^)]*\)`), "("},
	{regexp.MustCompile(`\(\?>[^)]*\)`), "("},
	{regexp.MustCompile(`\(\?<[a-zA-Z0-9_]+>`), "("},
}

func sanitizePlayerJS(playerJS string) string {
	for _, s := range sanitizeREs {
		playerJS = s.re.ReplaceAllString(playerJS, s.repl)
	}
	return playerJS
}

// tryOttoDecipher executes player.js in otto and calls its decipher function.
func tryOttoDecipher(playerJS string, signature string) (string, bool) {
	vm := otto.New()
	if _, err := vm.Run(sanitizePlayerJS(playerJS)); err != nil {
		return "", false
	}
	fn, err := vm.Get(decipherFuncName)
	if err != nil || !fn.IsFunction() {
		return "", false
	}
	value, err := vm.Call(decipherFuncName, nil, signature)
	if err != nil {
		return "", false
	}
	result, err := value.ToString()
	if err != nil {
		return "", false
	}
	return result, true
}
