package cipher

import (
	"sync"
	"time"
)

const (
	playerJSTTL     = 10 * time.Minute
	signatureTTL    = time.Hour
	cleanupInterval = 5 * time.Minute
)

type playerJSCacheEntry struct {
	body  []byte
	expAt time.Time
}

type signatureCacheEntry struct {
	value string
	expAt time.Time
}

var (
	playerJSCacheMu sync.Mutex
	playerJSCache   = make(map[string]playerJSCacheEntry)

	signatureCacheMu sync.Mutex
	signatureCache   = make(map[string]signatureCacheEntry)
)

func init() {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			cleanupExpired()
		}
	}()
}

func cleanupExpired() {
	now := time.Now()

	playerJSCacheMu.Lock()
	for url, entry := range playerJSCache {
		if now.After(entry.expAt) {
			delete(playerJSCache, url)
		}
	}
	playerJSCacheMu.Unlock()

	signatureCacheMu.Lock()
	for sig, entry := range signatureCache {
		if now.After(entry.expAt) {
			delete(signatureCache, sig)
		}
	}
	signatureCacheMu.Unlock()
}

func cachedPlayerJS(playerJSURL string) ([]byte, bool) {
	playerJSCacheMu.Lock()
	defer playerJSCacheMu.Unlock()
	entry, ok := playerJSCache[playerJSURL]
	if !ok || time.Now().After(entry.expAt) {
		return nil, false
	}
	return entry.body, true
}

func storePlayerJS(playerJSURL string, body []byte) {
	playerJSCacheMu.Lock()
	playerJSCache[playerJSURL] = playerJSCacheEntry{body: body, expAt: time.Now().Add(playerJSTTL)}
	playerJSCacheMu.Unlock()
}

func cachedSignature(signature string) (string, bool) {
	signatureCacheMu.Lock()
	defer signatureCacheMu.Unlock()
	entry, ok := signatureCache[signature]
	if !ok || time.Now().After(entry.expAt) {
		return "", false
	}
	return entry.value, true
}

func storeSignature(signature, value string) {
	signatureCacheMu.Lock()
	signatureCache[signature] = signatureCacheEntry{value: value, expAt: time.Now().Add(signatureTTL)}
	signatureCacheMu.Unlock()
}
