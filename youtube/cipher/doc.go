/*
Package cipher decrypts YouTube stream signatures and throttling parameters.

Signed streams carry their URL inside a signatureCipher query whose s
parameter must be transformed by the scrambling routine embedded in the
site's player.js. The package resolves player.js from a watch page, then
deciphers signatures through a chain of methods, most reliable first:

 1. Regex parser: extracts the transform chain (reverse, splice, swap)
    from the script without executing JavaScript.
 2. otto: runs the script in a JavaScript interpreter and calls the
    decipher function directly.
 3. Pattern fallback: guesses a single transform from keywords. Last
    resort, results may be wrong.

The throttling n parameter is decoded by DecipherN through otto.

Both player.js bodies (10 minutes) and deciphered signatures (1 hour) are
cached, with expired entries swept every 5 minutes. Counters for requests,
cache hits and decipher timings are available through Metrics.

All entry points are safe for concurrent use.
*/
package cipher
