package cipher

import (
	"encoding/json"
	"fmt"
)

// Error codes returned by the decipher pipeline.
const (
	ErrCodePlayerJSNotFound   = "PLAYER_JS_NOT_FOUND"
	ErrCodePlayerJSDownload   = "PLAYER_JS_DOWNLOAD_FAILED"
	ErrCodeSignatureDecipher  = "SIGNATURE_DECIPHER_FAILED"
	ErrCodeSignatureInvalid   = "SIGNATURE_INVALID"
	ErrCodeSignatureTimeout   = "SIGNATURE_TIMEOUT"
	ErrCodeSignatureNotFound  = "SIGNATURE_NOT_FOUND"
	ErrCodeJSExecutionFailed  = "JS_EXECUTION_FAILED"
	ErrCodeJSParsingFailed    = "JS_PARSING_FAILED"
	ErrCodeRegexParsingFailed = "REGEX_PARSING_FAILED"
)

// Error is a structured decipher error with a stable code and optional details.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MarshalJSON adds the rendered error string alongside the structured fields.
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	return json.Marshal(&struct {
		*Alias
		Error string `json:"error"`
	}{
		Alias: (*Alias)(e),
		Error: e.Error(),
	})
}

// NewError creates an Error with the given code, message and optional details.
func NewError(code string, message string, details ...any) *Error {
	e := &Error{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// IsTimeout reports whether err is a decipher timeout.
func IsTimeout(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == ErrCodeSignatureTimeout
	}
	return false
}

// IsNotFound reports whether err means player.js or the signature was missing.
func IsNotFound(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == ErrCodePlayerJSNotFound || e.Code == ErrCodeSignatureNotFound
	}
	return false
}

// IsInvalid reports whether err is an invalid signature error.
func IsInvalid(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == ErrCodeSignatureInvalid
	}
	return false
}

// IsJSError reports whether err came from JavaScript execution or parsing.
func IsJSError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == ErrCodeJSExecutionFailed || e.Code == ErrCodeJSParsingFailed
	}
	return false
}

// IsRegexError reports whether err came from the regex parser.
func IsRegexError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == ErrCodeRegexParsingFailed
	}
	return false
}
