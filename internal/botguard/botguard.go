// Package botguard defines the attestation hook used by the InnerTube client
// to pass bot checks. Solvers are pluggable; the package ships a goja-backed
// solver behind the 'botguard' build tag plus memory and file caches.
package botguard

import (
	"context"
	"time"
)

// Mode defines how attestation is used.
type Mode int

const (
	// Off disables attestation entirely.
	Off Mode = iota
	// Auto runs attestation on demand, after a 403 from the API.
	Auto
	// Force always runs attestation before relevant InnerTube calls.
	Force
)

// Input carries the parameters required to perform attestation.
type Input struct {
	UserAgent        string
	PageURL          string
	ClientName       string
	ClientVersion    string
	VisitorID        string
	AdditionalParams map[string]string
}

// Output contains an attestation result to be applied to InnerTube requests.
type Output struct {
	Token     string
	ExpiresAt time.Time
	// Optional metadata for diagnostics.
	Metadata map[string]string
}

// Solver produces attestation tokens.
type Solver interface {
	Attest(ctx context.Context, input Input) (Output, error)
}

// Cache stores attestation outputs keyed by input characteristics.
type Cache interface {
	Get(key string) (Output, bool)
	Set(key string, value Output)
}

// KeyFromInput derives a cache key from the Input fields that influence the
// attestation result.
func KeyFromInput(in Input) string {
	return in.UserAgent + "|" + in.ClientName + "|" + in.ClientVersion + "|" + in.VisitorID
}
