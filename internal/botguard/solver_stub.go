//go:build !botguard

package botguard

import "context"

// GojaSolver is a stub when the 'botguard' build tag is not enabled.
type GojaSolver struct{}

// NewGojaSolver returns nil to indicate the solver is unavailable in this build.
func NewGojaSolver() *GojaSolver { return nil }

// NewGojaSolverWithScript is a stub constructor for non-botguard builds.
func NewGojaSolverWithScript(scriptPath string) *GojaSolver { return nil }

func (s *GojaSolver) Attest(ctx context.Context, input Input) (Output, error) {
	return Output{}, nil
}
