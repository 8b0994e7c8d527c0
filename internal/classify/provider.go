package classify

import (
	"context"
	"errors"

	"jobtriage-engine/internal/domain"
)

// Provider is a pluggable inference backend. Implementations may block
// for seconds and may fail; the orchestrator owns timeouts and fallback.
type Provider interface {
	Name() string
	Classify(ctx context.Context, in domain.EmailInput) (domain.RawOutput, error)
}

// ErrNoSignal is returned by heuristic providers when the email carries
// nothing they can act on; the chain then falls through.
var ErrNoSignal = errors.New("no classification signal")
