package classify

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"jobtriage-engine/internal/domain"
)

// tierConfidence is the fixed confidence assigned on success per tier.
// The keyword tier gets a small bump when it also recognized a status.
var tierConfidence = map[string]float64{
	"two_stage":    0.95,
	"single_stage": 0.80,
	"keyword":      0.60,
	"baseline":     0.0,
}

const keywordStatusConfidence = 0.70

// ceilingPenalty is subtracted from the confidence ceiling each time a
// tier fails, so results reached after trouble carry less weight.
const ceilingPenalty = 0.05

// Orchestrator runs providers in priority order and never fails: every
// provider error is absorbed into the notes and the chain falls through
// to the conservative-empty baseline.
type Orchestrator struct {
	providers []Provider
	timeout   time.Duration
}

func NewOrchestrator(timeout time.Duration, providers ...Provider) *Orchestrator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// the chain must end in a tier that cannot fail
	if len(providers) == 0 || providers[len(providers)-1].Name() != "baseline" {
		providers = append(providers, Baseline{})
	}
	return &Orchestrator{providers: providers, timeout: timeout}
}

// Classify is a total function: it always returns a well-formed result
// and never surfaces a provider error to the caller.
func (o *Orchestrator) Classify(ctx context.Context, in domain.EmailInput) domain.Result {
	res := domain.Result{}
	ceiling := 1.0

	for _, p := range o.providers {
		res = res.WithStage(p.Name())

		pctx, cancel := context.WithTimeout(ctx, o.timeout)
		raw, err := p.Classify(pctx, in)
		cancel()

		if err != nil {
			log.Printf("[classify] provider %s failed msg=%s: %v", p.Name(), in.ProviderMessageID, err)
			res = res.WithNote(p.Name() + "_failed:" + failReason(err))
			ceiling -= ceilingPenalty
			if ceiling < 0 {
				ceiling = 0
			}
			continue
		}

		conf := confidenceFor(p.Name(), raw)
		if conf > ceiling {
			conf = ceiling
		}

		out := domain.Result{
			IsJobRelated: raw.IsJobRelated,
			Company:      raw.Company,
			Position:     raw.Position,
			Status:       raw.Status,
			Confidence:   domain.ClampConfidence(conf),
			DecisionPath: res.DecisionPath,
			Notes:        res.Notes,
		}
		return out.WithNote(p.Name() + "_ok")
	}

	// unreachable while the baseline is wired, kept as a hard floor
	res.IsJobRelated = false
	res.Confidence = 0
	return res.WithNote("all_providers_failed")
}

func confidenceFor(name string, raw domain.RawOutput) float64 {
	conf := tierConfidence[name]
	if name == "keyword" && raw.Status != "" {
		conf = keywordStatusConfidence
	}
	return conf
}

func failReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ErrNoSignal):
		return "no_signal"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
