package classify

import (
	"context"
	"strings"

	"jobtriage-engine/internal/config"
	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/normalize"
)

// defaults used when the config carries no keyword tables.
var (
	defaultJobRules = []config.Rule{
		{Tag: "application", Any: []string{
			"your application", "application received", "thank you for applying",
			"application to", "we received your application", "applying to",
		}},
		{Tag: "interview", Any: []string{
			"interview", "phone screen", "hiring process", "next steps",
		}},
		{Tag: "decision", Any: []string{
			"offer", "candidate", "position", "recruiter", "recruiting", "talent",
		}},
	}
	defaultNonJobRules = []config.Rule{
		{Tag: "billing", Any: []string{
			"invoice", "receipt", "payment", "statement", "subscription",
		}},
		{Tag: "bulk", Any: []string{
			"unsubscribe", "newsletter", "weekly digest", "job alert", "jobs for you",
		}},
	}
)

// KeywordProvider is the no-network heuristic tier: ordered keyword
// tables over subject, sender, and body. It reports ErrNoSignal when
// nothing matches so the chain can fall through to the baseline.
type KeywordProvider struct {
	jobRules    []config.Rule
	nonJobRules []config.Rule
}

func NewKeywordProvider(cfg config.Config) *KeywordProvider {
	p := &KeywordProvider{
		jobRules:    cfg.Classify.JobKeywords,
		nonJobRules: cfg.Classify.NonJobKeywords,
	}
	if len(p.jobRules) == 0 {
		p.jobRules = defaultJobRules
	}
	if len(p.nonJobRules) == 0 {
		p.nonJobRules = defaultNonJobRules
	}
	return p
}

func (p *KeywordProvider) Name() string { return "keyword" }

func (p *KeywordProvider) Classify(_ context.Context, in domain.EmailInput) (domain.RawOutput, error) {
	subject := strings.ToLower(in.Subject)
	blob := subject + " " + strings.ToLower(in.FromAddress) + " " + strings.ToLower(in.BodyPlaintext)

	// A non-job hit on subject or sender wins unless the subject itself
	// talks about an application.
	if hitAny(p.nonJobRules, subject+" "+strings.ToLower(in.FromAddress)) && !hitAny(p.jobRules, subject) {
		return domain.RawOutput{IsJobRelated: false}, nil
	}

	if hitAny(p.jobRules, blob) {
		out := domain.RawOutput{IsJobRelated: true}
		if st, _, ok := normalize.StatusFromSubject(in.Subject); ok {
			out.Status = st
		}
		return out, nil
	}

	return domain.RawOutput{}, ErrNoSignal
}

func hitAny(rules []config.Rule, text string) bool {
	for _, r := range rules {
		for _, needle := range r.Any {
			n := strings.ToLower(strings.TrimSpace(needle))
			if n == "" {
				continue
			}
			if strings.Contains(text, n) {
				return true
			}
		}
	}
	return false
}
