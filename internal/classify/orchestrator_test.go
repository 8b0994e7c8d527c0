package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobtriage-engine/internal/config"
	"jobtriage-engine/internal/domain"
)

type fakeProvider struct {
	name string
	out  domain.RawOutput
	err  error
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) Classify(_ context.Context, _ domain.EmailInput) (domain.RawOutput, error) {
	return f.out, f.err
}

type blockingProvider struct{ name string }

func (b blockingProvider) Name() string { return b.name }

func (b blockingProvider) Classify(ctx context.Context, _ domain.EmailInput) (domain.RawOutput, error) {
	<-ctx.Done()
	return domain.RawOutput{}, ctx.Err()
}

func TestClassifyIsTotalWhenEveryTierFails(t *testing.T) {
	o := NewOrchestrator(time.Second,
		fakeProvider{name: "two_stage", err: errors.New("boom")},
		fakeProvider{name: "single_stage", err: errors.New("boom")},
	)

	res := o.Classify(context.Background(), domain.EmailInput{ProviderMessageID: "m1"})

	require.False(t, res.IsJobRelated)
	require.Equal(t, 0.0, res.Confidence)
	require.Contains(t, res.Notes, "two_stage_failed:error")
	require.Contains(t, res.Notes, "single_stage_failed:error")
	require.Contains(t, res.Notes, "baseline_ok")
	require.Equal(t, "two_stage>single_stage>baseline", res.DecisionPath)
}

func TestTierConfidenceAssignment(t *testing.T) {
	o := NewOrchestrator(time.Second,
		fakeProvider{name: "two_stage", out: domain.RawOutput{IsJobRelated: true, Company: "Acme"}},
	)

	res := o.Classify(context.Background(), domain.EmailInput{})

	require.True(t, res.IsJobRelated)
	require.Equal(t, "Acme", res.Company)
	require.Equal(t, 0.95, res.Confidence)
	require.Contains(t, res.Notes, "two_stage_ok")
}

func TestCeilingDemotionAfterFailures(t *testing.T) {
	o := NewOrchestrator(time.Second,
		fakeProvider{name: "two_stage", err: errors.New("boom")},
		fakeProvider{name: "single_stage", err: errors.New("boom")},
		fakeProvider{name: "keyword", out: domain.RawOutput{IsJobRelated: true, Status: domain.StatusApplied}},
	)

	res := o.Classify(context.Background(), domain.EmailInput{})

	// keyword-with-status is 0.70, under the demoted ceiling of 0.90
	require.Equal(t, 0.70, res.Confidence)

	o2 := NewOrchestrator(time.Second,
		fakeProvider{name: "single_stage", err: errors.New("boom")},
		fakeProvider{name: "two_stage", out: domain.RawOutput{IsJobRelated: true}},
	)
	res2 := o2.Classify(context.Background(), domain.EmailInput{})

	// one failure drops the ceiling to 0.95, capping the 0.95 tier there
	require.InDelta(t, 0.95, res2.Confidence, 1e-9)

	o3 := NewOrchestrator(time.Second,
		fakeProvider{name: "single_stage", err: errors.New("a")},
		fakeProvider{name: "keyword", err: errors.New("b")},
		fakeProvider{name: "two_stage", out: domain.RawOutput{IsJobRelated: true}},
	)
	res3 := o3.Classify(context.Background(), domain.EmailInput{})
	require.InDelta(t, 0.90, res3.Confidence, 1e-9)
}

func TestTimeoutCountsAsFailure(t *testing.T) {
	o := NewOrchestrator(20*time.Millisecond,
		blockingProvider{name: "two_stage"},
		fakeProvider{name: "keyword", out: domain.RawOutput{IsJobRelated: true}},
	)

	res := o.Classify(context.Background(), domain.EmailInput{})

	require.Contains(t, res.Notes, "two_stage_failed:timeout")
	require.True(t, res.IsJobRelated)
	require.Equal(t, 0.60, res.Confidence)
}

func TestKeywordProviderRecognizesJobMail(t *testing.T) {
	p := NewKeywordProvider(config.Config{})

	out, err := p.Classify(context.Background(), domain.EmailInput{
		Subject:     "Interview for Software Engineer",
		FromAddress: "recruiter@acme.com",
	})
	require.NoError(t, err)
	require.True(t, out.IsJobRelated)
	require.Equal(t, domain.StatusInterview, out.Status)
}

func TestKeywordProviderRecognizesNonJobMail(t *testing.T) {
	p := NewKeywordProvider(config.Config{})

	out, err := p.Classify(context.Background(), domain.EmailInput{
		Subject:     "Your invoice for May",
		FromAddress: "billing@stripe.com",
	})
	require.NoError(t, err)
	require.False(t, out.IsJobRelated)
}

func TestKeywordProviderReportsNoSignal(t *testing.T) {
	p := NewKeywordProvider(config.Config{})

	_, err := p.Classify(context.Background(), domain.EmailInput{
		Subject:       "Lunch on Friday?",
		FromAddress:   "friend@gmail.com",
		BodyPlaintext: "Want to grab lunch?",
	})
	require.ErrorIs(t, err, ErrNoSignal)
}

func TestParseLLMAnswerStripsFences(t *testing.T) {
	a, err := parseLLMAnswer("```json\n{\"is_job_related\": true, \"company\": \"Acme\", \"status\": \"interview\"}\n```")
	require.NoError(t, err)
	require.True(t, a.IsJobRelated)
	require.Equal(t, "Acme", a.Company)
	require.Equal(t, "interview", a.Status)
}

func TestBaselineNeverFails(t *testing.T) {
	out, err := Baseline{}.Classify(context.Background(), domain.EmailInput{Subject: "anything"})
	require.NoError(t, err)
	require.False(t, out.IsJobRelated)
}
