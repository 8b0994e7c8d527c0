package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"jobtriage-engine/internal/domain"
)

const defaultLLMModel = "gpt-4o-mini"

// LLMConfig configures the language-model tiers.
type LLMConfig struct {
	APIKey            string
	Model             string
	MaxTokens         int
	RequestsPerSecond float64
	Burst             int
}

// llmCore is shared plumbing for the LLM tiers: one API client, a rate
// limiter so polling bursts don't hammer the backend, and a circuit
// breaker so a dead backend fails fast into the fallback chain.
type llmCore struct {
	client    *openai.Client
	model     string
	maxTokens int
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
}

func newLLMCore(cfg LLMConfig, name string) *llmCore {
	model := cfg.Model
	if model == "" {
		model = defaultLLMModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 2
	}
	return &llmCore{
		client:    openai.NewClient(cfg.APIKey),
		model:     model,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (c *llmCore) completeJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	out, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

type llmAnswer struct {
	IsJobRelated bool   `json:"is_job_related"`
	Company      string `json:"company"`
	Position     string `json:"position"`
	Status       string `json:"status"`
}

func parseLLMAnswer(resp string) (llmAnswer, error) {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var a llmAnswer
	if err := json.Unmarshal([]byte(resp), &a); err != nil {
		return llmAnswer{}, fmt.Errorf("parse llm answer: %w", err)
	}
	return a, nil
}

func emailPrompt(in domain.EmailInput) string {
	return fmt.Sprintf("From: %s\nSubject: %s\n\nBody:\n%s",
		in.FromAddress, in.Subject, truncateBody(in.BodyPlaintext, 2000))
}

func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "..."
}

// SingleStageLLM answers classification and extraction in one call.
type SingleStageLLM struct {
	core *llmCore
}

func NewSingleStageLLM(cfg LLMConfig) *SingleStageLLM {
	return &SingleStageLLM{core: newLLMCore(cfg, "single_stage")}
}

func (p *SingleStageLLM) Name() string { return "single_stage" }

const singleStagePrompt = `You are a job-application email analyst. Decide whether the email concerns a job application the recipient made (confirmation, interview scheduling, rejection, offer). Respond with JSON only.

Respond with this exact JSON format:
{
  "is_job_related": true|false,
  "company": "company name or empty",
  "position": "job title or empty",
  "status": "applied|interview|declined|offer or empty"
}`

func (p *SingleStageLLM) Classify(ctx context.Context, in domain.EmailInput) (domain.RawOutput, error) {
	resp, err := p.core.completeJSON(ctx, singleStagePrompt, emailPrompt(in))
	if err != nil {
		return domain.RawOutput{}, err
	}
	a, err := parseLLMAnswer(resp)
	if err != nil {
		return domain.RawOutput{}, err
	}
	return domain.RawOutput{
		IsJobRelated: a.IsJobRelated,
		Company:      strings.TrimSpace(a.Company),
		Position:     strings.TrimSpace(a.Position),
		Status:       domain.ParseStatus(a.Status),
	}, nil
}

// TwoStageLLM gates with a cheap relevance call, then extracts fields
// only for job-related mail. Two short focused prompts beat one long
// one on noisy inboxes, which is why this is the top tier.
type TwoStageLLM struct {
	core *llmCore
}

func NewTwoStageLLM(cfg LLMConfig) *TwoStageLLM {
	return &TwoStageLLM{core: newLLMCore(cfg, "two_stage")}
}

func (p *TwoStageLLM) Name() string { return "two_stage" }

const gatePrompt = `You are a job-application email filter. Decide whether the email concerns a job application the recipient made (confirmation, interview scheduling, rejection, offer). Newsletters, job alerts, billing, and marketing are not job-related. Respond with JSON only.

Respond with this exact JSON format:
{"is_job_related": true|false}`

const extractPrompt = `You are a job-application email analyst. The email is known to concern a job application the recipient made. Extract the fields below. Respond with JSON only.

Respond with this exact JSON format:
{
  "company": "company name or empty",
  "position": "job title or empty",
  "status": "applied|interview|declined|offer or empty"
}`

func (p *TwoStageLLM) Classify(ctx context.Context, in domain.EmailInput) (domain.RawOutput, error) {
	resp, err := p.core.completeJSON(ctx, gatePrompt, emailPrompt(in))
	if err != nil {
		return domain.RawOutput{}, err
	}
	gate, err := parseLLMAnswer(resp)
	if err != nil {
		return domain.RawOutput{}, err
	}
	if !gate.IsJobRelated {
		return domain.RawOutput{IsJobRelated: false}, nil
	}

	resp, err = p.core.completeJSON(ctx, extractPrompt, emailPrompt(in))
	if err != nil {
		return domain.RawOutput{}, err
	}
	ext, err := parseLLMAnswer(resp)
	if err != nil {
		return domain.RawOutput{}, err
	}
	return domain.RawOutput{
		IsJobRelated: true,
		Company:      strings.TrimSpace(ext.Company),
		Position:     strings.TrimSpace(ext.Position),
		Status:       domain.ParseStatus(ext.Status),
	}, nil
}
