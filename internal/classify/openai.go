package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// systemPrompt fixes the classifier's contract: one JSON array, one element
// per input email, with an explicit discriminator and confidence.
const systemPrompt = `You are a personal finance email classifier. You receive a JSON array of emails, each with message_id and content.

For each email decide whether it describes a RECURRING SUBSCRIPTION payment or a ONE-TIME EXPENSE, and return a JSON array with exactly one object per input email. Each object has:
- type: "subscription" or "expense" (required)
- message_id: copied from the input (required)
- confidence: integer 0-100, your certainty in the classification (required)
- name: service or merchant name
- amount: numeric payment amount
- currency: ISO 4217 code, e.g. "USD"
- category: spending category, e.g. "streaming", "software", "shopping"

For subscriptions additionally:
- frequency: "WEEKLY", "MONTHLY" or "YEARLY"
- last_billed: ISO date of the most recent charge, if stated
- next_billing: ISO date of the next charge, if stated
- status: "ACTIVE" or "CANCELLED"

For expenses additionally:
- date: ISO date of the transaction, if stated
- description: short free-text summary
- receipt_id: order or receipt number, if stated

Return ONLY the JSON array, no prose.`

// Classifier submits a batch of email content to an external text
// classification service.
type Classifier interface {
	ClassifyBatch(ctx context.Context, items []BatchItem) ([]Result, error)
}

// OpenAIConfig holds classifier client settings.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAIClassifier implements Classifier with a chat completion call,
// guarded by a circuit breaker so a classifier outage fails fast instead
// of stalling every sync.
type OpenAIClassifier struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	cb        *gobreaker.CircuitBreaker
	log       zerolog.Logger
}

// NewOpenAIClassifier builds a classifier client.
func NewOpenAIClassifier(cfg OpenAIConfig, log zerolog.Logger) *OpenAIClassifier {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4000
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	cbSettings := gobreaker.Settings{
		Name:     "classifier",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	return &OpenAIClassifier{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		cb:        gobreaker.NewCircuitBreaker(cbSettings),
		log:       log,
	}
}

// ClassifyBatch submits the whole batch in one request and parses the
// response tolerantly. A failed call or unparseable shape surfaces as an
// error so the caller can log it distinctly from a genuinely empty result.
func (c *OpenAIClassifier) ClassifyBatch(ctx context.Context, items []BatchItem) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.cb.Execute(func() (any, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: string(payload)},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	results, err := ParseResults([]byte(out.(string)))
	if err != nil {
		return nil, err
	}
	return MatchByMessageID(results, items), nil
}
