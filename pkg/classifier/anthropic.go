package classifier

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/plugmart/autobump/pkg/semver"
)

// DefaultModel is the model used for classification. The task is a one-word
// judgment over a bounded prompt, so the small fast model is the right
// default.
const DefaultModel = anthropic.ModelClaude3_5HaikuLatest

// DefaultMaxTokens caps the completion. The answer is one word; anything
// longer is already malformed.
const DefaultMaxTokens int64 = 16

const (
	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
)

// AnthropicClassifier asks Claude for the bump magnitude. The API credential
// is read from the environment by the SDK (ANTHROPIC_API_KEY); callers check
// for its presence before starting a run.
type AnthropicClassifier struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates a classifier backed by the Anthropic Messages API.
// Empty model selects DefaultModel; maxTokens <= 0 selects DefaultMaxTokens.
func NewAnthropic(model string, maxTokens int64) *AnthropicClassifier {
	resolved := DefaultModel
	if model != "" {
		resolved = anthropic.Model(model)
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicClassifier{
		client:    anthropic.NewClient(),
		model:     resolved,
		maxTokens: maxTokens,
	}
}

// Classify sends the constrained prompt and validates the one-word answer.
// Transient API failures are retried a few times with backoff; persistent
// failure or a malformed answer is returned as an error for the fallback
// decorator to absorb.
func (c *AnthropicClassifier) Classify(ctx context.Context, req Request) (semver.Magnitude, error) {
	prompt := buildPrompt(req)

	var answer string
	err := retry.Do(
		func() error {
			message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
				Model:     c.model,
				MaxTokens: c.maxTokens,
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
				},
			})
			if err != nil {
				return err
			}
			answer = textContent(message)
			return nil
		},
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", errors.Wrapf(err, "classification request for plugin %s failed", req.PluginName)
	}

	return parseAnswer(answer)
}

func textContent(message *anthropic.Message) string {
	var text string
	for _, block := range message.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += textBlock.Text
		}
	}
	return text
}
