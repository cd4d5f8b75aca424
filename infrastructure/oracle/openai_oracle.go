// Package oracle provides automated comparators for unattended ranking
// runs. An oracle stands in for the human rater: the session controller
// feeds it pending pairs and awaits its verdicts.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/seizurelab/eegrank/internal/domain"
	"github.com/seizurelab/eegrank/internal/ports"
)

// DefaultModel is used when the configuration does not name one.
const DefaultModel = "gpt-4o-mini"

// ErrEmptyAPIKey indicates the oracle was configured without credentials.
var ErrEmptyAPIKey = errors.New("api key must not be empty")

// ErrNoResponseChoice indicates the chat completion returned no choices.
var ErrNoResponseChoice = errors.New("no response choices returned")

// ErrUnparsableVerdict indicates the model reply contained no verdict.
var ErrUnparsableVerdict = errors.New("no verdict found in model reply")

// chatCompleter is the slice of the OpenAI client the oracle needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the settings for the OpenAI-backed oracle.
type Config struct {
	APIKey string
	Model  string
	// RequestsPerMinute caps the request rate; zero or negative
	// disables the limit.
	RequestsPerMinute int
}

// OpenAIOracle implements ports.Oracle by asking a chat model which of
// two snippets looks more seizure-like, based on summary features of
// the waveforms rather than raw samples.
type OpenAIOracle struct {
	client  chatCompleter
	model   string
	limiter *rate.Limiter
}

var _ ports.Oracle = (*OpenAIOracle)(nil)

// NewOpenAI creates an oracle backed by the OpenAI chat completion API.
func NewOpenAI(cfg Config) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &OpenAIOracle{
		client:  openai.NewClient(cfg.APIKey),
		model:   model,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

const systemPrompt = `You are an EEG reviewer ranking 10-second snippets by how ` +
	`seizure-like their activity appears. You are given summary features of two ` +
	`snippets. Reply with exactly one word: "left" if the left snippet looks more ` +
	`seizure-like, "right" if the right one does, or "tie" if they are indistinguishable.`

// Compare asks the model for a verdict on the pair, waiting for the
// rate limiter first.
func (o *OpenAIOracle) Compare(ctx context.Context, left, right domain.Snippet) (domain.Verdict, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return domain.Tie, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(left, right)},
		},
		Temperature: 0,
	})
	if err != nil {
		return domain.Tie, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Tie, ErrNoResponseChoice
	}

	return parseVerdict(resp.Choices[0].Message.Content)
}

// buildPrompt renders the summary features of both snippets.
func buildPrompt(left, right domain.Snippet) string {
	var b strings.Builder
	b.WriteString("Left snippet:\n")
	describeSnippet(&b, left)
	b.WriteString("\nRight snippet:\n")
	describeSnippet(&b, right)
	b.WriteString("\nWhich snippet looks more seizure-like?")
	return b.String()
}

func describeSnippet(b *strings.Builder, s domain.Snippet) {
	fmt.Fprintf(b, "  source: %s (%.0fs-%.0fs)\n", s.SourceFile, s.StartTime, s.EndTime)
	fmt.Fprintf(b, "  channels: %d at %.0f Hz\n", len(s.Channels), s.SamplingRate)
	for ch, samples := range s.Data {
		min, max, mean := channelStats(samples)
		name := fmt.Sprintf("ch%d", ch)
		if ch < len(s.Channels) {
			name = s.Channels[ch]
		}
		fmt.Fprintf(b, "  %s: range [%.1f, %.1f] uV, mean %.1f uV\n", name, min, max, mean)
	}
}

func channelStats(samples []float64) (min, max, mean float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	min, max = samples[0], samples[0]
	var sum float64
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(samples))
}

// parseVerdict extracts left, right, or tie from a model reply. Replies
// are expected to be a single word but models occasionally wrap the
// answer in punctuation or a short sentence, so every word is tried.
func parseVerdict(reply string) (domain.Verdict, error) {
	for _, word := range strings.Fields(strings.ToLower(reply)) {
		word = strings.Trim(word, `."'!,:;`)
		if v, err := domain.ParseVerdict(word); err == nil {
			return v, nil
		}
	}
	return domain.Tie, fmt.Errorf("%w: %q", ErrUnparsableVerdict, reply)
}
