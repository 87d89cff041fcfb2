package groq

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Sampling is pinned; only the token ceiling is operator-tunable.
const (
	temperature      = 1.0
	topP             = 1.0
	DefaultMaxTokens = 256
)

// CompletionError wraps any upstream failure from the completion API. It is
// reported to the asking user, never raised as a webhook failure.
type CompletionError struct {
	Model string
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed for %s: %v", e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Client streams chat completions from Groq and hands back whole answers.
type Client struct {
	api       openai.Client
	maxTokens int64
}

type Option func(*settings)

type settings struct {
	baseURL    string
	httpClient *http.Client
	maxTokens  int64
}

// WithBaseURL points the client at a different OpenAI-compatible endpoint.
// Empty keeps the default.
func WithBaseURL(u string) Option {
	return func(s *settings) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client, typically to bound the
// request timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithMaxTokens caps the completion length. Non-positive keeps the default.
func WithMaxTokens(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

func New(apiKey string, opts ...Option) *Client {
	s := settings{baseURL: DefaultBaseURL, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&s)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(s.baseURL),
		// A failed completion is reported to the user, not retried.
		option.WithMaxRetries(0),
	}
	if s.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(s.httpClient))
	}

	return &Client{api: openai.NewClient(reqOpts...), maxTokens: s.maxTokens}
}

// Complete asks model the question and accumulates the streamed chunks into
// one whitespace-trimmed answer. An empty answer is a valid outcome.
func (c *Client) Complete(ctx context.Context, model, question string) (string, error) {
	stream := c.api.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(question),
		},
		Temperature:         openai.Float(temperature),
		TopP:                openai.Float(topP),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	defer stream.Close()

	var answer strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 {
			answer.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", &CompletionError{Model: model, Err: err}
	}

	return strings.TrimSpace(answer.String()), nil
}
