package backend

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
)

// Anthropic calls the Messages API directly.
type Anthropic struct {
	http  *httpBackend
	model string
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        *float64      `json:"top_p,omitempty"`
	TopK        *int          `json:"top_k,omitempty"`
	Stop        []string      `json:"stop_sequences,omitempty"`
}

func NewAnthropic(settings domain.ProviderSettings, deps Deps) (*Anthropic, error) {
	if err := requireAPIKey(settings); err != nil {
		return nil, err
	}
	if err := requireModel(settings); err != nil {
		return nil, err
	}
	return &Anthropic{http: newAnthropicHTTP(settings, deps), model: settings.Model}, nil
}

func newAnthropicHTTP(settings domain.ProviderSettings, deps Deps) *httpBackend {
	h := newHTTPBackend(settings, deps, domain.DefaultAnthropicBaseURL)
	h.headers[constants.AnthropicKeyHeader] = settings.APIKey
	h.headers[constants.AnthropicVersionHeader] = constants.AnthropicVersion
	return h
}

func (b *Anthropic) Type() domain.BackendType { return domain.BackendAnthropic }
func (b *Anthropic) Target() string           { return b.http.target() }

func (b *Anthropic) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	return b.messages(ctx, "generate", buildMessages(prompt, nil), opts)
}

func (b *Anthropic) Chat(ctx context.Context, message string, history []domain.Turn, opts domain.GenerateOptions) (string, error) {
	return b.messages(ctx, "chat", buildMessages(message, history), opts)
}

func (b *Anthropic) Complete(ctx context.Context, text string, opts domain.GenerateOptions) (string, error) {
	return b.messages(ctx, "complete", buildMessages(text, nil), opts)
}

func (b *Anthropic) messages(ctx context.Context, op string, msgs []chatMessage, opts domain.GenerateOptions) (string, error) {
	temperature, maxTokens := remoteOptions(opts)
	data, err := b.http.post(ctx, op, constants.PathV1Messages, anthropicRequest{
		Model:       b.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        opts.TopP,
		TopK:        opts.TopK,
		Stop:        opts.Stop,
	})
	if err != nil {
		return "", err
	}
	content := gjson.GetBytes(data, "content")
	if !content.IsArray() {
		return "", b.http.unexpected(op, data)
	}
	var parts []string
	content.ForEach(func(_, block gjson.Result) bool {
		if t := block.Get("type").String(); t == "" || t == "text" {
			parts = append(parts, block.Get("text").String())
		}
		return true
	})
	return strings.Join(parts, ""), nil
}

func (b *Anthropic) DiscoverModels(ctx context.Context) ([]string, error) {
	return listOpenAIStyleModels(ctx, b.http)
}
