package backend

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
)

// LMStudio talks to LM Studio's OpenAI-compatible server.
type LMStudio struct {
	http  *httpBackend
	model string
}

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

func NewLMStudio(settings domain.ProviderSettings, deps Deps) (*LMStudio, error) {
	if err := requireModel(settings); err != nil {
		return nil, err
	}
	return &LMStudio{http: newHTTPBackend(settings, deps, ""), model: settings.Model}, nil
}

func (b *LMStudio) Type() domain.BackendType { return domain.BackendLMStudio }
func (b *LMStudio) Target() string           { return b.http.target() }

func (b *LMStudio) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	temperature, maxTokens := remoteOptions(opts)
	data, err := b.http.post(ctx, "generate", constants.PathV1Completions, completionRequest{
		Model:       b.model,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
	})
	if err != nil {
		return "", err
	}
	// some builds answer completions in chat shape
	for _, path := range []string{"choices.0.text", "choices.0.message.content"} {
		if r := gjson.GetBytes(data, path); r.Exists() {
			return r.String(), nil
		}
	}
	return "", b.http.unexpected("generate", data)
}

func (b *LMStudio) Chat(ctx context.Context, message string, history []domain.Turn, opts domain.GenerateOptions) (string, error) {
	temperature, maxTokens := remoteOptions(opts)
	data, err := b.http.post(ctx, "chat", constants.PathV1ChatCompletions, chatCompletionRequest{
		Model:       b.model,
		Messages:    buildMessages(message, history),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
	})
	if err != nil {
		return "", err
	}
	r := gjson.GetBytes(data, "choices.0.message.content")
	if !r.Exists() {
		return "", b.http.unexpected("chat", data)
	}
	return r.String(), nil
}

func (b *LMStudio) Complete(ctx context.Context, text string, opts domain.GenerateOptions) (string, error) {
	return b.Generate(ctx, text, opts)
}

func (b *LMStudio) DiscoverModels(ctx context.Context) ([]string, error) {
	return listOpenAIStyleModels(ctx, b.http)
}

// listOpenAIStyleModels reads data[].id from GET /v1/models.
func listOpenAIStyleModels(ctx context.Context, h *httpBackend) ([]string, error) {
	data, err := h.get(ctx, "discover", constants.PathV1Models)
	if err != nil {
		return nil, err
	}
	list := gjson.GetBytes(data, "data")
	if !list.IsArray() {
		return nil, h.unexpected("discover", data)
	}
	var ids []string
	list.ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		if id == "" {
			id = item.Get("name").String()
		}
		if id != "" {
			ids = append(ids, id)
		}
		return true
	})
	return ids, nil
}
