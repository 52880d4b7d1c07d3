package backend

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
)

// Ollama talks to Ollama's native API with streaming disabled.
type Ollama struct {
	http  *httpBackend
	model string
}

type ollamaOptions struct {
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Temperature   float64  `json:"temperature"`
	NumPredict    int      `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Options ollamaOptions `json:"options"`
	Stream  bool          `json:"stream"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Options  ollamaOptions `json:"options"`
	Stream   bool          `json:"stream"`
}

func NewOllama(settings domain.ProviderSettings, deps Deps) (*Ollama, error) {
	if err := requireModel(settings); err != nil {
		return nil, err
	}
	return &Ollama{http: newHTTPBackend(settings, deps, ""), model: settings.Model}, nil
}

func (b *Ollama) Type() domain.BackendType { return domain.BackendOllama }
func (b *Ollama) Target() string           { return b.http.target() }

func toOllamaOptions(opts domain.GenerateOptions) ollamaOptions {
	temperature, maxTokens := remoteOptions(opts)
	return ollamaOptions{
		Temperature:   temperature,
		NumPredict:    maxTokens,
		TopP:          opts.TopP,
		TopK:          opts.TopK,
		RepeatPenalty: opts.RepeatPenalty,
		Stop:          opts.Stop,
	}
}

func (b *Ollama) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	data, err := b.http.post(ctx, "generate", constants.PathOllamaGenerate, ollamaGenerateRequest{
		Model:   b.model,
		Prompt:  prompt,
		Options: toOllamaOptions(opts),
	})
	if err != nil {
		return "", err
	}
	r := gjson.GetBytes(data, "response")
	if !r.Exists() {
		return "", b.http.unexpected("generate", data)
	}
	return r.String(), nil
}

func (b *Ollama) Chat(ctx context.Context, message string, history []domain.Turn, opts domain.GenerateOptions) (string, error) {
	data, err := b.http.post(ctx, "chat", constants.PathOllamaChat, ollamaChatRequest{
		Model:    b.model,
		Messages: buildMessages(message, history),
		Options:  toOllamaOptions(opts),
	})
	if err != nil {
		return "", err
	}
	r := gjson.GetBytes(data, "message.content")
	if !r.Exists() {
		return "", b.http.unexpected("chat", data)
	}
	return r.String(), nil
}

func (b *Ollama) Complete(ctx context.Context, text string, opts domain.GenerateOptions) (string, error) {
	return b.Generate(ctx, text, opts)
}

// DiscoverModels reads models[].name from /api/tags.
func (b *Ollama) DiscoverModels(ctx context.Context) ([]string, error) {
	data, err := b.http.get(ctx, "discover", constants.PathOllamaTags)
	if err != nil {
		return nil, err
	}
	models := gjson.GetBytes(data, "models")
	if !models.IsArray() {
		return nil, b.http.unexpected("discover", data)
	}
	var names []string
	for _, name := range gjson.GetBytes(data, "models.#.name").Array() {
		if s := name.String(); s != "" {
			names = append(names, s)
		}
	}
	return names, nil
}
