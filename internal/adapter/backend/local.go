package backend

import (
	"context"
	"strings"
	"time"

	"github.com/thushan/chillm/internal/adapter/registry"
	"github.com/thushan/chillm/internal/adapter/runtime"
	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
)

const (
	localRepeatPenalty = 1.1

	turnUser  = "<start_of_turn>user\n"
	turnModel = "<start_of_turn>model"
	turnEnd   = "<end_of_turn>\n"
)

var (
	generateStops = []string{"<end_of_turn>", "<eos>", "\n\n\n"}
	chatStops     = []string{"<end_of_turn>", "<eos>"}
)

// Predictor is the slice of *runtime.Handle the local backend needs.
type Predictor interface {
	Predict(ctx context.Context, prompt string, p runtime.Params) (string, error)
	ModelPath() string
}

// Local runs prompts through the process-wide loaded model using the
// instruction-turn template.
type Local struct {
	handle    Predictor
	defaults  domain.GenerateOptions
	ggufPaths []string
}

// NewLocal wraps handle. defaults come from configuration (model.* and
// preferred_max_tokens) and sit under per-call options.
func NewLocal(handle Predictor, defaults domain.GenerateOptions, ggufPaths []string) *Local {
	return &Local{handle: handle, defaults: defaults, ggufPaths: ggufPaths}
}

func (b *Local) Type() domain.BackendType { return domain.BackendLocal }
func (b *Local) Target() string           { return b.handle.ModelPath() }

func (b *Local) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	return b.predict(ctx, "generate", GemmaPrompt(prompt), b.params(opts, generateStops))
}

func (b *Local) Chat(ctx context.Context, message string, history []domain.Turn, opts domain.GenerateOptions) (string, error) {
	return b.predict(ctx, "chat", GemmaChat(message, history), b.params(opts, chatStops))
}

// Complete feeds text through untemplated with a short default budget.
func (b *Local) Complete(ctx context.Context, text string, opts domain.GenerateOptions) (string, error) {
	if opts.MaxTokens == nil {
		opts.MaxTokens = domain.Int(constants.DefaultCompleteMaxTokens)
	}
	p := b.params(opts, nil)
	p.Stop = opts.Stop
	return b.predict(ctx, "complete", text, p)
}

// DiscoverModels lists *.gguf files under the configured discovery paths.
func (b *Local) DiscoverModels(_ context.Context) ([]string, error) {
	files, _ := registry.ScanGGUF(b.ggufPaths)
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (b *Local) params(opts domain.GenerateOptions, stops []string) runtime.Params {
	opts = opts.Merge(b.defaults)
	p := runtime.Params{
		Temperature:   opts.TemperatureOr(constants.DefaultTemperature),
		MaxTokens:     opts.MaxTokensOr(constants.DefaultPreferredMaxTokens),
		TopP:          opts.TopPOr(constants.DefaultTopP),
		TopK:          opts.TopKOr(constants.DefaultTopK),
		RepeatPenalty: localRepeatPenalty,
		Stop:          stops,
	}
	if opts.RepeatPenalty != nil {
		p.RepeatPenalty = *opts.RepeatPenalty
	}
	if len(opts.Stop) > 0 {
		p.Stop = append(append([]string(nil), stops...), opts.Stop...)
	}
	return p
}

func (b *Local) predict(ctx context.Context, op, prompt string, p runtime.Params) (string, error) {
	start := time.Now()
	out, err := b.handle.Predict(ctx, prompt, p)
	if err != nil {
		return "", domain.NewBackendError(string(domain.BackendLocal), b.Target(), op, 0, time.Since(start), err)
	}
	return strings.TrimSpace(out), nil
}

func GemmaPrompt(prompt string) string {
	return turnUser + prompt + turnEnd + turnModel
}

func GemmaChat(message string, history []domain.Turn) string {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString(turnUser)
		sb.WriteString(turn.User)
		sb.WriteString(turnEnd)
		sb.WriteString(turnModel)
		sb.WriteString("\n")
		sb.WriteString(turn.Assistant)
		sb.WriteString(turnEnd)
	}
	sb.WriteString(GemmaPrompt(message))
	return sb.String()
}
