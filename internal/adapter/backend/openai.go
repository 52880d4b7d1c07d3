package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/logger"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI uses the chat completions endpoint for every operation.
type OpenAI struct {
	client  *openai.Client
	log     *logger.StyledLogger
	model   string
	baseURL string
	timeout time.Duration
}

func NewOpenAI(settings domain.ProviderSettings, deps Deps) (*OpenAI, error) {
	if err := requireAPIKey(settings); err != nil {
		return nil, err
	}
	if err := requireModel(settings); err != nil {
		return nil, err
	}
	return newOpenAIClient(settings, deps), nil
}

func newOpenAIClient(settings domain.ProviderSettings, deps Deps) *OpenAI {
	config := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		config.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	}
	if settings.OrgID != "" {
		config.OrgID = settings.OrgID
	}
	config.HTTPClient = deps.client()

	return &OpenAI{
		client:  openai.NewClientWithConfig(config),
		log:     deps.log(),
		model:   settings.Model,
		baseURL: config.BaseURL,
		timeout: settings.TimeoutOrDefault(),
	}
}

func (b *OpenAI) Type() domain.BackendType { return domain.BackendOpenAI }

func (b *OpenAI) Target() string {
	if b.baseURL == "" {
		return defaultOpenAIBaseURL
	}
	return b.baseURL
}

func (b *OpenAI) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	return b.chat(ctx, "generate", buildMessages(prompt, nil), opts)
}

func (b *OpenAI) Chat(ctx context.Context, message string, history []domain.Turn, opts domain.GenerateOptions) (string, error) {
	return b.chat(ctx, "chat", buildMessages(message, history), opts)
}

func (b *OpenAI) Complete(ctx context.Context, text string, opts domain.GenerateOptions) (string, error) {
	return b.chat(ctx, "complete", buildMessages(text, nil), opts)
}

func (b *OpenAI) chat(ctx context.Context, op string, msgs []chatMessage, opts domain.GenerateOptions) (string, error) {
	temperature, maxTokens := remoteOptions(opts)
	req := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)),
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if opts.TopP != nil {
		req.TopP = float32(*opts.TopP)
	}
	if len(opts.Stop) > 0 {
		req.Stop = opts.Stop
	}

	ctx, span := b.span(ctx, op)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", b.fail(span, op, start, err)
	}
	if len(resp.Choices) == 0 {
		return "", b.fail(span, op, start, domain.ErrEmptyResponse)
	}
	b.log.Debug("Backend call complete",
		"backend", domain.BackendOpenAI,
		"op", op,
		"finish_reason", resp.Choices[0].FinishReason,
		"latency", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}

func (b *OpenAI) DiscoverModels(ctx context.Context) ([]string, error) {
	ctx, span := b.span(ctx, "discover")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	list, err := b.client.ListModels(ctx)
	if err != nil {
		return nil, b.fail(span, "discover", start, err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (b *OpenAI) span(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "backend."+op, trace.WithAttributes(
		attribute.String("backend.type", string(domain.BackendOpenAI)),
		attribute.String("backend.target", b.Target()),
		attribute.String("backend.model", b.model),
	))
}

// fail lifts go-openai's status-carrying errors into a BackendError.
func (b *OpenAI) fail(span trace.Span, op string, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %v: %w", b.timeout, err)
	}
	return domain.NewBackendError(string(domain.BackendOpenAI), b.Target(), op, status, time.Since(start), err)
}
