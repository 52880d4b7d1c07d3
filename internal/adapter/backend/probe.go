package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
)

const (
	ProbeStatusOK          = "ok"
	ProbeStatusUnreachable = "unreachable"
	ProbeStatusHTTPError   = "http_error"
	ProbeStatusError       = "error"

	probePrompt = "ping"
)

// ProbeResult is a one-shot health check of a configured backend.
type ProbeResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Models    int    `json:"models,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	OK        bool   `json:"ok"`
}

// Probe lists models where the backend can, otherwise it runs a one-token generate.
func Probe(ctx context.Context, b ports.Backend) ProbeResult {
	start := time.Now()
	var (
		err    error
		models int
	)
	if d, ok := b.(ports.ModelDiscoverer); ok && b.Type() != domain.BackendLocal {
		var ids []string
		ids, err = d.DiscoverModels(ctx)
		models = len(ids)
	} else {
		_, err = b.Generate(ctx, probePrompt, domain.GenerateOptions{MaxTokens: domain.Int(1)})
	}

	res := ProbeResult{LatencyMS: time.Since(start).Milliseconds(), Models: models}
	if err == nil {
		res.OK = true
		res.Status = ProbeStatusOK
		if models > 0 {
			res.Message = fmt.Sprintf("%d models available", models)
		}
		return res
	}

	res.Message = err.Error()
	var be *domain.BackendError
	switch {
	case errors.As(err, &be) && be.StatusCode > 0:
		res.Status = ProbeStatusHTTPError
	case domain.IsTransient(err):
		res.Status = ProbeStatusUnreachable
	default:
		res.Status = ProbeStatusError
	}
	return res
}

// Discover lists the models a provider offers without requiring a model id in
// settings. CLI backends cannot list models.
func Discover(ctx context.Context, settings domain.ProviderSettings, deps Deps) ([]string, error) {
	var d ports.ModelDiscoverer
	switch settings.Type {
	case domain.BackendLMStudio:
		d = &LMStudio{http: newHTTPBackend(settings, deps, "")}
	case domain.BackendOllama:
		d = &Ollama{http: newHTTPBackend(settings, deps, "")}
	case domain.BackendAnthropic:
		if err := requireAPIKey(settings); err != nil {
			return nil, err
		}
		d = &Anthropic{http: newAnthropicHTTP(settings, deps)}
	case domain.BackendOpenAI:
		if err := requireAPIKey(settings); err != nil {
			return nil, err
		}
		d = newOpenAIClient(settings, deps)
	case domain.BackendLocal, "":
		d = &Local{ggufPaths: deps.GGUFPaths}
	case domain.BackendClaudeCLI, domain.BackendOpenAICLI:
		return nil, fmt.Errorf("%s does not support model discovery", settings.Type)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, string(settings.Type))
	}
	return d.DiscoverModels(ctx)
}
