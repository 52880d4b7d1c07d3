package backend

import (
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"

	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
	"github.com/thushan/chillm/internal/logger"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 256

	MaxResponseSize = 10 * 1024 * 1024
	maxErrorSnippet = 200

	DefaultMaxIdleConnections        = 10
	DefaultMaxIdleConnectionsPerHost = 5
	DefaultIdleConnTimeout           = 60 * time.Second
)

var (
	json   = jsoniter.ConfigCompatibleWithStandardLibrary
	tracer = otel.Tracer("chillm/backend")
)

// LocalFactory builds the in-process backend. Local models need the selector,
// the fetcher and the runtime, none of which this package owns.
type LocalFactory func(settings domain.ProviderSettings) (ports.Backend, error)

// Deps are shared collaborators handed to every adapter. The zero value works for
// everything except local backends.
type Deps struct {
	HTTPClient *http.Client
	Logger     *logger.StyledLogger
	Local      LocalFactory
	GGUFPaths  []string
}

func (d Deps) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return DefaultHTTPClient()
}

func (d Deps) log() *logger.StyledLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return logger.NewDiscard()
}

// DefaultHTTPClient carries no client-level timeout; each call gets its own
// deadline from the provider's configured timeout.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        DefaultMaxIdleConnections,
			MaxIdleConnsPerHost: DefaultMaxIdleConnectionsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		},
	}
}

// New builds the adapter for settings.Type. Missing credentials or model ids
// fail here rather than on the first call.
func New(settings domain.ProviderSettings, deps Deps) (ports.Backend, error) {
	switch settings.Type {
	case domain.BackendLMStudio:
		return NewLMStudio(settings, deps)
	case domain.BackendOllama:
		return NewOllama(settings, deps)
	case domain.BackendOpenAI:
		return NewOpenAI(settings, deps)
	case domain.BackendAnthropic:
		return NewAnthropic(settings, deps)
	case domain.BackendClaudeCLI, domain.BackendOpenAICLI:
		return NewCLI(settings, deps)
	case domain.BackendLocal, "":
		if deps.Local == nil {
			return nil, fmt.Errorf("%w: local backend is not available here", domain.ErrUnknownBackend)
		}
		return deps.Local(settings)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, string(settings.Type))
	}
}

func requireModel(settings domain.ProviderSettings) error {
	if settings.Model == "" {
		return domain.NewConfigError("provider.model", string(settings.Type), "", domain.ErrMissingModel)
	}
	return nil
}

func requireAPIKey(settings domain.ProviderSettings) error {
	if settings.APIKey == "" {
		return domain.NewConfigError("provider.api_key", string(settings.Type), "", domain.ErrMissingCredential)
	}
	return nil
}

// remoteOptions fills the defaults remote backends use when the caller left them unset.
func remoteOptions(opts domain.GenerateOptions) (temperature float64, maxTokens int) {
	return opts.TemperatureOr(DefaultTemperature), opts.MaxTokensOr(DefaultMaxTokens)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildMessages(message string, history []domain.Turn) []chatMessage {
	msgs := make([]chatMessage, 0, len(history)*2+1)
	for _, turn := range history {
		msgs = append(msgs,
			chatMessage{Role: "user", Content: turn.User},
			chatMessage{Role: "assistant", Content: turn.Assistant})
	}
	return append(msgs, chatMessage{Role: "user", Content: message})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
