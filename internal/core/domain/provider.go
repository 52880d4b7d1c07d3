package domain

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// BackendType is the closed set of backends a provider block can name.
type BackendType string

const (
	BackendLocal     BackendType = "local"
	BackendLMStudio  BackendType = "lmstudio"
	BackendOllama    BackendType = "ollama"
	BackendOpenAI    BackendType = "openai"
	BackendAnthropic BackendType = "anthropic"
	BackendClaudeCLI BackendType = "claude-cli"
	BackendOpenAICLI BackendType = "openai-cli"

	DefaultProviderHost     = "127.0.0.1"
	DefaultProviderTimeout  = 30 * time.Second
	DefaultProfilePriority  = 100
	DefaultLMStudioPort     = 1234
	DefaultOllamaPort       = 11434
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
)

var backendAliases = map[string]BackendType{
	"local":      BackendLocal,
	"lmstudio":   BackendLMStudio,
	"lm-studio":  BackendLMStudio,
	"lm_studio":  BackendLMStudio,
	"ollama":     BackendOllama,
	"openai":     BackendOpenAI,
	"anthropic":  BackendAnthropic,
	"claude-cli": BackendClaudeCLI,
	"claude_cli": BackendClaudeCLI,
	"openai-cli": BackendOpenAICLI,
	"openai_cli": BackendOpenAICLI,
}

// ParseBackendType normalises a configured type name; unknown names are returned as-is with ok=false.
func ParseBackendType(s string) (BackendType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := backendAliases[key]; ok {
		return t, true
	}
	return BackendType(key), false
}

func (t BackendType) Known() bool {
	_, ok := backendAliases[string(t)]
	return ok
}

func (t BackendType) IsRemote() bool {
	return t != "" && t != BackendLocal
}

func (t BackendType) DefaultPort() int {
	switch t {
	case BackendLMStudio:
		return DefaultLMStudioPort
	case BackendOllama:
		return DefaultOllamaPort
	default:
		return 0
	}
}

// ProviderSettings is the `provider` block: a type plus whichever connection fields that type uses.
type ProviderSettings struct {
	Type          BackendType   `json:"type,omitempty" yaml:"type,omitempty"`
	Host          string        `json:"host,omitempty" yaml:"host,omitempty"`
	Port          int           `json:"port,omitempty" yaml:"port,omitempty"`
	APIKey        string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model         string        `json:"model,omitempty" yaml:"model,omitempty"`
	ModelPath     string        `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	BaseURL       string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	OrgID         string        `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	Binary        string        `json:"binary,omitempty" yaml:"binary,omitempty"`
	Args          []string      `json:"args,omitempty" yaml:"args,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ContextWindow int           `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	NGPULayers    int           `json:"n_gpu_layers,omitempty" yaml:"n_gpu_layers,omitempty"`
	OutputTokens  int           `json:"output_tokens,omitempty" yaml:"output_tokens,omitempty"`
}

func (p ProviderSettings) HostOrDefault() string {
	if p.Host == "" {
		return DefaultProviderHost
	}
	return p.Host
}

func (p ProviderSettings) PortOrDefault() int {
	if p.Port > 0 {
		return p.Port
	}
	return p.Type.DefaultPort()
}

// BinaryOrDefault is the executable a CLI backend runs.
func (p ProviderSettings) BinaryOrDefault() string {
	if p.Binary != "" {
		return p.Binary
	}
	switch p.Type {
	case BackendClaudeCLI:
		return "claude"
	case BackendOpenAICLI:
		return "openai"
	}
	return ""
}

func (p ProviderSettings) TimeoutOrDefault() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultProviderTimeout
}

// Target describes where calls go, for error messages and logs.
func (p ProviderSettings) Target() string {
	switch p.Type {
	case BackendClaudeCLI, BackendOpenAICLI:
		return p.BinaryOrDefault()
	case BackendLocal:
		if p.ModelPath != "" {
			return p.ModelPath
		}
		return p.Model
	}
	if p.BaseURL != "" {
		return p.BaseURL
	}
	if strings.HasPrefix(p.Host, "http://") || strings.HasPrefix(p.Host, "https://") {
		return p.Host
	}
	if port := p.PortOrDefault(); port > 0 {
		return net.JoinHostPort(p.HostOrDefault(), strconv.Itoa(port))
	}
	return p.HostOrDefault()
}

// ProviderProfile is one routable candidate.
type ProviderProfile struct {
	ProviderSettings `yaml:",inline"`
	Name             string   `json:"name" yaml:"name"`
	Tags             []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Priority         int      `json:"priority" yaml:"priority"`
}

// MatchesAny reports whether the profile carries at least one of tags; no tags matches everything.
func (p ProviderProfile) MatchesAny(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range p.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}
