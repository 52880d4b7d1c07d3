package config

import (
	"time"

	"github.com/spf13/cast"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
)

// Config is the typed view of the merged values.
type Config struct {
	Provider           domain.ProviderSettings  `json:"provider"`
	DefaultModel       string                   `json:"default_model,omitempty"`
	ResolutionMode     string                   `json:"resolution_mode"`
	ProviderProfiles   []domain.ProviderProfile `json:"provider_profiles,omitempty"`
	DownloadedModels   []string                 `json:"downloaded_models,omitempty"`
	GGUFPaths          []string                 `json:"auto_discovery_gguf_paths,omitempty"`
	Generation         GenerationConfig         `json:"model"`
	PreferredContext   int                      `json:"preferred_context"`
	PreferredMaxTokens int                      `json:"preferred_max_tokens"`
	AllowGlobal        bool                     `json:"allow_global"`
}

// GenerationConfig holds request defaults for generate calls. Temperature and
// TopP are nil only when no layer set them; 0 is a valid setting.
type GenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   int      `json:"max_tokens"`
	TopK        int      `json:"top_k"`
}

func (g GenerationConfig) Options() domain.GenerateOptions {
	opts := domain.GenerateOptions{}
	if g.Temperature != nil {
		opts.Temperature = domain.Float64(*g.Temperature)
	}
	if g.MaxTokens > 0 {
		opts.MaxTokens = domain.Int(g.MaxTokens)
	}
	if g.TopP != nil {
		opts.TopP = domain.Float64(*g.TopP)
	}
	if g.TopK > 0 {
		opts.TopK = domain.Int(g.TopK)
	}
	return opts
}

// decode reads already sanitised values, so type assertions here never need to coerce.
func decode(values map[string]any, mode string, allowGlobal bool) Config {
	cfg := Config{
		ResolutionMode: mode,
		AllowGlobal:    allowGlobal,
	}
	cfg.DefaultModel, _ = values[constants.KeyDefaultModel].(string)
	cfg.PreferredContext, _ = values[constants.KeyPreferredContext].(int)
	cfg.PreferredMaxTokens, _ = values[constants.KeyPreferredMaxTokens].(int)
	cfg.DownloadedModels = stringList(values[constants.KeyDownloadedModels])
	cfg.GGUFPaths = stringList(values[constants.KeyGGUFPaths])

	if m, ok := values[constants.KeyProvider].(map[string]any); ok {
		cfg.Provider = decodeProvider(m)
	}
	if list, ok := values[constants.KeyProviderProfiles].([]any); ok {
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			cfg.ProviderProfiles = append(cfg.ProviderProfiles, decodeProfile(m, i))
		}
	}
	if m, ok := values[constants.KeyGeneration].(map[string]any); ok {
		if v, ok := m["temperature"].(float64); ok {
			cfg.Generation.Temperature = &v
		}
		if v, ok := m["top_p"].(float64); ok {
			cfg.Generation.TopP = &v
		}
		cfg.Generation.MaxTokens, _ = m["max_tokens"].(int)
		cfg.Generation.TopK, _ = m["top_k"].(int)
	}
	if cfg.Generation.MaxTokens == 0 && cfg.PreferredMaxTokens > 0 {
		cfg.Generation.MaxTokens = cfg.PreferredMaxTokens
	}
	return cfg
}

func decodeProvider(m map[string]any) domain.ProviderSettings {
	p := domain.ProviderSettings{}
	if raw, ok := m["type"].(string); ok {
		p.Type, _ = domain.ParseBackendType(raw)
	}
	p.Host, _ = m["host"].(string)
	p.Port, _ = m["port"].(int)
	p.APIKey, _ = m["api_key"].(string)
	p.Model, _ = m["model"].(string)
	p.ModelPath, _ = m["model_path"].(string)
	p.BaseURL, _ = m["base_url"].(string)
	p.OrgID, _ = m["org_id"].(string)
	p.Binary, _ = m["binary"].(string)
	p.Args = stringList(m["args"])
	p.ContextWindow, _ = m["context_window"].(int)
	p.NGPULayers, _ = m["n_gpu_layers"].(int)
	p.OutputTokens, _ = m["output_tokens"].(int)
	if secs, ok := m["timeout"].(float64); ok && secs > 0 {
		p.Timeout = time.Duration(secs * float64(time.Second))
	}
	return p
}

func decodeProfile(m map[string]any, index int) domain.ProviderProfile {
	profile := domain.ProviderProfile{
		ProviderSettings: decodeProvider(m),
		Priority:         domain.DefaultProfilePriority,
	}
	profile.Name, _ = m["name"].(string)
	if profile.Name == "" {
		profile.Name = cast.ToString(index)
		if profile.Type != "" {
			profile.Name = string(profile.Type) + "-" + profile.Name
		}
	}
	if prio, ok := m["priority"].(int); ok {
		profile.Priority = prio
	}
	profile.Tags = stringList(m["tags"])
	return profile
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
