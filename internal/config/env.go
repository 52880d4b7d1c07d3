package config

import (
	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/env"
)

var providerEnvKeys = []struct {
	name  string
	field string
}{
	{constants.EnvProviderType, "type"},
	{constants.EnvProviderHost, "host"},
	{constants.EnvProviderPort, "port"},
	{constants.EnvProviderAPIKey, "api_key"},
	{constants.EnvProviderModel, "model"},
	{constants.EnvProviderModelPath, "model_path"},
	{constants.EnvProviderContext, "context_window"},
	{constants.EnvProviderContextWindow, "context_window"},
	{constants.EnvProviderNGPULayers, "n_gpu_layers"},
	{constants.EnvProviderOutputTokens, "output_tokens"},
	{constants.EnvProviderTimeout, "timeout"},
}

// envLeafValues collects the narrow per-key overrides. Each variable sets only its
// own leaf, so CHI_LLM_PROVIDER_HOST alone keeps every other provider field.
func envLeafValues(lookup env.LookupFunc) map[string]any {
	raw := make(map[string]any)
	if v, ok := lookup.Value(constants.EnvModel); ok {
		raw[constants.KeyDefaultModel] = v
	}
	if v, ok := lookup.Value(constants.EnvContext); ok {
		raw[constants.KeyPreferredContext] = v
	}
	if v, ok := lookup.Value(constants.EnvMaxTokens); ok {
		raw[constants.KeyPreferredMaxTokens] = v
	}
	if v, ok := lookup.Value(constants.EnvGGUFPaths); ok {
		raw[constants.KeyGGUFPaths] = v
	}

	provider := make(map[string]any)
	for _, k := range providerEnvKeys {
		if v, ok := lookup.Value(k.name); ok {
			// later entries win, so _CONTEXT_WINDOW beats the _CONTEXT alias
			provider[k.field] = v
		}
	}
	if len(provider) > 0 {
		raw[constants.KeyProvider] = provider
	}
	return raw
}
