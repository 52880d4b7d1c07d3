package constants

const (
	EnvConfig         = "CHI_LLM_CONFIG"
	EnvModel          = "CHI_LLM_MODEL"
	EnvContext        = "CHI_LLM_CONTEXT"
	EnvMaxTokens      = "CHI_LLM_MAX_TOKENS"
	EnvResolutionMode = "CHI_LLM_RESOLUTION_MODE"
	EnvAllowGlobal    = "CHI_LLM_ALLOW_GLOBAL"
	EnvModelsYAML     = "CHI_LLM_MODELS_YAML"
	EnvGGUFPaths      = "CHI_LLM_GGUF_PATHS"
	EnvCacheDir       = "CHI_LLM_CACHE_DIR"
	EnvLogLevel       = "CHI_LLM_LOG_LEVEL"
	EnvLogDir         = "CHI_LLM_LOG_DIR"
	EnvForceColors    = "CHI_LLM_FORCE_COLORS"
	EnvLlamaBinary    = "CHI_LLM_LLAMA_BIN"

	EnvProviderType          = "CHI_LLM_PROVIDER_TYPE"
	EnvProviderHost          = "CHI_LLM_PROVIDER_HOST"
	EnvProviderPort          = "CHI_LLM_PROVIDER_PORT"
	EnvProviderAPIKey        = "CHI_LLM_PROVIDER_API_KEY"
	EnvProviderModel         = "CHI_LLM_PROVIDER_MODEL"
	EnvProviderModelPath     = "CHI_LLM_PROVIDER_MODEL_PATH"
	EnvProviderContextWindow = "CHI_LLM_PROVIDER_CONTEXT_WINDOW"
	EnvProviderContext       = "CHI_LLM_PROVIDER_CONTEXT"
	EnvProviderNGPULayers    = "CHI_LLM_PROVIDER_N_GPU_LAYERS"
	EnvProviderOutputTokens  = "CHI_LLM_PROVIDER_OUTPUT_TOKENS"
	EnvProviderTimeout       = "CHI_LLM_PROVIDER_TIMEOUT"
)
