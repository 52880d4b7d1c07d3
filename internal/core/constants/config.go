package constants

const (
	ConfigBaseName       = ".chi_llm"
	GlobalConfigFileName = "model_config.json"
	CacheDirName         = "chi_llm"
	LedgerFileName       = "downloads.db"
	LogFileName          = "chillm.log"

	ModeProjectFirst = "project-first"
	ModeEnvFirst     = "env-first"

	KeyDefaultModel       = "default_model"
	KeyPreferredContext   = "preferred_context"
	KeyPreferredMaxTokens = "preferred_max_tokens"
	KeyProvider           = "provider"
	KeyProviderProfiles   = "provider_profiles"
	KeyResolutionMode     = "resolution_mode"
	KeyAllowGlobal        = "allow_global"
	KeyDownloadedModels   = "downloaded_models"
	KeyGGUFPaths          = "auto_discovery_gguf_paths"
	KeyGeneration         = "model"

	DefaultPreferredContext   = 8192
	DefaultPreferredMaxTokens = 4096
	DefaultTemperature        = 0.7
	DefaultTopP               = 0.95
	DefaultTopK               = 40
	DefaultCompleteMaxTokens  = 100

	DefaultModelID = "gemma-270m"
)

// ConfigExtensions is the probe order inside a directory.
var ConfigExtensions = []string{".json", ".yaml", ".yml", ".toml"}
