package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/env"
)

// Options controls where the resolver looks. Zero values mean the process defaults.
type Options struct {
	Logger *slog.Logger
	Env    env.LookupFunc

	// ConfigPath is an explicitly supplied file; it outranks every discovered file.
	ConfigPath string
	WorkDir    string
	CacheDir   string

	// SearchRoot bounds the upward project-file walk (inclusive). Empty walks to the filesystem root.
	SearchRoot string

	// FallbackModel is the registry's built-in default, reported with reason "legacy default".
	FallbackModel string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Env == nil {
		o.Env = env.OS()
	}
	if o.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			o.WorkDir = wd
		}
	}
	if o.CacheDir == "" {
		o.CacheDir = DefaultCacheDir(o.Env)
	}
	if o.FallbackModel == "" {
		o.FallbackModel = constants.DefaultModelID
	}
	return o
}

// DefaultCacheDir is CHI_LLM_CACHE_DIR or ~/.cache/chi_llm.
func DefaultCacheDir(lookup env.LookupFunc) string {
	if dir, ok := lookup.Value(constants.EnvCacheDir); ok {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", constants.CacheDirName)
	}
	return filepath.Join(os.TempDir(), constants.CacheDirName)
}

// GlobalConfigPath is the per-user file consulted only when allow_global is set.
func GlobalConfigPath(cacheDir string) string {
	return filepath.Join(cacheDir, constants.GlobalConfigFileName)
}

// DefaultValues are the lowest-precedence layer.
func DefaultValues() map[string]any {
	return map[string]any{
		constants.KeyPreferredContext:   constants.DefaultPreferredContext,
		constants.KeyPreferredMaxTokens: constants.DefaultPreferredMaxTokens,
		constants.KeyDownloadedModels:   []any{},
		constants.KeyGGUFPaths:          []any{},
		constants.KeyProvider:           map[string]any{},
		constants.KeyGeneration: map[string]any{
			"temperature": constants.DefaultTemperature,
			"max_tokens":  constants.DefaultPreferredMaxTokens,
			"top_p":       constants.DefaultTopP,
			"top_k":       constants.DefaultTopK,
		},
	}
}
