package selector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/chillm/internal/adapter/registry"
	"github.com/thushan/chillm/internal/config"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/env"
)

func resolve(t *testing.T, vars map[string]string) *config.Resolved {
	t.Helper()
	root := t.TempDir()
	res, err := config.Resolve(config.Options{
		WorkDir:    root,
		SearchRoot: root,
		CacheDir:   filepath.Join(root, "cache"),
		Env:        env.FromMap(vars),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	})
	require.NoError(t, err)
	return res
}

func TestSelect(t *testing.T) {
	catalogue := registry.Builtin()

	tests := []struct {
		name       string
		vars       map[string]string
		wantModel  string
		wantReason domain.DecisionReason
		wantSource domain.Source
		wantPath   bool
	}{
		{
			name:       "nothing configured",
			wantModel:  "gemma-270m",
			wantReason: domain.ReasonLegacyDefault,
			wantSource: domain.SourceDefault,
		},
		{
			name:       "explicit default from env",
			vars:       map[string]string{"CHI_LLM_MODEL": "phi3-mini"},
			wantModel:  "phi3-mini",
			wantReason: domain.ReasonExplicitDefault,
			wantSource: domain.SourceEnv,
		},
		{
			name:       "explicit default beats provider local model",
			vars:       map[string]string{"CHI_LLM_MODEL": "phi3-mini", "CHI_LLM_PROVIDER_TYPE": "local", "CHI_LLM_PROVIDER_MODEL": "qwen3-1.7b"},
			wantModel:  "phi3-mini",
			wantReason: domain.ReasonExplicitDefault,
			wantSource: domain.SourceEnv,
		},
		{
			name:       "provider local fallback",
			vars:       map[string]string{"CHI_LLM_PROVIDER_TYPE": "local", "CHI_LLM_PROVIDER_MODEL": "qwen3-1.7b"},
			wantModel:  "qwen3-1.7b",
			wantReason: domain.ReasonProviderLocalFallback,
			wantSource: domain.SourceEnv,
		},
		{
			name:       "provider local model given as a file",
			vars:       map[string]string{"CHI_LLM_PROVIDER_TYPE": "local", "CHI_LLM_PROVIDER_MODEL": "custom-q4.gguf"},
			wantModel:  "custom-q4.gguf",
			wantReason: domain.ReasonProviderLocalFallback,
			wantSource: domain.SourceEnv,
			wantPath:   true,
		},
		{
			name:       "provider model ignored for remote types",
			vars:       map[string]string{"CHI_LLM_PROVIDER_TYPE": "ollama", "CHI_LLM_PROVIDER_MODEL": "llama3"},
			wantModel:  "gemma-270m",
			wantReason: domain.ReasonLegacyDefault,
			wantSource: domain.SourceDefault,
		},
		{
			name:       "model path bypasses the catalogue",
			vars:       map[string]string{"CHI_LLM_MODEL": "no-such-model", "CHI_LLM_PROVIDER_MODEL_PATH": "/models/mine.gguf"},
			wantModel:  "/models/mine.gguf",
			wantReason: domain.ReasonModelPath,
			wantSource: domain.SourceEnv,
			wantPath:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := Select(resolve(t, tt.vars), catalogue)
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, decision.Model)
			assert.Equal(t, tt.wantReason, decision.Reason)
			assert.Equal(t, tt.wantSource, decision.Source)
			assert.Equal(t, tt.wantPath, decision.IsPath)
		})
	}
}

func TestSelect_UnknownExplicitIDIsFatal(t *testing.T) {
	res := resolve(t, map[string]string{"CHI_LLM_MODEL": "gemma-270n"})

	_, err := Select(res, registry.Builtin())
	require.Error(t, err)

	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "default_model", ce.Key)
	assert.True(t, errors.Is(err, domain.ErrModelNotFound))
	assert.Contains(t, err.Error(), "gemma-270n")
}

func TestSelect_UnknownProviderLocalIDIsFatal(t *testing.T) {
	res := resolve(t, map[string]string{"CHI_LLM_PROVIDER_TYPE": "local", "CHI_LLM_PROVIDER_MODEL": "mystery"})

	_, err := Select(res, registry.Builtin())
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
}

func TestSelect_Deterministic(t *testing.T) {
	res := resolve(t, map[string]string{"CHI_LLM_MODEL": "qwen3-1.7b"})
	catalogue := registry.Builtin()

	first, err := Select(res, catalogue)
	require.NoError(t, err)
	second, err := Select(res, catalogue)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

type fakeFetcher struct {
	err   error
	calls []string
	mu    sync.Mutex
}

func (f *fakeFetcher) Fetch(ctx context.Context, repo, filename, cacheDir string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, repo+"/"+filename)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(cacheDir, filename)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte("gguf"), 0o644)
}

type memLedger struct {
	ids map[string]bool
}

func (l *memLedger) IsDownloaded(ctx context.Context, id string) (bool, error) {
	return l.ids[id], nil
}

func (l *memLedger) MarkDownloaded(ctx context.Context, id string) error {
	l.ids[id] = true
	return nil
}

func (l *memLedger) List(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	return out, nil
}

func TestMaterialize_FetchesOnceAndRecords(t *testing.T) {
	cache := t.TempDir()
	fetcher := &fakeFetcher{}
	ledger := &memLedger{ids: map[string]bool{}}
	m := &Materializer{Catalogue: registry.Builtin(), Fetcher: fetcher, Ledger: ledger, CacheDir: cache}

	decision := domain.EffectiveModelDecision{Model: "gemma-270m", Reason: domain.ReasonLegacyDefault}

	path, err := m.Materialize(context.Background(), decision)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "gemma-3-270m-it-Q8_0.gguf"), path)
	assert.True(t, ledger.ids["gemma-270m"])

	again, err := m.Materialize(context.Background(), decision)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Len(t, fetcher.calls, 1, "a cached file is not fetched again")
}

func TestMaterialize_FetchFailure(t *testing.T) {
	m := &Materializer{
		Catalogue: registry.Builtin(),
		Fetcher:   &fakeFetcher{err: errors.New("offline")},
		CacheDir:  t.TempDir(),
	}

	_, err := m.Materialize(context.Background(), domain.EffectiveModelDecision{Model: "phi3-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phi3-mini")
	assert.Contains(t, err.Error(), "offline")
}

func TestMaterialize_DiscoveredFile(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "Phi-3-mini-4k-instruct-q4.gguf")
	require.NoError(t, os.WriteFile(local, []byte("gguf"), 0o644))

	fetcher := &fakeFetcher{}
	m := &Materializer{Catalogue: registry.Builtin(), Fetcher: fetcher, CacheDir: t.TempDir(), GGUFPaths: []string{dir}}

	path, err := m.Materialize(context.Background(), domain.EffectiveModelDecision{Model: "phi3-mini"})
	require.NoError(t, err)
	assert.Equal(t, local, path)
	assert.Empty(t, fetcher.calls)
}

func TestMaterialize_PathDecision(t *testing.T) {
	m := &Materializer{Catalogue: registry.Builtin()}

	_, err := m.Materialize(context.Background(), domain.EffectiveModelDecision{Model: "/nope/missing.gguf", IsPath: true})
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)

	file := filepath.Join(t.TempDir(), "mine.gguf")
	require.NoError(t, os.WriteFile(file, []byte("gguf"), 0o644))
	path, err := m.Materialize(context.Background(), domain.EffectiveModelDecision{Model: file, IsPath: true})
	require.NoError(t, err)
	assert.Equal(t, file, path)
}

func TestLooksLikePath(t *testing.T) {
	assert.True(t, LooksLikePath("model.GGUF"))
	assert.True(t, LooksLikePath("./models/x"))
	assert.False(t, LooksLikePath("qwen3-1.7b"))
}
