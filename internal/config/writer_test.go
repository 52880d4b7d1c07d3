package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/chillm/internal/adapter/registry"
	"github.com/thushan/chillm/internal/core/domain"
)

func TestParseScope(t *testing.T) {
	scope, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeLocal, scope)

	scope, err = ParseScope(" GLOBAL ")
	require.NoError(t, err)
	assert.Equal(t, ScopeGlobal, scope)

	_, err = ParseScope("system")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(8192), ParseValue("8192"))
	assert.Equal(t, 0.3, ParseValue("0.3"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, "ollama", ParseValue("ollama"))
	assert.Equal(t, []any{"a", "b"}, ParseValue(`["a","b"]`))
}

func TestSet_LocalRoundTrip(t *testing.T) {
	tree := newTestTree(t)
	opts := tree.options(nil)

	path, err := Set(opts, ScopeLocal, "provider.host", "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tree.work, ".chi_llm.json"), path)

	_, err = Set(opts, ScopeLocal, "provider.port", ParseValue("11500"))
	require.NoError(t, err)
	_, err = Set(opts, ScopeLocal, "default_model", "qwen3-1.7b")
	require.NoError(t, err)

	res, err := Resolve(opts)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", res.Config.Provider.Host)
	assert.Equal(t, 11500, res.Config.Provider.Port)
	assert.Equal(t, "qwen3-1.7b", res.Config.DefaultModel)

	source, _, _ := res.DefaultModelProvenance()
	assert.Equal(t, domain.SourceLocal, source)
}

func TestSet_KeepsYAMLFormat(t *testing.T) {
	tree := newTestTree(t)
	existing := writeFile(t, filepath.Join(tree.work, ".chi_llm.yaml"), "preferred_context: 2048\n")

	path, err := Set(tree.options(nil), ScopeLocal, "default_model", "phi3-mini")
	require.NoError(t, err)
	assert.Equal(t, existing, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(strings.TrimSpace(string(data)), "{"), "file should stay YAML")
	assert.Contains(t, string(data), "preferred_context: 2048")
	assert.Contains(t, string(data), "default_model: phi3-mini")
}

func TestSet_RefusesMalformedFile(t *testing.T) {
	tree := newTestTree(t)
	existing := writeFile(t, filepath.Join(tree.work, ".chi_llm.json"), `{"default_model": `)

	_, err := Set(tree.options(nil), ScopeLocal, "default_model", "x")
	require.Error(t, err)

	var ce *domain.ConfigError
	assert.ErrorAs(t, err, &ce)

	data, readErr := os.ReadFile(existing)
	require.NoError(t, readErr)
	assert.Equal(t, `{"default_model": `, string(data))
}

func TestSet_Global(t *testing.T) {
	tree := newTestTree(t)
	opts := tree.options(map[string]string{"CHI_LLM_ALLOW_GLOBAL": "1"})

	path, err := Set(opts, ScopeGlobal, "default_model", "phi3-mini")
	require.NoError(t, err)
	assert.Equal(t, GlobalConfigPath(tree.cache), path)

	res, err := Resolve(opts)
	require.NoError(t, err)
	assert.Equal(t, "phi3-mini", res.Config.DefaultModel)

	source, _, _ := res.DefaultModelProvenance()
	assert.Equal(t, domain.SourceGlobal, source)
}

func TestSetDefaultModel_ValidatesAgainstCatalogue(t *testing.T) {
	tree := newTestTree(t)
	opts := tree.options(nil)
	catalogue := registry.Builtin()

	_, err := SetDefaultModel(opts, ScopeLocal, "does-not-exist", catalogue)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	assert.NoFileExists(t, filepath.Join(tree.work, ".chi_llm.json"))

	_, err = SetDefaultModel(opts, ScopeLocal, "qwen3-1.7b", catalogue)
	require.NoError(t, err)

	res, err := Resolve(opts)
	require.NoError(t, err)
	assert.Equal(t, "qwen3-1.7b", res.Config.DefaultModel)
}

func TestSet_EmptyKey(t *testing.T) {
	_, err := Set(newTestTree(t).options(nil), ScopeLocal, "  ", "x")
	assert.Error(t, err)
}
