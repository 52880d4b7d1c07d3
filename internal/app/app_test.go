package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/chillm/internal/adapter/registry"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/env"
)

type harness struct {
	t     *testing.T
	root  string
	work  string
	cache string
	vars  map[string]string
	stdin string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		t:     t,
		root:  root,
		work:  filepath.Join(root, "proj"),
		cache: filepath.Join(root, "cache"),
		vars:  map[string]string{},
	}
	require.NoError(t, os.MkdirAll(h.work, 0o755))
	return h
}

// run executes one command on a fresh App, as the binary would.
func (h *harness) run(args ...string) (string, error) {
	out := &bytes.Buffer{}
	a := &App{
		startTime:  time.Now(),
		stdin:      strings.NewReader(h.stdin),
		stdout:     out,
		logOut:     io.Discard,
		env:        env.FromMap(h.vars),
		workDir:    h.work,
		cacheDir:   h.cache,
		searchRoot: h.root,
	}
	err := a.Execute(context.Background(), args)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "chillm %s", strings.Join(args, " "))
	return out
}

func (h *harness) config(body string) {
	h.t.Helper()
	require.NoError(h.t, os.WriteFile(filepath.Join(h.work, ".chi_llm.json"), []byte(body), 0o644))
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.UnmarshalFromString(out, &v), out)
	return v
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	info := decode[versionInfo](t, h.mustRun("version", "--json"))
	assert.Equal(t, "chillm", info.Name)
	assert.NotEmpty(t, info.Version)

	assert.Contains(t, h.mustRun("version"), "chillm")

	extended := decode[versionInfo](t, h.mustRun("version", "--extended", "--json"))
	assert.NotEmpty(t, extended.Build)
}

func TestModelsList(t *testing.T) {
	h := newHarness(t)
	defaultID := registry.Builtin().DefaultID()

	rows := decode[[]modelRow](t, h.mustRun("models", "list", "--json"))
	require.NotEmpty(t, rows)

	var found bool
	for _, r := range rows {
		if r.ID == defaultID {
			found = true
			assert.True(t, r.Default)
			assert.True(t, r.Current, "the catalogue default is current with no configuration")
			assert.False(t, r.Downloaded)
		}
	}
	assert.True(t, found, "default model %s missing from list", defaultID)

	table := h.mustRun("models", "list")
	assert.Contains(t, table, defaultID)

	matched := decode[[]modelRow](t, h.mustRun("models", "list", "--match", "qwen3-*", "--json"))
	require.Len(t, matched, 1)
	assert.Equal(t, "qwen3-1.7b", matched[0].ID)
}

func TestModelsList_DownloadedFromConfig(t *testing.T) {
	h := newHarness(t)
	defaultID := registry.Builtin().DefaultID()
	h.config(fmt.Sprintf(`{"downloaded_models": [%q]}`, defaultID))

	rows := decode[[]modelRow](t, h.mustRun("models", "list", "--downloaded", "--json"))
	require.Len(t, rows, 1)
	assert.Equal(t, defaultID, rows[0].ID)
}

func TestModelsSetAndCurrent(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("models", "set", "qwen3-1.7b")
	assert.Contains(t, out, filepath.Join(h.work, ".chi_llm.json"))

	decision := decode[domain.EffectiveModelDecision](t, h.mustRun("models", "current", "--json"))
	assert.Equal(t, "qwen3-1.7b", decision.Model)
	assert.Equal(t, domain.ReasonExplicitDefault, decision.Reason)
	assert.Equal(t, domain.SourceLocal, decision.Source)
}

func TestModelsSet_UnknownModel(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("models", "set", "not-a-model")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	assert.NoFileExists(t, filepath.Join(h.work, ".chi_llm.json"))
}

func TestModelsCurrent_UnknownExplicitModel(t *testing.T) {
	h := newHarness(t)
	h.vars["CHI_LLM_MODEL"] = "not-a-model"

	_, err := h.run("models", "current")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
}

func TestModelsRecommend(t *testing.T) {
	h := newHarness(t)

	rec := decode[recommendation](t, h.mustRun("models", "recommend", "--ram", "64", "--json"))
	assert.NotEmpty(t, rec.Model.ID)
	assert.Equal(t, 64.0, rec.RAMGB)
	assert.InDelta(t, 64*registry.RecommendSafetyMargin, rec.Budget, 0.001)
}

func TestConfigSetShow(t *testing.T) {
	h := newHarness(t)

	h.mustRun("config", "set", "provider.type", "ollama")
	h.mustRun("config", "set", "provider.port", "11500")
	h.mustRun("config", "set", "provider.api_key", "sk-secret")

	cfg := decode[map[string]any](t, h.mustRun("config", "show", "--json"))
	provider := cfg["provider"].(map[string]any)
	assert.Equal(t, "ollama", provider["type"])
	assert.Equal(t, 11500.0, provider["port"])
	assert.Equal(t, maskedSecret, provider["api_key"])

	yamlOut := h.mustRun("config", "show")
	assert.Contains(t, yamlOut, "port: 11500")
	assert.NotContains(t, yamlOut, "sk-secret")
}

func TestConfigSet_DefaultModelIsValidated(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("config", "set", "default_model", "nope")
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
}

func TestConfigExplain(t *testing.T) {
	h := newHarness(t)
	h.config(`{"default_model": "qwen3-1.7b"}`)

	ex := decode[map[string]any](t, h.mustRun("config", "explain", "--json"))
	assert.Equal(t, "qwen3-1.7b", ex["model"])
	assert.Equal(t, string(domain.ReasonExplicitDefault), ex["reason"])
	assert.Equal(t, string(domain.SourceLocal), ex["source"])

	assert.Contains(t, h.mustRun("config", "explain"), "qwen3-1.7b")
}

func TestConfigPath(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, filepath.Join(h.work, ".chi_llm.json")+"\n", h.mustRun("config", "path"))
}

func ollamaServer(t *testing.T, prompts *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = io.WriteString(w, `{"models":[{"name":"llama3:8b"},{"name":"qwen3:1.7b"}]}`)
		case "/api/generate":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if prompts != nil {
				*prompts = append(*prompts, fmt.Sprint(body["prompt"]))
			}
			_, _ = io.WriteString(w, `{"response":"from ollama"}`)
		case "/api/chat":
			var body struct {
				Messages []map[string]string `json:"messages"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = fmt.Fprintf(w, `{"message":{"role":"assistant","content":"turns=%d"}}`, len(body.Messages))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProvidersDiscover(t *testing.T) {
	srv := ollamaServer(t, nil)
	h := newHarness(t)

	out := h.mustRun("providers", "discover", "--type", "ollama", "--host", srv.URL)
	assert.Equal(t, "llama3:8b\nqwen3:1.7b\n", out)
}

func TestProvidersDiscover_UnknownType(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("providers", "discover", "--type", "bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestProvidersTest(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":"m"}]}`)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer down.Close()

	h := newHarness(t)
	h.config(fmt.Sprintf(`{"provider_profiles": [
		{"name": "up", "type": "lmstudio", "base_url": %q, "model": "m"},
		{"name": "down", "type": "lmstudio", "base_url": %q, "model": "m"}
	]}`, up.URL, down.URL))

	out, err := h.run("providers", "test", "--json")
	assert.ErrorIs(t, err, errProbeFailed)

	rows := decode[[]probeRow](t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "up", rows[0].Name)
	assert.True(t, rows[0].OK)
	assert.Equal(t, 1, rows[0].Models)
	assert.Equal(t, "down", rows[1].Name)
	assert.False(t, rows[1].OK)
	assert.Equal(t, "http_error", rows[1].Status)
}

func TestProvidersTest_NothingRemote(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("providers", "test")
	assert.Error(t, err)
}

func TestGenerate_SingleProvider(t *testing.T) {
	var prompts []string
	srv := ollamaServer(t, &prompts)
	h := newHarness(t)
	h.vars["CHI_LLM_PROVIDER_TYPE"] = "ollama"
	h.vars["CHI_LLM_PROVIDER_HOST"] = srv.URL
	h.vars["CHI_LLM_PROVIDER_MODEL"] = "llama3:8b"

	assert.Equal(t, "from ollama\n", h.mustRun("generate", "hello", "there"))

	h.stdin = "piped prompt\n"
	resp := decode[response](t, h.mustRun("generate", "--json"))
	assert.Equal(t, "from ollama", resp.Response)
	assert.Equal(t, domain.StateSingleProvider, resp.State)

	require.Len(t, prompts, 2)
	assert.Equal(t, "hello there", prompts[0])
	assert.Equal(t, "piped prompt", prompts[1])
}

func TestTextCommands_Templates(t *testing.T) {
	var prompts []string
	srv := ollamaServer(t, &prompts)
	h := newHarness(t)
	h.vars["CHI_LLM_PROVIDER_TYPE"] = "ollama"
	h.vars["CHI_LLM_PROVIDER_HOST"] = srv.URL
	h.vars["CHI_LLM_PROVIDER_MODEL"] = "llama3:8b"

	h.mustRun("classify", "--categories", "good,bad", "great stuff")
	h.mustRun("translate", "--to", "German", "hello")
	h.mustRun("summarize", "-s", "2", "a long story")

	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[0], "[good, bad]")
	assert.Contains(t, prompts[1], "to German")
	assert.Contains(t, prompts[2], "in 2 sentences")
}

func TestChat_KeepsHistory(t *testing.T) {
	srv := ollamaServer(t, nil)
	h := newHarness(t)
	h.vars["CHI_LLM_PROVIDER_TYPE"] = "ollama"
	h.vars["CHI_LLM_PROVIDER_HOST"] = srv.URL
	h.vars["CHI_LLM_PROVIDER_MODEL"] = "llama3:8b"
	h.stdin = "hi\n\nhow are you\n/bye\nnever sent\n"

	// each call carries prior turns as user+assistant pairs plus the new message
	assert.Equal(t, "turns=1\nturns=3\n", h.mustRun("chat"))
}

func TestClassify_RequiresCategories(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("classify", "text")
	assert.Error(t, err)
}

func TestGenerate_NoInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("generate")
	assert.ErrorIs(t, err, errNoInput)
}
