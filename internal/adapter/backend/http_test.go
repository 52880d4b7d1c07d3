package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
)

type capturedRequest struct {
	Header http.Header
	Body   map[string]any
	Method string
	Path   string
}

// jsonServer answers every request with status and body, recording what it saw.
func jsonServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		req := capturedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
		if len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &req.Body))
		}
		seen = append(seen, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func settingsFor(kind domain.BackendType, srv *httptest.Server) domain.ProviderSettings {
	return domain.ProviderSettings{Type: kind, BaseURL: srv.URL, Model: "test-model", APIKey: "sk-test"}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.ProviderSettings
		want     error
	}{
		{"lmstudio without model", domain.ProviderSettings{Type: domain.BackendLMStudio}, domain.ErrMissingModel},
		{"ollama without model", domain.ProviderSettings{Type: domain.BackendOllama}, domain.ErrMissingModel},
		{"anthropic without key", domain.ProviderSettings{Type: domain.BackendAnthropic, Model: "claude"}, domain.ErrMissingCredential},
		{"anthropic without model", domain.ProviderSettings{Type: domain.BackendAnthropic, APIKey: "k"}, domain.ErrMissingModel},
		{"openai without key", domain.ProviderSettings{Type: domain.BackendOpenAI, Model: "gpt-4o"}, domain.ErrMissingCredential},
		{"unknown type", domain.ProviderSettings{Type: "carrier-pigeon"}, domain.ErrUnknownBackend},
		{"local without factory", domain.ProviderSettings{Type: domain.BackendLocal}, domain.ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.settings, Deps{})
			assert.Nil(t, b)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew_MissingModelIsConfigError(t *testing.T) {
	_, err := New(domain.ProviderSettings{Type: domain.BackendLMStudio}, Deps{})
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "provider.model", ce.Key)
}

func TestNew_DispatchesByType(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, `{}`)
	for _, kind := range []domain.BackendType{domain.BackendLMStudio, domain.BackendOllama, domain.BackendOpenAI, domain.BackendAnthropic} {
		b, err := New(settingsFor(kind, srv), Deps{})
		require.NoError(t, err, kind)
		assert.Equal(t, kind, b.Type())
	}

	called := false
	b, err := New(domain.ProviderSettings{Type: domain.BackendLocal}, Deps{Local: func(domain.ProviderSettings) (ports.Backend, error) {
		called = true
		return NewLocal(&fakePredictor{}, domain.GenerateOptions{}, nil), nil
	}})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, domain.BackendLocal, b.Type())
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		settings domain.ProviderSettings
		want     string
	}{
		{domain.ProviderSettings{Type: domain.BackendLMStudio}, "http://127.0.0.1:1234"},
		{domain.ProviderSettings{Type: domain.BackendOllama, Host: "gpu-box"}, "http://gpu-box:11434"},
		{domain.ProviderSettings{Type: domain.BackendOllama, Host: "gpu-box", Port: 9999}, "http://gpu-box:9999"},
		{domain.ProviderSettings{Type: domain.BackendOllama, Host: "https://ollama.lan/"}, "https://ollama.lan"},
		{domain.ProviderSettings{Type: domain.BackendLMStudio, BaseURL: "http://proxy/lm/"}, "http://proxy/lm"},
	}
	for _, tt := range tests {
		if got := baseURL(tt.settings, ""); got != tt.want {
			t.Errorf("baseURL(%+v) = %q, expected %q", tt.settings, got, tt.want)
		}
	}

	assert.Equal(t, domain.DefaultAnthropicBaseURL, baseURL(domain.ProviderSettings{Type: domain.BackendAnthropic}, domain.DefaultAnthropicBaseURL))
}

func TestLMStudio_Generate(t *testing.T) {
	srv, seen := jsonServer(t, http.StatusOK, `{"choices":[{"text":"hello there"}]}`)
	b, err := NewLMStudio(settingsFor(domain.BackendLMStudio, srv), Deps{})
	require.NoError(t, err)

	out, err := b.Generate(context.Background(), "say hi", domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/completions", req.Path)
	assert.Equal(t, "test-model", req.Body["model"])
	assert.Equal(t, "say hi", req.Body["prompt"])
	assert.Equal(t, 0.7, req.Body["temperature"])
	assert.Equal(t, float64(256), req.Body["max_tokens"])
	assert.Contains(t, req.Header.Get("User-Agent"), "chillm/")
}

func TestLMStudio_GenerateFallsBackToMessageContent(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, `{"choices":[{"message":{"content":"chat shaped"}}]}`)
	b, err := NewLMStudio(settingsFor(domain.BackendLMStudio, srv), Deps{})
	require.NoError(t, err)

	out, err := b.Generate(context.Background(), "x", domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "chat shaped", out)
}

func TestLMStudio_EmptyVersusMissing(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, `{"choices":[{"text":""}]}`)
	b, err := NewLMStudio(settingsFor(domain.BackendLMStudio, srv), Deps{})
	require.NoError(t, err)
	out, err := b.Generate(context.Background(), "x", domain.GenerateOptions{})
	require.NoError(t, err, "an empty completion is still a success")
	assert.Empty(t, out)

	srv2, _ := jsonServer(t, http.StatusOK, `{"object":"list"}`)
	b2, err := NewLMStudio(settingsFor(domain.BackendLMStudio, srv2), Deps{})
	require.NoError(t, err)
	_, err = b2.Generate(context.Background(), "x", domain.GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyResponse)
}

func TestLMStudio_ChatAndOptions(t *testing.T) {
	srv, seen := jsonServer(t, http.StatusOK, `{"choices":[{"message":{"content":"fine"}}]}`)
	b, err := NewLMStudio(settingsFor(domain.BackendLMStudio, srv), Deps{})
	require.NoError(t, err)

	out, err := b.Chat(context.Background(), "and now?", []domain.Turn{{User: "hi", Assistant: "hello"}},
		domain.GenerateOptions{Temperature: domain.Float64(0.1), MaxTokens: domain.Int(50)})
	require.NoError(t, err)
	assert.Equal(t, "fine", out)

	req := (*seen)[0]
	assert.Equal(t, "/v1/chat/completions", req.Path)
	assert.Equal(t, 0.1, req.Body["temperature"])
	assert.Equal(t, float64(50), req.Body["max_tokens"])
	msgs := req.Body["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, map[string]any{"role": "assistant", "content": "hello"}, msgs[1])
	assert.Equal(t, map[string]any{"role": "user", "content": "and now?"}, msgs[2])
}

func TestLMStudio_HTTPError(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusInternalServerError, `model crashed`)
	b, err := NewLMStudio(settingsFor(domain.BackendLMStudio, srv), Deps{})
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), "x", domain.GenerateOptions{})
	require.Error(t, err)

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.StatusCode)
	assert.Equal(t, "lmstudio", be.Backend)
	assert.Equal(t, srv.URL, be.Target)
	assert.Contains(t, err.Error(), "model crashed")
	assert.True(t, domain.IsTransient(err))
}

func TestHTTPBackend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	settings := settingsFor(domain.BackendOllama, srv)
	settings.Timeout = 50 * time.Millisecond
	b, err := NewOllama(settings, Deps{})
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), "x", domain.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.True(t, domain.IsTransient(err))
}

func TestOllama_GenerateChatDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Method == http.MethodPost {
			data, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(data, &body))
			assert.Equal(t, false, body["stream"])
			opts := body["options"].(map[string]any)
			assert.Equal(t, float64(256), opts["num_predict"])
		}
		switch r.URL.Path {
		case "/api/generate":
			assert.Equal(t, "why is the sky blue", body["prompt"])
			_, _ = io.WriteString(w, `{"model":"llama3","response":"rayleigh","done":true}`)
		case "/api/chat":
			assert.Len(t, body["messages"], 1)
			_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"hey"},"done":true}`)
		case "/api/tags":
			_, _ = io.WriteString(w, `{"models":[{"name":"llama3:8b"},{"name":"qwen3:1.7b"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b, err := NewOllama(settingsFor(domain.BackendOllama, srv), Deps{})
	require.NoError(t, err)
	ctx := context.Background()

	out, err := b.Generate(ctx, "why is the sky blue", domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "rayleigh", out)

	out, err = b.Chat(ctx, "hi", nil, domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hey", out)

	models, err := b.DiscoverModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:8b", "qwen3:1.7b"}, models)
}

func TestAnthropic_Messages(t *testing.T) {
	srv, seen := jsonServer(t, http.StatusOK,
		`{"content":[{"type":"text","text":"Hello"},{"type":"tool_use","id":"x"},{"type":"text","text":" world"}]}`)
	b, err := NewAnthropic(settingsFor(domain.BackendAnthropic, srv), Deps{})
	require.NoError(t, err)

	out, err := b.Generate(context.Background(), "greet", domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", out)

	req := (*seen)[0]
	assert.Equal(t, "/v1/messages", req.Path)
	assert.Equal(t, "sk-test", req.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
	assert.Equal(t, float64(256), req.Body["max_tokens"])
}

func TestAnthropic_Discover(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, `{"data":[{"id":"claude-3-5-haiku"},{"name":"claude-named"}]}`)
	models, err := Discover(context.Background(), settingsFor(domain.BackendAnthropic, srv), Deps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-3-5-haiku", "claude-named"}, models)
}

func TestOpenAI_Chat(t *testing.T) {
	srv, seen := jsonServer(t, http.StatusOK,
		`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`)
	settings := settingsFor(domain.BackendOpenAI, srv)
	settings.BaseURL = srv.URL + "/v1"
	b, err := NewOpenAI(settings, Deps{})
	require.NoError(t, err)

	out, err := b.Chat(context.Background(), "ping", []domain.Turn{{User: "a", Assistant: "b"}}, domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	req := (*seen)[0]
	assert.Equal(t, "/v1/chat/completions", req.Path)
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "test-model", req.Body["model"])
	assert.Len(t, req.Body["messages"], 3)
}

func TestOpenAI_StatusCarriedIntoError(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"slow down","type":"rate_limit_error"}}`)
	settings := settingsFor(domain.BackendOpenAI, srv)
	settings.BaseURL = srv.URL + "/v1"
	b, err := NewOpenAI(settings, Deps{})
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), "x", domain.GenerateOptions{})
	require.Error(t, err)
	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusTooManyRequests, be.StatusCode)
	assert.Equal(t, "openai", be.Backend)
}

func TestOpenAI_Discover(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, `{"object":"list","data":[{"id":"gpt-4o-mini"},{"id":"gpt-4o"}]}`)
	settings := settingsFor(domain.BackendOpenAI, srv)
	settings.BaseURL = srv.URL + "/v1"
	settings.Model = ""

	models, err := Discover(context.Background(), settings, Deps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, models)
}

func TestDiscover_WithoutModel(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, `{"data":[{"id":"qwen2.5-7b-instruct"}]}`)
	models, err := Discover(context.Background(), domain.ProviderSettings{Type: domain.BackendLMStudio, BaseURL: srv.URL}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5-7b-instruct"}, models)

	_, err = Discover(context.Background(), domain.ProviderSettings{Type: domain.BackendClaudeCLI}, Deps{})
	assert.Error(t, err)
}

func TestProbe(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, `{"models":[{"name":"a"},{"name":"b"}]}`)
	b, err := NewOllama(settingsFor(domain.BackendOllama, srv), Deps{})
	require.NoError(t, err)

	res := Probe(context.Background(), b)
	assert.True(t, res.OK)
	assert.Equal(t, ProbeStatusOK, res.Status)
	assert.Equal(t, 2, res.Models)

	bad, _ := jsonServer(t, http.StatusServiceUnavailable, `loading`)
	b, err = NewOllama(settingsFor(domain.BackendOllama, bad), Deps{})
	require.NoError(t, err)
	res = Probe(context.Background(), b)
	assert.False(t, res.OK)
	assert.Equal(t, ProbeStatusHTTPError, res.Status)
	assert.True(t, strings.Contains(res.Message, "503"), res.Message)

	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	b, err = NewOllama(domain.ProviderSettings{Type: domain.BackendOllama, BaseURL: down.URL, Model: "m"}, Deps{})
	require.NoError(t, err)
	res = Probe(context.Background(), b)
	assert.False(t, res.OK)
	assert.Equal(t, ProbeStatusUnreachable, res.Status)
}
