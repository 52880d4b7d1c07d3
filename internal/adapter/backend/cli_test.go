package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	goruntime "runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/chillm/internal/core/domain"
)

// fakeCLI puts an executable shell script named name on PATH.
func fakeCLI(t *testing.T, name, script string) {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestFlattenChat(t *testing.T) {
	got := FlattenChat("and you?", []domain.Turn{
		{User: "hi", Assistant: "hello"},
		{User: "how are you", Assistant: "good"},
	})
	want := "User: hi\nAssistant: hello\nUser: how are you\nAssistant: good\nUser: and you?\nAssistant:"
	assert.Equal(t, want, got)

	assert.Equal(t, "User: solo\nAssistant:", FlattenChat("solo", nil))
}

func TestCLIArgs(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.ProviderSettings
		want     []string
	}{
		{"claude model", domain.ProviderSettings{Type: domain.BackendClaudeCLI, Model: "sonnet"}, []string{"-m", "sonnet"}},
		{"claude model and args", domain.ProviderSettings{Type: domain.BackendClaudeCLI, Model: "sonnet", Args: []string{"-p"}}, []string{"-m", "sonnet", "-p"}},
		{"claude bare", domain.ProviderSettings{Type: domain.BackendClaudeCLI}, nil},
		{"openai model", domain.ProviderSettings{Type: domain.BackendOpenAICLI, Model: "gpt-4o"}, []string{"-m", "gpt-4o"}},
		{"openai args replace model", domain.ProviderSettings{Type: domain.BackendOpenAICLI, Model: "gpt-4o", Args: []string{"api", "chat"}}, []string{"api", "chat"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cliArgs(tt.settings))
		})
	}
}

func TestCLI_GenerateAndChat(t *testing.T) {
	fakeCLI(t, "claude", `echo "args: $*"; cat`)

	b, err := New(domain.ProviderSettings{Type: domain.BackendClaudeCLI, Model: "sonnet"}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, "claude", b.Target())

	out, err := b.Generate(context.Background(), "hello", domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "args: -m sonnet\nhello", out)

	out, err = b.Chat(context.Background(), "next", []domain.Turn{{User: "a", Assistant: "b"}}, domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "args: -m sonnet\nUser: a\nAssistant: b\nUser: next\nAssistant:", out)
}

func TestCLI_CustomBinary(t *testing.T) {
	fakeCLI(t, "my-openai", `echo "$*"`)

	b, err := NewCLI(domain.ProviderSettings{Type: domain.BackendOpenAICLI, Binary: "my-openai", Args: []string{"api", "chat"}}, Deps{})
	require.NoError(t, err)
	out, err := b.Complete(context.Background(), "ignored", domain.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "api chat", out)
}

func TestCLI_NonZeroExit(t *testing.T) {
	fakeCLI(t, "claude", `echo "not logged in" >&2; exit 2`)

	b, err := NewCLI(domain.ProviderSettings{Type: domain.BackendClaudeCLI}, Deps{})
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), "x", domain.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
	assert.Contains(t, err.Error(), "exited with 2")
	assert.True(t, domain.IsTransient(err))

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "claude-cli", be.Backend)
}

func TestCLI_Timeout(t *testing.T) {
	fakeCLI(t, "claude", `exec sleep 5`)

	b, err := NewCLI(domain.ProviderSettings{Type: domain.BackendClaudeCLI, Timeout: 50 * time.Millisecond}, Deps{})
	require.NoError(t, err)

	start := time.Now()
	_, err = b.Generate(context.Background(), "x", domain.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCLI_MissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := NewCLI(domain.ProviderSettings{Type: domain.BackendClaudeCLI}, Deps{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBinaryNotFound)
	assert.Contains(t, err.Error(), "Claude CLI not found in PATH")

	_, err = NewCLI(domain.ProviderSettings{Type: domain.BackendOpenAICLI}, Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai login")
}
