package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/logger"
)

const cliWaitDelay = 2 * time.Second

var cliInstallHints = map[domain.BackendType]string{
	domain.BackendClaudeCLI: "Claude CLI not found in PATH. Install it and sign in first",
	domain.BackendOpenAICLI: "OpenAI CLI not found in PATH. Install and run 'openai login'",
}

// CLI drives a vendor command-line tool, writing the prompt to its stdin.
type CLI struct {
	log     *logger.StyledLogger
	kind    domain.BackendType
	binary  string
	path    string
	args    []string
	timeout time.Duration
}

// NewCLI resolves the binary on PATH up front so a missing tool is a construction error.
func NewCLI(settings domain.ProviderSettings, deps Deps) (*CLI, error) {
	binary := settings.BinaryOrDefault()
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, domain.NewBackendError(string(settings.Type), binary, "init", 0, 0,
			fmt.Errorf("%s: %w", cliInstallHints[settings.Type], domain.ErrBinaryNotFound))
	}
	return &CLI{
		log:     deps.log(),
		kind:    settings.Type,
		binary:  binary,
		path:    path,
		args:    cliArgs(settings),
		timeout: settings.TimeoutOrDefault(),
	}, nil
}

// cliArgs: claude takes -m <model> before any extra args; for openai explicit
// args replace -m <model> entirely.
func cliArgs(settings domain.ProviderSettings) []string {
	var model []string
	if settings.Model != "" {
		model = []string{"-m", settings.Model}
	}
	if settings.Type == domain.BackendOpenAICLI && len(settings.Args) > 0 {
		return append([]string(nil), settings.Args...)
	}
	return append(model, settings.Args...)
}

func (b *CLI) Type() domain.BackendType { return b.kind }
func (b *CLI) Target() string           { return b.binary }

func (b *CLI) Generate(ctx context.Context, prompt string, _ domain.GenerateOptions) (string, error) {
	return b.run(ctx, "generate", prompt)
}

func (b *CLI) Chat(ctx context.Context, message string, history []domain.Turn, _ domain.GenerateOptions) (string, error) {
	return b.run(ctx, "chat", FlattenChat(message, history))
}

func (b *CLI) Complete(ctx context.Context, text string, _ domain.GenerateOptions) (string, error) {
	return b.run(ctx, "complete", text)
}

// FlattenChat renders history as alternating User:/Assistant: lines, ending on an
// open Assistant: turn for the model to continue.
func FlattenChat(message string, history []domain.Turn) string {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString("User: ")
		sb.WriteString(turn.User)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(turn.Assistant)
		sb.WriteString("\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(message)
	sb.WriteString("\nAssistant:")
	return sb.String()
}

func (b *CLI) run(ctx context.Context, op, input string) (string, error) {
	ctx, span := tracer.Start(ctx, "backend."+op, trace.WithAttributes(
		attribute.String("backend.type", string(b.kind)),
		attribute.String("backend.target", b.binary),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.path, b.args...)
	cmd.Stdin = strings.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = cliWaitDelay

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v: %w", b.timeout, context.DeadlineExceeded)
		} else {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				err = fmt.Errorf("exited with %d: %s: %w", exitErr.ExitCode(),
					truncate(strings.TrimSpace(stderr.String()), maxErrorSnippet), err)
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", domain.NewBackendError(string(b.kind), b.binary, op, 0, time.Since(start), err)
	}

	b.log.Debug("Backend call complete", "backend", b.kind, "op", op, "latency", time.Since(start))
	return strings.TrimSpace(stdout.String()), nil
}
