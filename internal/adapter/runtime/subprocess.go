package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/env"
)

const defaultLlamaBinary = "llama-cli"

// subprocessEngine runs llama.cpp's command-line tool once per request. It is
// the default engine so the module builds without cgo.
type subprocessEngine struct {
	binary string
	opts   LoadOptions
}

// LoadSubprocess checks the llama.cpp binary and model file up front so a bad
// setup fails at construction instead of on first use.
func LoadSubprocess(opts LoadOptions) (Engine, error) {
	binary := env.GetEnvOrDefault(constants.EnvLlamaBinary, defaultLlamaBinary)
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%s not found on PATH (install llama.cpp or set %s): %w",
			binary, constants.EnvLlamaBinary, err)
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, err
	}
	return &subprocessEngine{binary: resolved, opts: opts}, nil
}

func (e *subprocessEngine) args(prompt string, p Params) []string {
	args := []string{
		"-m", e.opts.ModelPath,
		"-p", prompt,
		"--no-display-prompt",
		"-no-cnv",
		"-n", strconv.Itoa(p.MaxTokens),
	}
	if e.opts.ContextSize > 0 {
		args = append(args, "-c", strconv.Itoa(e.opts.ContextSize))
	}
	if e.opts.GPULayers != 0 {
		args = append(args, "-ngl", strconv.Itoa(e.opts.GPULayers))
	}
	if e.opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.opts.Threads))
	}
	if p.Temperature > 0 {
		args = append(args, "--temp", strconv.FormatFloat(p.Temperature, 'f', -1, 64))
	}
	if p.TopP > 0 {
		args = append(args, "--top-p", strconv.FormatFloat(p.TopP, 'f', -1, 64))
	}
	if p.TopK > 0 {
		args = append(args, "--top-k", strconv.Itoa(p.TopK))
	}
	if p.RepeatPenalty > 0 {
		args = append(args, "--repeat-penalty", strconv.FormatFloat(p.RepeatPenalty, 'f', -1, 64))
	}
	for _, s := range p.Stop {
		args = append(args, "-r", s)
	}
	return args
}

func (e *subprocessEngine) Predict(ctx context.Context, prompt string, p Params) (string, error) {
	cmd := exec.CommandContext(ctx, e.binary, e.args(prompt, p)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s exited with %d: %s: %w", e.binary, exitErr.ExitCode(), Truncate(stderr.String(), 200), err)
		}
		return "", err
	}
	return CutAtStop(stdout.String(), p.Stop), nil
}

func (e *subprocessEngine) Close() error {
	return nil
}

// CutAtStop trims output at the first stop sequence, which the CLI echoes back.
func CutAtStop(out string, stops []string) string {
	cut := len(out)
	for _, s := range stops {
		if s == "" {
			continue
		}
		if i := strings.Index(out, s); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(out[:cut])
}

func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
