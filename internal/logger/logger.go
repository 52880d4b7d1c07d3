package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/util"
	"github.com/thushan/chillm/theme"
)

type Config struct {
	Writer     io.Writer // terminal output, stderr when nil
	Level      string
	LogDir     string
	Theme      string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	FileOutput bool
}

const DefaultLogOutputName = constants.LogFileName

// fileOnlyKey marks a context whose records skip the terminal.
type fileOnlyKey struct{}

func withFileOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, fileOnlyKey{}, true)
}

func isFileOnly(ctx context.Context) bool {
	v, _ := ctx.Value(fileOnlyKey{}).(bool)
	return v
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel maps a level name to slog; unknown names fall back to warn so a
// typo never floods stderr.
func ParseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return slog.LevelWarn
}

// New builds the process logger. Terminal output goes to stderr so generated text
// on stdout stays clean for pipes.
func New(cfg *Config) (*slog.Logger, func(), error) {
	level := ParseLevel(cfg.Level)
	out := cfg.Writer
	if out == nil {
		out = os.Stderr
	}
	terminal := terminalHandler(out, level, theme.GetTheme(cfg.Theme))

	if !cfg.FileOutput {
		return slog.New(terminal), func() {}, nil
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("log dir %s: %w", cfg.LogDir, err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, DefaultLogOutputName),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
	file := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level, ReplaceAttr: plainAttr})

	return slog.New(&teeHandler{terminal: terminal, file: file}), func() { _ = rotator.Close() }, nil
}

// terminalHandler is pterm's colourful handler on a colour-capable stderr and
// JSON lines everywhere else, including injected writers.
func terminalHandler(out io.Writer, level slog.Level, appTheme *theme.Theme) slog.Handler {
	if out != os.Stderr || !util.ShouldUseColors() {
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, ReplaceAttr: plainAttr})
	}

	plogger := pterm.DefaultLogger.
		WithLevel(ptermLevel(level)).
		WithWriter(out).
		WithFormatter(pterm.LogFormatterColorful).
		WithKeyStyles(map[string]pterm.Style{
			"level": *appTheme.Info,
			"msg":   *appTheme.Info,
			"time":  *appTheme.Muted,
		})
	return pterm.NewSlogHandler(plogger)
}

// plainAttr flattens values for JSON output: errors and arbitrary values become
// strings and styled model or provider names lose their colour codes.
func plainAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.String("timestamp", a.Value.Time().Format(time.RFC3339))
	}
	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); strings.IndexByte(s, '\x1b') >= 0 {
			return slog.String(a.Key, stripAnsiCodes(s))
		}
	case slog.KindDuration:
		return slog.String(a.Key, a.Value.Duration().String())
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, err.Error())
		}
		return slog.String(a.Key, fmt.Sprint(a.Value.Any()))
	}
	return a
}

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pterm.LogLevelTrace
	case level <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case level <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}

// teeHandler writes every record to the log file and all but file-only records
// to the terminal.
type teeHandler struct {
	terminal slog.Handler
	file     slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.terminal.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	if !isFileOnly(ctx) && h.terminal.Enabled(ctx, record.Level) {
		if err := h.terminal.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	if h.file.Enabled(ctx, record.Level) {
		return h.file.Handle(ctx, record)
	}
	return nil
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{terminal: h.terminal.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{terminal: h.terminal.WithGroup(name), file: h.file.WithGroup(name)}
}
