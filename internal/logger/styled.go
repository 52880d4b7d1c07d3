package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/pterm/pterm"

	"github.com/thushan/chillm/theme"
)

// StyledLogger wraps slog.Logger with theme-aware formatting. A nil Theme logs
// plain text, which is what tests and non-TTY output use.
type StyledLogger struct {
	logger *slog.Logger
	Theme  *theme.Theme
}

func NewStyledLogger(logger *slog.Logger, theme *theme.Theme) *StyledLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StyledLogger{
		logger: logger,
		Theme:  theme,
	}
}

// NewDiscard is a logger that drops everything.
func NewDiscard() *StyledLogger {
	return NewStyledLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})), nil)
}

func (sl *StyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *StyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *StyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *StyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *StyledLogger) style(s *pterm.Style, a ...any) string {
	if sl.Theme == nil || s == nil {
		return fmt.Sprint(a...)
	}
	return s.Sprint(a...)
}

func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	var counts *pterm.Style
	if sl.Theme != nil {
		counts = sl.Theme.Counts
	}
	styledMsg := fmt.Sprintf("%s %s", msg, sl.style(counts, "(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) backend(name string) string {
	if sl.Theme == nil {
		return name
	}
	return sl.style(sl.Theme.Backend, name)
}

func (sl *StyledLogger) InfoWithBackend(msg string, backend string, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s %s", msg, sl.backend(backend)), args...)
}

func (sl *StyledLogger) WarnWithBackend(msg string, backend string, args ...any) {
	sl.logger.Warn(fmt.Sprintf("%s %s", msg, sl.backend(backend)), args...)
}

func (sl *StyledLogger) ErrorWithBackend(msg string, backend string, args ...any) {
	sl.logger.Error(fmt.Sprintf("%s %s", msg, sl.backend(backend)), args...)
}

func (sl *StyledLogger) InfoWithModel(msg string, model string, args ...any) {
	styled := model
	if sl.Theme != nil {
		styled = sl.style(sl.Theme.Model, model)
	}
	sl.logger.Info(fmt.Sprintf("%s %s", msg, styled), args...)
}

func (sl *StyledLogger) WithRequestID(requestID string) *StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *StyledLogger) WithAttrs(attrs ...slog.Attr) *StyledLogger {
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}

	return &StyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	var appTheme *theme.Theme
	if cfg.Writer == nil {
		appTheme = theme.GetTheme(cfg.Theme)
	}
	styledLogger := NewStyledLogger(logger, appTheme)

	return logger, styledLogger, cleanup, nil
}

// LogContext separates user-facing from detailed logging context. Detailed args
// only reach the log file.
type LogContext struct {
	UserArgs     []any
	DetailedArgs []any
}

func (sl *StyledLogger) WarnWithContext(msg string, backend string, ctx LogContext) {
	sl.logger.Warn(fmt.Sprintf("%s %s", msg, sl.backend(backend)), ctx.UserArgs...)

	if len(ctx.DetailedArgs) > 0 {
		allArgs := make([]any, 0, len(ctx.UserArgs)+len(ctx.DetailedArgs)+2)
		allArgs = append(allArgs, "backend", backend)
		allArgs = append(allArgs, ctx.UserArgs...)
		allArgs = append(allArgs, ctx.DetailedArgs...)

		detailedCtx := withFileOnly(context.Background())
		sl.logger.WarnContext(detailedCtx, msg, allArgs...)
	}
}
