package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

var (
	ErrModelNotFound     = errors.New("model not found in registry")
	ErrMissingCredential = errors.New("missing api key")
	ErrMissingModel      = errors.New("missing model")
	ErrBinaryNotFound    = errors.New("binary not found on PATH")
	ErrNoCandidates      = errors.New("no provider profiles matched")
	ErrUnknownBackend    = errors.New("unknown backend type")
	ErrEmptyResponse     = errors.New("backend returned no content")
)

// ConfigError is fatal at construction, it names the key and where it came from.
type ConfigError struct {
	Err    error
	Key    string
	Source string
	Path   string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Key != "" {
		b.WriteString(" for ")
		b.WriteString(e.Key)
	}
	if e.Source != "" {
		b.WriteString(" (source: ")
		b.WriteString(e.Source)
		if e.Path != "" {
			b.WriteString(", ")
			b.WriteString(e.Path)
		}
		b.WriteString(")")
	} else if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(fmt.Sprint(e.Err))
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type ModelNotFoundError struct {
	ID     string
	Source string
}

func (e *ModelNotFoundError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("model %q (from %s) not found in registry", e.ID, e.Source)
	}
	return fmt.Sprintf("model %q not found in registry", e.ID)
}

func (e *ModelNotFoundError) Unwrap() error {
	return ErrModelNotFound
}

// BackendError carries the backend kind and its connection target, host:port or binary name.
type BackendError struct {
	Err        error
	Backend    string
	Target     string
	Op         string
	StatusCode int
	Latency    time.Duration
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (%s): HTTP %d after %v: %v",
			e.Backend, e.Op, e.Target, e.StatusCode, e.Latency.Round(time.Millisecond), e.Err)
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Backend, e.Op, e.Target, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

type CatalogueError struct {
	Path   string
	Entry  string
	Reason string
	Err    error
}

func (e *CatalogueError) Error() string {
	msg := "invalid model catalogue"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Entry != "" {
		msg += fmt.Sprintf(" (entry %s)", e.Entry)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CatalogueError) Unwrap() error {
	return e.Err
}

// AttemptResult records the outcome of trying one provider profile.
type AttemptResult struct {
	Err      error
	Profile  string
	Type     string
	Latency  time.Duration
	Attempts int
}

func (a AttemptResult) OK() bool {
	return a.Err == nil
}

// RouterError is returned once every candidate has been tried and failed.
type RouterError struct {
	Op       string
	Tags     []string
	Attempts []AttemptResult
}

func (e *RouterError) Error() string {
	if len(e.Attempts) == 0 {
		if len(e.Tags) > 0 {
			return fmt.Sprintf("router %s: %v (tags: %s)", e.Op, ErrNoCandidates, strings.Join(e.Tags, ","))
		}
		return fmt.Sprintf("router %s: %v", e.Op, ErrNoCandidates)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s[%s]: %v", a.Profile, a.Type, a.Err))
	}
	return fmt.Sprintf("router %s: all %d providers failed: %s", e.Op, len(e.Attempts), strings.Join(parts, "; "))
}

func (e *RouterError) Unwrap() []error {
	if len(e.Attempts) == 0 {
		return []error{ErrNoCandidates}
	}
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

func NewConfigError(key, source, path string, err error) *ConfigError {
	return &ConfigError{
		Key:    key,
		Source: source,
		Path:   path,
		Err:    err,
	}
}

func NewBackendError(backend, target, op string, statusCode int, latency time.Duration, err error) *BackendError {
	return &BackendError{
		Backend:    backend,
		Target:     target,
		Op:         op,
		StatusCode: statusCode,
		Latency:    latency,
		Err:        err,
	}
}

func NewCatalogueError(path, entry, reason string, err error) *CatalogueError {
	return &CatalogueError{
		Path:   path,
		Entry:  entry,
		Reason: reason,
		Err:    err,
	}
}

// IsTransient reports whether err is the kind of failure another backend could recover from:
// timeouts, refused connections, non-2xx responses and non-zero exits.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return true
	}
	var be *BackendError
	if errors.As(err, &be) && be.StatusCode > 0 {
		return true
	}
	return false
}
