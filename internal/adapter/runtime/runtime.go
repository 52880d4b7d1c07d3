package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Params are request-time sampling settings. They never affect which handle is loaded.
type Params struct {
	Stop          []string
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	MaxTokens     int
	TopK          int
}

// LoadOptions are load-time settings. Only the first Acquire in a process uses them.
type LoadOptions struct {
	ModelPath   string
	ContextSize int
	GPULayers   int
	Threads     int
}

// Engine is a loaded local model. Implementations need not be re-entrant; Handle
// serialises every call.
type Engine interface {
	Predict(ctx context.Context, prompt string, p Params) (string, error)
	Close() error
}

type Loader func(opts LoadOptions) (Engine, error)

var ErrNotLoaded = errors.New("local runtime not loaded")

// Handle is the process-wide loaded model.
type Handle struct {
	engine   Engine
	loadedAt time.Time
	opts     LoadOptions
	mu       sync.Mutex
	calls    atomic.Int64
}

// Predict runs one inference. Concurrent callers queue on the handle's lock.
func (h *Handle) Predict(ctx context.Context, prompt string, p Params) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return "", ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.calls.Add(1)
	return h.engine.Predict(ctx, prompt, p)
}

func (h *Handle) ModelPath() string {
	return h.opts.ModelPath
}

func (h *Handle) LoadedAt() time.Time {
	return h.loadedAt
}

func (h *Handle) Calls() int64 {
	return h.calls.Load()
}

func (h *Handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return nil
	}
	err := h.engine.Close()
	h.engine = nil
	return err
}

var (
	globalMu sync.Mutex
	global   *Handle
	loads    atomic.Int64
)

// Acquire returns the process-wide handle, loading it with loader on first use.
// Later calls return the same handle whatever options they pass; reused reports
// whether that happened.
func Acquire(opts LoadOptions, loader Loader) (h *Handle, reused bool, err error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return global, true, nil
	}
	if opts.ModelPath == "" {
		return nil, false, errors.New("no model path to load")
	}
	if loader == nil {
		loader = DefaultLoader()
	}

	engine, err := loader(opts)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", opts.ModelPath, err)
	}
	loads.Add(1)
	global = &Handle{engine: engine, opts: opts, loadedAt: time.Now()}
	return global, false, nil
}

// Current is the loaded handle, or nil.
func Current() *Handle {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Loads counts how many times a model has been loaded in this process.
func Loads() int64 {
	return loads.Load()
}

// Reset unloads the handle. Tests call it between cases; a new Acquire loads again.
func Reset() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return nil
	}
	err := global.close()
	global = nil
	loads.Store(0)
	return err
}
