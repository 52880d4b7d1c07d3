package chillm

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/thushan/chillm/internal/adapter/backend"
	"github.com/thushan/chillm/internal/adapter/download"
	"github.com/thushan/chillm/internal/adapter/ledger"
	"github.com/thushan/chillm/internal/adapter/registry"
	"github.com/thushan/chillm/internal/adapter/router"
	"github.com/thushan/chillm/internal/adapter/runtime"
	"github.com/thushan/chillm/internal/adapter/selector"
	"github.com/thushan/chillm/internal/config"
	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
	"github.com/thushan/chillm/internal/env"
	"github.com/thushan/chillm/internal/logger"
)

// LLM is the entry object. Its dispatch path is chosen once in New and never
// changes; build a new LLM to switch backend.
type LLM struct {
	backend   ports.Backend
	router    *router.Router
	resolved  *config.Resolved
	catalogue *registry.Registry
	log       *logger.StyledLogger
	state     domain.FacadeState
	decision  domain.EffectiveModelDecision
	defaults  domain.GenerateOptions
	tags      []string
	mu        sync.Mutex
}

// New resolves configuration, picks a model or provider set and wires exactly
// one dispatch path. Configuration problems are returned here, never deferred to
// the first call.
func New(ctx context.Context, opts ...Option) (*LLM, error) {
	o := options{env: env.OS()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	log := logger.NewStyledLogger(o.logger, nil)

	catalogue, err := loadCatalogue(o.env)
	if err != nil {
		return nil, err
	}

	res, err := config.Resolve(config.Options{
		Logger:        o.logger,
		Env:           o.env,
		ConfigPath:    o.configPath,
		WorkDir:       o.workDir,
		CacheDir:      o.cacheDir,
		SearchRoot:    o.searchRoot,
		FallbackModel: catalogue.DefaultID(),
	})
	if err != nil {
		return nil, err
	}

	l := &LLM{
		resolved:  res,
		catalogue: catalogue,
		log:       log,
		state:     domain.StateUninitialized,
		defaults:  requestDefaults(res, o),
		tags:      o.tags,
	}
	w := &wiring{llm: l, opts: o}

	switch {
	case res.HasProfiles():
		l.state = domain.StateRouted
		var metrics *router.Metrics
		if o.registerer != nil {
			metrics = router.NewMetrics(o.registerer)
		}
		l.router = router.New(res.Config.ProviderProfiles, w.factory(ctx),
			router.WithLogger(log), router.WithMetrics(metrics))
		log.InfoWithCount("Routing across provider profiles", l.router.Len())

	case res.Config.Provider.Type.IsRemote():
		if l.decision, err = selector.Select(res, catalogue); err != nil {
			return nil, err
		}
		if l.backend, err = backend.New(res.Config.Provider, w.deps(ctx)); err != nil {
			return nil, err
		}
		l.state = domain.StateSingleProvider
		log.InfoWithBackend("Using provider", string(res.Config.Provider.Type), "target", l.backend.Target())

	default:
		if l.decision, err = w.decide(); err != nil {
			return nil, err
		}
		if l.backend, err = w.local(ctx, l.decision, res.Config.Provider); err != nil {
			return nil, err
		}
		l.state = domain.StateDirectLocal
	}
	return l, nil
}

func loadCatalogue(lookup env.LookupFunc) (*registry.Registry, error) {
	path, _ := lookup.Value(constants.EnvModelsYAML)
	return registry.LoadFile(path)
}

// requestDefaults layers constructor overrides over the configured model block.
func requestDefaults(res *config.Resolved, o options) domain.GenerateOptions {
	base := res.Config.Generation.Options()
	if _, _, explicit := res.Provenance(constants.KeyGeneration + ".max_tokens"); !explicit && res.Config.PreferredMaxTokens > 0 {
		base.MaxTokens = domain.Int(res.Config.PreferredMaxTokens)
	}
	return domain.GenerateOptions{Temperature: o.temperature, MaxTokens: o.maxTokens}.Merge(base)
}

func (l *LLM) State() State {
	return l.state
}

// Decision is the selector outcome; it is zero in the routed state.
func (l *LLM) Decision() Decision {
	return l.decision
}

func (l *LLM) Resolved() *config.Resolved {
	return l.resolved
}

func (l *LLM) Catalogue() *registry.Registry {
	return l.catalogue
}

// Backend is the single adapter in the direct-local and single-provider states.
func (l *LLM) Backend() ports.Backend {
	return l.backend
}

func (l *LLM) Router() *router.Router {
	return l.router
}

// Info is a diagnostic summary of how the LLM was wired.
type Info struct {
	Config   config.Explanation `json:"config"`
	State    State              `json:"state"`
	Backend  string             `json:"backend,omitempty"`
	Target   string             `json:"target,omitempty"`
	Decision Decision           `json:"decision"`
	Runtime  *RuntimeInfo       `json:"runtime,omitempty"`
	Profiles int                `json:"profiles,omitempty"`
}

// RuntimeInfo describes the process-wide local model when one is loaded.
type RuntimeInfo struct {
	LoadedAt  time.Time `json:"loaded_at"`
	ModelPath string    `json:"model_path"`
	Calls     int64     `json:"calls"`
	Loads     int64     `json:"loads"`
}

func (l *LLM) Explain() Info {
	info := Info{
		Config:   l.resolved.Explain(),
		State:    l.state,
		Decision: l.decision,
	}
	if l.backend != nil {
		info.Backend = string(l.backend.Type())
		info.Target = l.backend.Target()
	}
	if l.router != nil {
		info.Profiles = l.router.Len()
	}
	if l.state == StateDirectLocal {
		if h := runtime.Current(); h != nil {
			info.Runtime = &RuntimeInfo{
				LoadedAt:  h.LoadedAt(),
				ModelPath: h.ModelPath(),
				Calls:     h.Calls(),
				Loads:     runtime.Loads(),
			}
		}
	}
	return info
}

func (l *LLM) GenerateWith(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	opts = opts.Merge(l.defaults)
	if l.router != nil {
		return l.router.Generate(ctx, prompt, opts, tagsFrom(ctx, l.tags))
	}
	return l.backend.Generate(ctx, prompt, opts)
}

func (l *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	return l.GenerateWith(ctx, prompt, GenerateOptions{})
}

func (l *LLM) ChatWith(ctx context.Context, message string, history []Turn, opts GenerateOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	opts = opts.Merge(l.defaults)
	if l.router != nil {
		return l.router.Chat(ctx, message, history, opts, tagsFrom(ctx, l.tags))
	}
	return l.backend.Chat(ctx, message, history, opts)
}

func (l *LLM) Chat(ctx context.Context, message string, history []Turn) (string, error) {
	return l.ChatWith(ctx, message, history, GenerateOptions{})
}

// CompleteWith continues text as-is. Only explicit options apply; the configured
// request defaults are left to the backend, which keeps completions short.
func (l *LLM) CompleteWith(ctx context.Context, text string, opts GenerateOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.router != nil {
		return l.router.Complete(ctx, text, opts, tagsFrom(ctx, l.tags))
	}
	return l.backend.Complete(ctx, text, opts)
}

func (l *LLM) Complete(ctx context.Context, text string) (string, error) {
	return l.CompleteWith(ctx, text, GenerateOptions{})
}

// wiring builds backends for New; routed profiles of type local reuse it lazily.
type wiring struct {
	llm  *LLM
	opts options
}

func (w *wiring) deps(ctx context.Context) backend.Deps {
	// routed profiles build their local backend long after New returns
	ctx = context.WithoutCancel(ctx)
	return backend.Deps{
		HTTPClient: w.opts.httpClient,
		Logger:     w.llm.log,
		GGUFPaths:  w.llm.resolved.Config.GGUFPaths,
		Local: func(settings domain.ProviderSettings) (ports.Backend, error) {
			decision, err := w.decideFor(settings)
			if err != nil {
				return nil, err
			}
			return w.local(ctx, decision, settings)
		},
	}
}

func (w *wiring) factory(ctx context.Context) router.Factory {
	deps := w.deps(ctx)
	return func(settings domain.ProviderSettings) (ports.Backend, error) {
		return backend.New(settings, deps)
	}
}

// decide runs the selector, with WithModel taking precedence over configuration.
func (w *wiring) decide() (domain.EffectiveModelDecision, error) {
	if id := w.opts.model; id != "" {
		decision := domain.EffectiveModelDecision{Model: id, Reason: domain.ReasonExplicitDefault, Source: domain.SourceCustom}
		if selector.LooksLikePath(id) {
			decision.Reason, decision.IsPath = domain.ReasonModelPath, true
			return decision, nil
		}
		if _, err := w.llm.catalogue.Lookup(id); err != nil {
			return decision, domain.NewConfigError("model", string(domain.SourceCustom), "",
				&domain.ModelNotFoundError{ID: id, Source: "constructor"})
		}
		return decision, nil
	}
	return selector.Select(w.llm.resolved, w.llm.catalogue)
}

// decideFor picks the model for a local provider profile: its own model_path or
// model when set, otherwise the same decision as the top-level configuration.
func (w *wiring) decideFor(settings domain.ProviderSettings) (domain.EffectiveModelDecision, error) {
	switch {
	case settings.ModelPath != "":
		return domain.EffectiveModelDecision{Model: settings.ModelPath, Reason: domain.ReasonModelPath, IsPath: true}, nil
	case settings.Model != "":
		decision := domain.EffectiveModelDecision{Model: settings.Model, Reason: domain.ReasonProviderLocalFallback}
		if _, err := w.llm.catalogue.Lookup(settings.Model); err != nil {
			if !selector.LooksLikePath(settings.Model) {
				return decision, err
			}
			decision.IsPath = true
		}
		return decision, nil
	}
	return w.decide()
}

// local attaches to the process-wide runtime. Only the instance that loads it
// materialises a model file; later ones reuse the handle without fetching.
func (w *wiring) local(ctx context.Context, decision domain.EffectiveModelDecision, settings domain.ProviderSettings) (ports.Backend, error) {
	res := w.llm.resolved
	log := w.llm.log

	if handle := runtime.Current(); handle != nil {
		if want := w.requestedFile(decision); want != "" && filepath.Base(handle.ModelPath()) != want {
			log.Warn("Local runtime already holds another model, reusing it",
				"loaded", handle.ModelPath(), "requested", decision.Model)
		}
		return backend.NewLocal(handle, w.llm.defaults, res.Config.GGUFPaths), nil
	}

	m := &selector.Materializer{
		Catalogue: w.llm.catalogue,
		Fetcher:   w.fetcher(),
		Logger:    log,
		CacheDir:  res.CacheDir,
		GGUFPaths: res.Config.GGUFPaths,
	}
	if l, err := ledger.Open(filepath.Join(res.CacheDir, constants.LedgerFileName), res.Config.DownloadedModels); err != nil {
		log.Warn("Download ledger unavailable", "error", err)
	} else {
		defer l.Close()
		m.Ledger = l
	}

	path, err := m.Materialize(ctx, decision)
	if err != nil {
		return nil, err
	}

	load := w.loadOptions(decision, settings, path)
	handle, reused, err := runtime.Acquire(load, w.opts.loader)
	if err != nil {
		return nil, err
	}
	if reused && handle.ModelPath() != path {
		log.Warn("Local runtime already holds another model, reusing it",
			"loaded", handle.ModelPath(), "requested", path)
	} else if !reused {
		log.InfoWithModel("Loaded local model", decision.Model, "path", path, "context", load.ContextSize)
	}
	return backend.NewLocal(handle, w.llm.defaults, res.Config.GGUFPaths), nil
}

// requestedFile is the file name the decision would load, or "" when unknown.
func (w *wiring) requestedFile(decision domain.EffectiveModelDecision) string {
	if decision.IsPath {
		return filepath.Base(decision.Model)
	}
	desc, err := w.llm.catalogue.Lookup(decision.Model)
	if err != nil {
		return ""
	}
	return desc.Filename
}

func (w *wiring) loadOptions(decision domain.EffectiveModelDecision, settings domain.ProviderSettings, path string) runtime.LoadOptions {
	load := runtime.LoadOptions{
		ModelPath:   path,
		ContextSize: w.llm.resolved.Config.PreferredContext,
		GPULayers:   settings.NGPULayers,
	}
	if !decision.IsPath {
		if desc, err := w.llm.catalogue.Lookup(decision.Model); err == nil {
			if desc.ContextWindow > 0 && (load.ContextSize <= 0 || desc.ContextWindow < load.ContextSize) {
				load.ContextSize = desc.ContextWindow
			}
			if load.GPULayers == 0 {
				load.GPULayers = desc.NGPULayers
			}
		}
	}
	if settings.ContextWindow > 0 {
		load.ContextSize = settings.ContextWindow
	}
	return load
}

func (w *wiring) fetcher() ports.Fetcher {
	if w.opts.fetcher != nil {
		return w.opts.fetcher
	}
	dl := []download.Option{download.WithLogger(w.llm.log)}
	if w.opts.httpClient != nil {
		dl = append(dl, download.WithHTTPClient(w.opts.httpClient))
	}
	return download.NewHuggingFace(dl...)
}

func (l *LLM) String() string {
	if l.backend != nil {
		return fmt.Sprintf("chillm(%s, %s)", l.state, l.backend.Target())
	}
	return fmt.Sprintf("chillm(%s)", l.state)
}
