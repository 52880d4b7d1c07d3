package router

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
	"github.com/thushan/chillm/internal/logger"
)

// Factory builds the adapter for one profile's settings.
type Factory func(settings domain.ProviderSettings) (ports.Backend, error)

type candidate struct {
	key     string
	profile domain.ProviderProfile
}

// Router tries provider profiles one at a time, lowest priority value first,
// until one succeeds.
type Router struct {
	factory    Factory
	adapters   *xsync.MapOf[string, ports.Backend]
	metrics    *Metrics
	log        *logger.StyledLogger
	candidates []candidate
}

type Option func(*Router)

func WithMetrics(m *Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

func WithLogger(l *logger.StyledLogger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

func New(profiles []domain.ProviderProfile, factory Factory, opts ...Option) *Router {
	r := &Router{
		factory:    factory,
		adapters:   xsync.NewMapOf[string, ports.Backend](),
		log:        logger.NewDiscard(),
		candidates: make([]candidate, 0, len(profiles)),
	}
	for i, p := range profiles {
		r.candidates = append(r.candidates, candidate{key: strconv.Itoa(i) + ":" + p.Name, profile: p})
	}
	sort.SliceStable(r.candidates, func(i, j int) bool {
		return r.candidates[i].profile.Priority < r.candidates[j].profile.Priority
	})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates returns, in try order, the profiles a call with tags would attempt.
func (r *Router) Candidates(tags []string) []domain.ProviderProfile {
	out := make([]domain.ProviderProfile, 0, len(r.candidates))
	for _, c := range r.candidates {
		if c.profile.MatchesAny(tags) {
			out = append(out, c.profile)
		}
	}
	return out
}

func (r *Router) Len() int {
	return len(r.candidates)
}

func (r *Router) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions, tags []string) (string, error) {
	return r.dispatch(ctx, "generate", tags, func(b ports.Backend) (string, error) {
		return b.Generate(ctx, prompt, opts)
	})
}

func (r *Router) Chat(ctx context.Context, message string, history []domain.Turn, opts domain.GenerateOptions, tags []string) (string, error) {
	return r.dispatch(ctx, "chat", tags, func(b ports.Backend) (string, error) {
		return b.Chat(ctx, message, history, opts)
	})
}

func (r *Router) Complete(ctx context.Context, text string, opts domain.GenerateOptions, tags []string) (string, error) {
	return r.dispatch(ctx, "complete", tags, func(b ports.Backend) (string, error) {
		return b.Complete(ctx, text, opts)
	})
}

// dispatch walks the candidates strictly in order. A candidate that cannot be
// built is skipped just like one whose call fails; a failed adapter is evicted
// so the next call rebuilds it.
func (r *Router) dispatch(ctx context.Context, op string, tags []string, call func(ports.Backend) (string, error)) (string, error) {
	log := r.log.WithRequestID(uuid.NewString())
	var attempts []domain.AttemptResult

	for _, c := range r.candidates {
		if !c.profile.MatchesAny(tags) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		kind := string(c.profile.Type)
		start := time.Now()

		b, err := r.adapter(c)
		if err != nil {
			r.metrics.record(c.profile.Name, kind, OutcomeSkipped, 0)
			attempts = append(attempts, domain.AttemptResult{Profile: c.profile.Name, Type: kind, Err: err})
			log.WarnWithContext("Skipping provider profile", c.profile.Name, logger.LogContext{
				UserArgs:     []any{"type", kind, "op", op},
				DetailedArgs: []any{"error", err},
			})
			continue
		}

		out, err := call(b)
		latency := time.Since(start)
		if err == nil {
			r.metrics.record(c.profile.Name, kind, OutcomeSuccess, latency)
			log.Debug("Provider profile served request",
				"profile", c.profile.Name,
				"type", kind,
				"op", op,
				"failed_before", len(attempts),
				"latency", latency)
			return out, nil
		}

		r.adapters.Delete(c.key)
		r.metrics.record(c.profile.Name, kind, OutcomeFailure, latency)
		attempts = append(attempts, domain.AttemptResult{Profile: c.profile.Name, Type: kind, Err: err, Latency: latency, Attempts: 1})
		log.WarnWithContext("Provider profile failed, trying next", c.profile.Name, logger.LogContext{
			UserArgs:     []any{"type", kind, "op", op, "latency", latency},
			DetailedArgs: []any{"error", err, "target", b.Target()},
		})
	}

	return "", &domain.RouterError{Op: op, Tags: tags, Attempts: attempts}
}

func (r *Router) adapter(c candidate) (ports.Backend, error) {
	if b, ok := r.adapters.Load(c.key); ok {
		return b, nil
	}
	if !c.profile.Type.Known() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, string(c.profile.Type))
	}
	b, err := r.factory(c.profile.ProviderSettings)
	if err != nil {
		return nil, err
	}
	r.adapters.Store(c.key, b)
	return b, nil
}
