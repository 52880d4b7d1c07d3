package chillm

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thushan/chillm/internal/adapter/runtime"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
	"github.com/thushan/chillm/internal/env"
)

type (
	GenerateOptions = domain.GenerateOptions
	Turn            = domain.Turn
	State           = domain.FacadeState
	Decision        = domain.EffectiveModelDecision
)

const (
	StateDirectLocal    = domain.StateDirectLocal
	StateSingleProvider = domain.StateSingleProvider
	StateRouted         = domain.StateRouted
)

// Fetcher downloads repo/filename into a cache directory and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, repo, filename, cacheDir string) (string, error)
}

type options struct {
	logger      *slog.Logger
	httpClient  *http.Client
	registerer  prometheus.Registerer
	fetcher     ports.Fetcher
	loader      runtime.Loader
	env         env.LookupFunc
	temperature *float64
	maxTokens   *int
	configPath  string
	workDir     string
	cacheDir    string
	searchRoot  string
	model       string
	tags        []string
}

type Option func(*options)

// WithConfigPath names a configuration file that outranks every discovered one.
// A missing or malformed file fails construction.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithSearchRoot stops the upward project-file walk at dir.
func WithSearchRoot(dir string) Option {
	return func(o *options) { o.searchRoot = dir }
}

// WithEnv replaces os.LookupEnv for every environment read.
func WithEnv(lookup func(key string) (string, bool)) Option {
	return func(o *options) { o.env = lookup }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithModel pins the local model (a catalogue id or a .gguf path), overriding
// default_model from configuration. Remote providers ignore it.
func WithModel(id string) Option {
	return func(o *options) { o.model = id }
}

// WithTemperature and WithMaxTokens set request defaults. They never affect
// which model is loaded.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = &t }
}

func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = &n }
}

// WithTags sets the default routing tags used when a call's context carries none.
func WithTags(tags ...string) Option {
	return func(o *options) { o.tags = tags }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithMetrics registers router metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func WithFetcher(f Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

func withLoader(l runtime.Loader) Option {
	return func(o *options) { o.loader = l }
}

type tagsKey struct{}

// ContextWithTags routes calls made with ctx to profiles carrying any of tags.
func ContextWithTags(ctx context.Context, tags ...string) context.Context {
	return context.WithValue(ctx, tagsKey{}, tags)
}

func tagsFrom(ctx context.Context, fallback []string) []string {
	if tags, ok := ctx.Value(tagsKey{}).([]string); ok && len(tags) > 0 {
		return tags
	}
	return fallback
}
