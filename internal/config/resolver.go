package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/util"
)

// Resolver builds a Resolved configuration from the layered sources. It holds no
// state between calls; every Resolve reads the sources again.
type Resolver struct {
	logger *slog.Logger
	opts   Options
}

func NewResolver(opts Options) *Resolver {
	opts = opts.withDefaults()
	return &Resolver{opts: opts, logger: opts.Logger}
}

// Resolve is shorthand for NewResolver(opts).Resolve().
func Resolve(opts Options) (*Resolved, error) {
	return NewResolver(opts).Resolve()
}

// Resolve merges, lowest precedence first:
//
//	project-first: defaults, global, CHI_LLM_CONFIG, project, local, explicit path, env leaves
//	env-first:     defaults, global, project, local, CHI_LLM_CONFIG, explicit path, env leaves
//
// The global file only takes part when allow_global is set.
func (r *Resolver) Resolve() (*Resolved, error) {
	o := r.opts

	defaults := Layer{Source: domain.SourceDefault, Name: LayerDefaults, Values: DefaultValues()}
	local := r.fileLayer(domain.SourceLocal, LayerLocal, findConfigIn(o.WorkDir))
	project := r.fileLayer(domain.SourceProject, LayerProject, findProjectConfig(o.WorkDir, o.SearchRoot))
	envConfig := r.envConfigLayer()

	custom, err := r.customLayer()
	if err != nil {
		return nil, err
	}

	peekOrder := []Layer{custom, local, project, envConfig}
	mode := r.resolveMode(peekOrder)
	allowGlobal := r.resolveAllowGlobal(peekOrder)
	global := r.globalLayer(allowGlobal)

	envLeaf := Layer{
		Source: domain.SourceEnv,
		Name:   LayerEnv,
		Values: sanitize(envLeafValues(o.Env), r.dropper(LayerEnv)),
	}

	var layers []Layer
	switch mode {
	case constants.ModeEnvFirst:
		layers = []Layer{defaults, global, project, local, envConfig, custom, envLeaf}
	default:
		layers = []Layer{defaults, global, envConfig, project, local, custom, envLeaf}
	}

	merged := map[string]any{}
	for _, l := range layers {
		if l.Active() {
			merged = DeepMerge(merged, l.Values)
		}
	}

	res := &Resolved{
		Values:        merged,
		Layers:        layers,
		Mode:          mode,
		AllowGlobal:   allowGlobal,
		WorkDir:       o.WorkDir,
		CacheDir:      o.CacheDir,
		FallbackModel: o.FallbackModel,
	}
	res.Config = decode(merged, mode, allowGlobal)

	r.logger.Debug("Resolved configuration",
		"mode", mode,
		"allow_global", allowGlobal,
		"layers", res.ActiveLayerNames(),
		"provider_type", string(res.Config.Provider.Type),
		"profiles", len(res.Config.ProviderProfiles))

	return res, nil
}

func (r *Resolver) dropper(source string) dropFunc {
	return func(key string, value any, err error) {
		r.logger.Warn("Dropping configuration value",
			"source", source,
			"key", key,
			"value", fmt.Sprint(value),
			"error", err)
	}
}

// fileLayer loads a discovered file. Failures are logged and the layer is skipped.
func (r *Resolver) fileLayer(source domain.Source, name, path string) Layer {
	l := Layer{Source: source, Name: name, Path: path}
	if path == "" {
		l.Skipped = true
		l.Note = "not found"
		return l
	}
	raw, err := readFile(path)
	if err != nil {
		r.logger.Warn("Skipping unreadable configuration file", "layer", name, "path", path, "error", err)
		l.Err = err
		return l
	}
	l.Values = sanitize(raw, r.dropper(name))
	return l
}

// customLayer is the explicitly supplied path. Unlike discovered files, a missing
// or malformed explicit file is a configuration error.
func (r *Resolver) customLayer() (Layer, error) {
	path := r.opts.ConfigPath
	l := Layer{Source: domain.SourceCustom, Name: LayerCustom, Path: path}
	if path == "" {
		l.Skipped = true
		l.Note = "not supplied"
		return l, nil
	}
	expanded, err := util.ExpandHome(path)
	if err != nil {
		return l, domain.NewConfigError("config_path", string(domain.SourceCustom), path, err)
	}
	l.Path = expanded
	raw, err := readFile(expanded)
	if err != nil {
		return l, domain.NewConfigError("config_path", string(domain.SourceCustom), expanded, err)
	}
	l.Values = sanitize(raw, r.dropper(LayerCustom))
	return l, nil
}

// envConfigLayer reads CHI_LLM_CONFIG, which holds either a file path or a JSON document.
func (r *Resolver) envConfigLayer() Layer {
	l := Layer{Source: domain.SourceEnv, Name: LayerEnvConfig}
	value, ok := r.opts.Env.Value(constants.EnvConfig)
	if !ok {
		l.Skipped = true
		l.Note = "not set"
		return l
	}

	if strings.HasPrefix(value, "{") {
		l.Path = constants.EnvConfig
		raw, err := readInline(value)
		if err != nil {
			r.logger.Warn("Skipping malformed inline configuration", "variable", constants.EnvConfig, "error", err)
			l.Err = err
			return l
		}
		l.Values = sanitize(raw, r.dropper(LayerEnvConfig))
		return l
	}

	path, err := util.ExpandHome(value)
	if err != nil {
		l.Err = err
		return l
	}
	return r.fileLayer(l.Source, l.Name, path)
}

func (r *Resolver) globalLayer(allowGlobal bool) Layer {
	path := GlobalConfigPath(r.opts.CacheDir)
	if !allowGlobal {
		return Layer{Source: domain.SourceGlobal, Name: LayerGlobal, Path: path, Skipped: true, Note: "allow_global not set"}
	}
	if !fileExists(path) {
		return Layer{Source: domain.SourceGlobal, Name: LayerGlobal, Path: path, Skipped: true, Note: "not found"}
	}
	return r.fileLayer(domain.SourceGlobal, LayerGlobal, path)
}

func (r *Resolver) resolveMode(peek []Layer) string {
	if v, ok := r.opts.Env.Value(constants.EnvResolutionMode); ok {
		if mode, err := coerceMode(v); err == nil {
			return mode
		}
		r.logger.Warn("Ignoring unknown resolution mode", "variable", constants.EnvResolutionMode, "value", v)
	}
	for _, l := range peek {
		if mode, ok := l.peekString(constants.KeyResolutionMode); ok {
			return mode
		}
	}
	return constants.ModeProjectFirst
}

func (r *Resolver) resolveAllowGlobal(peek []Layer) bool {
	if v, ok := r.opts.Env.Value(constants.EnvAllowGlobal); ok {
		if b, err := coerceBool(v); err == nil {
			return b
		}
		r.logger.Warn("Ignoring unparsable allow-global flag", "variable", constants.EnvAllowGlobal, "value", v)
	}
	for _, l := range peek {
		if b, ok := l.peekBool(constants.KeyAllowGlobal); ok {
			return b
		}
	}
	return false
}
