package config

import (
	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
)

// Resolved is one merged configuration plus the layers it was built from. It is
// built fresh per facade and never written back by the resolver.
type Resolved struct {
	Values        map[string]any
	Mode          string
	WorkDir       string
	CacheDir      string
	FallbackModel string
	Layers        []Layer
	Config        Config
	AllowGlobal   bool
}

// DefaultModelProvenance walks the layers from highest precedence down and
// reports the first one that sets default_model. It does not consult the merged
// values, so it stays correct regardless of how the merge treated the key.
func (r *Resolved) DefaultModelProvenance() (source domain.Source, path string, explicit bool) {
	return r.Provenance(constants.KeyDefaultModel)
}

// Provenance is DefaultModelProvenance for any dotted key, e.g. "provider.model_path".
func (r *Resolved) Provenance(key string) (source domain.Source, path string, explicit bool) {
	for i := len(r.Layers) - 1; i >= 0; i-- {
		l := r.Layers[i]
		if l.Source == domain.SourceDefault {
			continue
		}
		if l.defines(key) {
			return l.Source, l.Path, true
		}
	}
	return domain.SourceDefault, "", false
}

// ExplicitDefaultModel is the default_model value when a source other than the
// built-in defaults set it.
func (r *Resolved) ExplicitDefaultModel() (string, bool) {
	if _, _, explicit := r.DefaultModelProvenance(); !explicit {
		return "", false
	}
	return r.Config.DefaultModel, r.Config.DefaultModel != ""
}

// EffectiveModel applies the decision order: explicit default_model, then a
// local provider's model, then fallback. It is a pure function of r and its arguments.
func (r *Resolved) EffectiveModel(providerLocalModel, fallback string) (string, domain.DecisionReason) {
	if id, ok := r.ExplicitDefaultModel(); ok {
		return id, domain.ReasonExplicitDefault
	}
	if providerLocalModel != "" {
		return providerLocalModel, domain.ReasonProviderLocalFallback
	}
	if fallback == "" {
		fallback = constants.DefaultModelID
	}
	return fallback, domain.ReasonLegacyDefault
}

// ResolveEffectiveModel is EffectiveModel with the fallback the resolver was given.
func (r *Resolved) ResolveEffectiveModel(providerLocalModel string) (string, domain.DecisionReason) {
	return r.EffectiveModel(providerLocalModel, r.FallbackModel)
}

// ProviderLocalModel is provider.model when the provider block is of type local.
func (r *Resolved) ProviderLocalModel() string {
	if r.Config.Provider.Type == domain.BackendLocal {
		return r.Config.Provider.Model
	}
	return ""
}

// LocalModelPath is provider.model_path for a local (or untyped) provider block.
// When set it bypasses model selection entirely.
func (r *Resolved) LocalModelPath() string {
	switch r.Config.Provider.Type {
	case "", domain.BackendLocal:
		return r.Config.Provider.ModelPath
	}
	return ""
}

func (r *Resolved) HasProfiles() bool {
	return len(r.Config.ProviderProfiles) > 0
}

func (r *Resolved) ActiveLayerNames() []string {
	names := make([]string, 0, len(r.Layers))
	for _, l := range r.Layers {
		if l.Active() {
			names = append(names, l.Name)
		}
	}
	return names
}

// Explanation is the diagnostic view of a resolution.
type Explanation struct {
	Model        string                `json:"model"`
	Reason       domain.DecisionReason `json:"reason"`
	Source       domain.Source         `json:"source"`
	SourcePath   string                `json:"source_path,omitempty"`
	Mode         string                `json:"resolution_mode"`
	ProviderType string                `json:"provider_type,omitempty"`
	Profiles     []string              `json:"provider_profiles,omitempty"`
	Layers       []LayerReport         `json:"layers"`
	AllowGlobal  bool                  `json:"allow_global"`
}

type LayerReport struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Path    string `json:"path,omitempty"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Defines bool   `json:"defines_default_model,omitempty"`
}

// Explain reports the effective model decision and every layer consulted.
func (r *Resolved) Explain() Explanation {
	model, reason := r.ResolveEffectiveModel(r.ProviderLocalModel())
	source, path, _ := r.DefaultModelProvenance()
	if reason != domain.ReasonExplicitDefault {
		source, path = domain.SourceDefault, ""
	}
	if mp := r.LocalModelPath(); mp != "" {
		model, reason = mp, domain.ReasonModelPath
	}

	ex := Explanation{
		Model:        model,
		Reason:       reason,
		Source:       source,
		SourcePath:   path,
		Mode:         r.Mode,
		AllowGlobal:  r.AllowGlobal,
		ProviderType: string(r.Config.Provider.Type),
	}
	for _, p := range r.Config.ProviderProfiles {
		ex.Profiles = append(ex.Profiles, p.Name)
	}
	for _, l := range r.Layers {
		report := LayerReport{Name: l.Name, Source: string(l.Source), Path: l.Path, Defines: l.definesDefaultModel()}
		switch {
		case l.Err != nil:
			report.Status = "error"
			report.Detail = l.ErrString()
		case l.Skipped:
			report.Status = "skipped"
			report.Detail = l.Note
		default:
			report.Status = "applied"
		}
		ex.Layers = append(ex.Layers, report)
	}
	return ex
}
