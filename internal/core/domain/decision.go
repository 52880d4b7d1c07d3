package domain

// Source labels where a configuration value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceEnv     Source = "env"
	SourceProject Source = "project"
	SourceLocal   Source = "local"
	SourceCustom  Source = "custom"
)

type DecisionReason string

const (
	ReasonExplicitDefault       DecisionReason = "explicit default"
	ReasonProviderLocalFallback DecisionReason = "provider local fallback"
	ReasonLegacyDefault         DecisionReason = "legacy default"
	ReasonModelPath             DecisionReason = "model path"
)

// EffectiveModelDecision is the selector outcome. When IsPath is set, Model is a
// filesystem path rather than a registry id.
type EffectiveModelDecision struct {
	Model      string         `json:"model"`
	Reason     DecisionReason `json:"reason"`
	Source     Source         `json:"source"`
	SourcePath string         `json:"source_path,omitempty"`
	IsPath     bool           `json:"is_path,omitempty"`
}

// FacadeState is fixed once construction finishes.
type FacadeState string

const (
	StateUninitialized  FacadeState = "uninitialized"
	StateDirectLocal    FacadeState = "direct-local"
	StateSingleProvider FacadeState = "single-provider"
	StateRouted         FacadeState = "routed"
)
