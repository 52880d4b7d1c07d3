package domain

import "github.com/thushan/chillm/internal/util/pattern"

const (
	TagRecommended = "recommended"
	TagDefault     = "default"
)

// ModelDescriptor is an immutable catalogue entry describing where a local model
// lives and how it should be run.
type ModelDescriptor struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	Size             string   `yaml:"size" json:"size"`
	Description      string   `yaml:"description,omitempty" json:"description,omitempty"`
	Repo             string   `yaml:"repo" json:"repo"`
	Filename         string   `yaml:"filename" json:"filename"`
	Tags             []string `yaml:"tags" json:"tags"`
	FileSizeMB       int      `yaml:"file_size_mb" json:"file_size_mb"`
	ContextWindow    int      `yaml:"context_window" json:"context_window"`
	RecommendedRAMGB float64  `yaml:"recommended_ram_gb" json:"recommended_ram_gb"`
	NGPULayers       int      `yaml:"n_gpu_layers" json:"n_gpu_layers"`
	OutputTokens     int      `yaml:"output_tokens" json:"output_tokens"`
}

func (m ModelDescriptor) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ModelFilter narrows Registry.List. Zero values match everything.
type ModelFilter struct {
	Pattern  string // glob on the model id, e.g. "qwen3-*"
	Tags     []string
	MaxRAMGB float64
}

func (f ModelFilter) Matches(m ModelDescriptor) bool {
	if f.MaxRAMGB > 0 && m.RecommendedRAMGB > f.MaxRAMGB {
		return false
	}
	if f.Pattern != "" && !pattern.MatchesGlob(m.ID, f.Pattern) {
		return false
	}
	if len(f.Tags) == 0 {
		return true
	}
	for _, t := range f.Tags {
		if m.HasTag(t) {
			return true
		}
	}
	return false
}

// LocalModelFile is a *.gguf file found by scanning discovery paths.
type LocalModelFile struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}
