package domain

// GenerateOptions holds request-time parameters. Nil means "backend default".
type GenerateOptions struct {
	Temperature   *float64
	MaxTokens     *int
	TopP          *float64
	TopK          *int
	RepeatPenalty *float64
	Stop          []string
}

// Merge returns a copy of o with unset fields taken from base.
func (o GenerateOptions) Merge(base GenerateOptions) GenerateOptions {
	out := o
	if out.Temperature == nil {
		out.Temperature = base.Temperature
	}
	if out.MaxTokens == nil {
		out.MaxTokens = base.MaxTokens
	}
	if out.TopP == nil {
		out.TopP = base.TopP
	}
	if out.TopK == nil {
		out.TopK = base.TopK
	}
	if out.RepeatPenalty == nil {
		out.RepeatPenalty = base.RepeatPenalty
	}
	if len(out.Stop) == 0 {
		out.Stop = base.Stop
	}
	return out
}

func (o GenerateOptions) TemperatureOr(def float64) float64 {
	if o.Temperature != nil {
		return *o.Temperature
	}
	return def
}

func (o GenerateOptions) MaxTokensOr(def int) int {
	if o.MaxTokens != nil {
		return *o.MaxTokens
	}
	return def
}

func (o GenerateOptions) TopPOr(def float64) float64 {
	if o.TopP != nil {
		return *o.TopP
	}
	return def
}

func (o GenerateOptions) TopKOr(def int) int {
	if o.TopK != nil {
		return *o.TopK
	}
	return def
}

// Turn is one exchange of chat history.
type Turn struct {
	User      string `json:"user" yaml:"user"`
	Assistant string `json:"assistant" yaml:"assistant"`
}

func Float64(v float64) *float64 { return &v }

func Int(v int) *int { return &v }
