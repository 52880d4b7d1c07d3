//go:build llama

package runtime

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

func DefaultLoader() Loader {
	return LoadLlama
}

type llamaEngine struct {
	model   *llama.LLama
	threads int
}

// LoadLlama loads the model in-process through go-llama.cpp.
func LoadLlama(opts LoadOptions) (Engine, error) {
	if strings.TrimSpace(opts.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(opts.ContextSize),
	}
	if opts.GPULayers != 0 {
		mo = append(mo, llama.SetGPULayers(opts.GPULayers))
	}
	m, err := llama.New(opts.ModelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaEngine{model: m, threads: opts.Threads}, nil
}

func (e *llamaEngine) Predict(ctx context.Context, prompt string, p Params) (string, error) {
	if e.model == nil {
		return "", ErrNotLoaded
	}
	e.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	text, err := e.model.Predict(prompt, predictOptions(p, e.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return CutAtStop(text, p.Stop), nil
}

func (e *llamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func predictOptions(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(orFloat(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(orInt(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(orFloat(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(orFloat(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v float64, def float32) float32 {
	if v > 0 {
		return float32(v)
	}
	return def
}
