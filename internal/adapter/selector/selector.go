package selector

import (
	"path/filepath"
	"strings"

	"github.com/thushan/chillm/internal/config"
	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
)

const keyModelPath = constants.KeyProvider + ".model_path"

// Select decides which model a resolved configuration runs. The first match wins:
//
//  1. provider.model_path on a local provider block, used as-is
//  2. an explicitly set default_model, which must exist in the catalogue
//  3. provider.model on a provider block of type local
//  4. the catalogue default (or the resolver's fallback model)
//
// An explicit id missing from the catalogue is a ConfigError; it never falls
// through to a different model.
func Select(res *config.Resolved, catalogue ports.ModelCatalogue) (domain.EffectiveModelDecision, error) {
	if path := res.LocalModelPath(); path != "" {
		source, sourcePath, _ := res.Provenance(keyModelPath)
		return domain.EffectiveModelDecision{
			Model:      path,
			Reason:     domain.ReasonModelPath,
			Source:     source,
			SourcePath: sourcePath,
			IsPath:     true,
		}, nil
	}

	fallback := res.FallbackModel
	if fallback == "" {
		fallback = catalogue.DefaultID()
	}

	id, reason := res.EffectiveModel(res.ProviderLocalModel(), fallback)
	decision := domain.EffectiveModelDecision{Model: id, Reason: reason, Source: domain.SourceDefault}

	switch reason {
	case domain.ReasonExplicitDefault:
		source, sourcePath, _ := res.DefaultModelProvenance()
		decision.Source, decision.SourcePath = source, sourcePath
		if _, err := catalogue.Lookup(id); err != nil {
			return decision, domain.NewConfigError(constants.KeyDefaultModel, string(source), sourcePath,
				&domain.ModelNotFoundError{ID: id, Source: string(source)})
		}

	case domain.ReasonProviderLocalFallback:
		source, sourcePath, _ := res.Provenance(constants.KeyProvider + ".model")
		decision.Source, decision.SourcePath = source, sourcePath
		if _, err := catalogue.Lookup(id); err != nil {
			if !LooksLikePath(id) {
				return decision, domain.NewConfigError(constants.KeyProvider+".model", string(source), sourcePath,
					&domain.ModelNotFoundError{ID: id, Source: string(source)})
			}
			decision.IsPath = true
		}

	default:
		if _, err := catalogue.Lookup(id); err != nil {
			return decision, domain.NewConfigError(constants.KeyDefaultModel, string(domain.SourceDefault), "", err)
		}
	}
	return decision, nil
}

// LooksLikePath separates a model file reference from a registry id.
func LooksLikePath(s string) bool {
	if strings.EqualFold(filepath.Ext(s), ".gguf") {
		return true
	}
	return strings.ContainsRune(s, '/') || strings.ContainsRune(s, filepath.Separator)
}
