package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
)

// RecommendSafetyMargin is the share of available RAM a recommended model may use.
const RecommendSafetyMargin = 0.7

// Registry is the immutable model catalogue. Entries keep their catalogue order.
type Registry struct {
	byID      map[string]int
	defaultID string
	source    string
	models    []domain.ModelDescriptor
}

// New builds a registry from already decoded descriptors. Duplicate or empty ids
// are rejected, as is a zeroConfigDefault that names no entry.
func New(models []domain.ModelDescriptor, zeroConfigDefault string) (*Registry, error) {
	if len(models) == 0 {
		return nil, domain.NewCatalogueError("", "", "no models defined", nil)
	}

	r := &Registry{
		models: make([]domain.ModelDescriptor, 0, len(models)),
		byID:   make(map[string]int, len(models)),
	}
	for _, m := range models {
		if m.ID == "" {
			return nil, domain.NewCatalogueError("", "", "entry without id", nil)
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, domain.NewCatalogueError("", m.ID, "duplicate id", nil)
		}
		r.byID[m.ID] = len(r.models)
		r.models = append(r.models, m)
	}

	switch {
	case zeroConfigDefault != "":
		if _, ok := r.byID[zeroConfigDefault]; !ok {
			return nil, domain.NewCatalogueError("", zeroConfigDefault, "zero_config_default names an unknown model", nil)
		}
		r.defaultID = zeroConfigDefault
	default:
		r.defaultID = r.pickDefault()
	}
	return r, nil
}

func (r *Registry) pickDefault() string {
	if _, ok := r.byID[constants.DefaultModelID]; ok {
		return constants.DefaultModelID
	}
	for _, m := range r.models {
		if m.HasTag(domain.TagDefault) {
			return m.ID
		}
	}
	return r.models[0].ID
}

func (r *Registry) Lookup(id string) (domain.ModelDescriptor, error) {
	idx, ok := r.byID[id]
	if !ok {
		return domain.ModelDescriptor{}, &domain.ModelNotFoundError{ID: id}
	}
	return r.models[idx], nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns the entries matching filter in catalogue order.
func (r *Registry) List(filter domain.ModelFilter) []domain.ModelDescriptor {
	out := make([]domain.ModelDescriptor, 0, len(r.models))
	for _, m := range r.models {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	return out
}

// Recommend picks the lightest "recommended" model that fits within the safety
// margin of availableRAMGB, or the lightest model overall when none fits.
func (r *Registry) Recommend(availableRAMGB float64) (domain.ModelDescriptor, error) {
	if len(r.models) == 0 {
		return domain.ModelDescriptor{}, errors.New("registry is empty")
	}
	budget := availableRAMGB * RecommendSafetyMargin

	var fitting []domain.ModelDescriptor
	for _, m := range r.models {
		if m.HasTag(domain.TagRecommended) && m.RecommendedRAMGB <= budget {
			fitting = append(fitting, m)
		}
	}
	if len(fitting) > 0 {
		return lightest(fitting), nil
	}
	return lightest(r.models), nil
}

func lightest(models []domain.ModelDescriptor) domain.ModelDescriptor {
	sorted := make([]domain.ModelDescriptor, len(models))
	copy(sorted, models)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecommendedRAMGB < sorted[j].RecommendedRAMGB
	})
	return sorted[0]
}

func (r *Registry) DefaultID() string {
	return r.defaultID
}

func (r *Registry) Source() string {
	return r.source
}

func (r *Registry) Len() int {
	return len(r.models)
}

func (r *Registry) String() string {
	return fmt.Sprintf("registry(%s, %d models, default %s)", r.source, len(r.models), r.defaultID)
}
