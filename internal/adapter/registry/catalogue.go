package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/thushan/chillm/internal/core/domain"
)

//go:embed catalogue.yaml
var builtinCatalogue []byte

const (
	BuiltinSource = "built-in"

	defaultContextWindow = 32768
	defaultRAMGB         = 2.0
	defaultOutputTokens  = 4096
)

var catalogueValidate = validator.New()

type catalogueDocument struct {
	ZeroConfigDefault string           `yaml:"zero_config_default"`
	Models            []catalogueEntry `yaml:"models"`
}

// catalogueEntry uses pointers so an absent field can take its default while a
// present-but-wrong one fails decoding.
type catalogueEntry struct {
	ContextWindow    *int     `yaml:"context_window" validate:"omitempty,gt=0"`
	FileSizeMB       *int     `yaml:"file_size_mb" validate:"omitempty,gte=0"`
	RecommendedRAMGB *float64 `yaml:"recommended_ram_gb" validate:"omitempty,gte=0"`
	NGPULayers       *int     `yaml:"n_gpu_layers" validate:"omitempty,gte=-1"`
	OutputTokens     *int     `yaml:"output_tokens" validate:"omitempty,gt=0"`
	ID               string   `yaml:"id" validate:"required"`
	Name             string   `yaml:"name"`
	Size             string   `yaml:"size"`
	Repo             string   `yaml:"repo" validate:"required"`
	Filename         string   `yaml:"filename" validate:"required"`
	Description      string   `yaml:"description"`
	Tags             []string `yaml:"tags"`
}

func (e catalogueEntry) descriptor() domain.ModelDescriptor {
	m := domain.ModelDescriptor{
		ID:               strings.TrimSpace(e.ID),
		Name:             e.Name,
		Size:             e.Size,
		Description:      e.Description,
		Repo:             e.Repo,
		Filename:         e.Filename,
		Tags:             append([]string(nil), e.Tags...),
		ContextWindow:    defaultContextWindow,
		RecommendedRAMGB: defaultRAMGB,
		OutputTokens:     defaultOutputTokens,
	}
	if m.Name == "" {
		m.Name = m.ID
	}
	if e.ContextWindow != nil {
		m.ContextWindow = *e.ContextWindow
	}
	if e.FileSizeMB != nil {
		m.FileSizeMB = *e.FileSizeMB
	}
	if e.RecommendedRAMGB != nil {
		m.RecommendedRAMGB = *e.RecommendedRAMGB
	}
	if e.NGPULayers != nil {
		m.NGPULayers = *e.NGPULayers
	}
	if e.OutputTokens != nil {
		m.OutputTokens = *e.OutputTokens
	}
	return m
}

// Parse decodes a catalogue document. Any bad entry rejects the whole document.
func Parse(data []byte, origin string) (*Registry, error) {
	var doc catalogueDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(false)
	if err := dec.Decode(&doc); err != nil {
		return nil, domain.NewCatalogueError(origin, "", "cannot decode", err)
	}
	if len(doc.Models) == 0 {
		return nil, domain.NewCatalogueError(origin, "", "no models defined", nil)
	}

	models := make([]domain.ModelDescriptor, 0, len(doc.Models))
	for i, entry := range doc.Models {
		label := entry.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if err := catalogueValidate.Struct(entry); err != nil {
			return nil, domain.NewCatalogueError(origin, label, describeValidation(err), nil)
		}
		models = append(models, entry.descriptor())
	}

	reg, err := New(models, doc.ZeroConfigDefault)
	if err != nil {
		var ce *domain.CatalogueError
		if errors.As(err, &ce) {
			ce.Path = origin
		}
		return nil, err
	}
	reg.source = origin
	return reg, nil
}

// LoadFile reads an external catalogue. A missing file falls back to the built-in
// table; a present file must be valid in full.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return Builtin(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Builtin(), nil
		}
		return nil, domain.NewCatalogueError(path, "", "cannot read", err)
	}
	return Parse(data, path)
}

// Builtin returns the catalogue compiled into the binary. The registry is immutable
// so the parsed copy is shared.
func Builtin() *Registry {
	return builtinOnce()
}

var builtinOnce = sync.OnceValue(func() *Registry {
	reg, err := Parse(builtinCatalogue, BuiltinSource)
	if err != nil {
		panic(fmt.Sprintf("built-in model catalogue is invalid: %v", err))
	}
	return reg
})

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("missing %s", yamlName(fe.Field())))
		default:
			parts = append(parts, fmt.Sprintf("%s fails %s=%s", yamlName(fe.Field()), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, ", ")
}

func yamlName(field string) string {
	switch field {
	case "ID":
		return "id"
	case "Repo":
		return "repo"
	case "Filename":
		return "filename"
	case "ContextWindow":
		return "context_window"
	case "FileSizeMB":
		return "file_size_mb"
	case "RecommendedRAMGB":
		return "recommended_ram_gb"
	case "NGPULayers":
		return "n_gpu_layers"
	case "OutputTokens":
		return "output_tokens"
	}
	return strings.ToLower(field)
}
