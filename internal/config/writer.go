package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Scope selects which file a Set writes to.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
)

func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ScopeLocal):
		return ScopeLocal, nil
	case string(ScopeGlobal):
		return ScopeGlobal, nil
	}
	return "", fmt.Errorf("unknown scope %q (expected local or global)", s)
}

// TargetPath is the file a write to scope would touch: an existing .chi_llm.* in
// the working directory for local scope (a new .chi_llm.json otherwise), or the
// per-user model_config.json for global scope.
func TargetPath(opts Options, scope Scope) string {
	opts = opts.withDefaults()
	if scope == ScopeGlobal {
		return GlobalConfigPath(opts.CacheDir)
	}
	if existing := findConfigIn(opts.WorkDir); existing != "" {
		return existing
	}
	return filepath.Join(opts.WorkDir, constants.ConfigBaseName+".json")
}

// Set writes a dotted key (e.g. "provider.host") into the scope's file, keeping the
// file's existing format and other keys. It is a caller-initiated side effect;
// resolution never writes.
func Set(opts Options, scope Scope, key string, value any) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("empty configuration key")
	}
	path := TargetPath(opts, scope)

	doc, err := readForWrite(path)
	if err != nil {
		return path, domain.NewConfigError(key, string(scope), path, err)
	}
	setDotted(doc, strings.Split(strings.ToLower(key), "."), value)

	if err := writeAtomic(path, doc); err != nil {
		return path, domain.NewConfigError(key, string(scope), path, err)
	}
	return path, nil
}

// SetDefaultModel validates id against the catalogue before writing it.
func SetDefaultModel(opts Options, scope Scope, id string, catalogue ports.ModelCatalogue) (string, error) {
	if _, err := catalogue.Lookup(id); err != nil {
		return "", domain.NewConfigError(constants.KeyDefaultModel, string(scope), "", err)
	}
	return Set(opts, scope, constants.KeyDefaultModel, id)
}

// ParseValue turns a command-line string into the most specific JSON value it
// spells (number, bool, list, object), falling back to the raw string.
func ParseValue(s string) any {
	var v any
	if err := json.UnmarshalFromString(s, &v); err != nil {
		return s
	}
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

func setDotted(doc map[string]any, parts []string, value any) {
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func readForWrite(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("existing file is malformed, refusing to overwrite: %w", err)
	}
	return doc, nil
}

func encodeFor(path string, doc map[string]any) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(doc)
	case ".toml":
		return toml.Marshal(doc)
	default:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	}
}

func writeAtomic(path string, doc map[string]any) error {
	data, err := encodeFor(path, doc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".chillm-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
