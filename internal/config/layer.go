package config

import (
	"strings"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
)

// Layer is the partial configuration one source contributed. Layers are kept in
// precedence order, lowest first, so provenance can be answered by walking them
// from the top without replaying the merge.
type Layer struct {
	Err     error          `json:"-"`
	Values  map[string]any `json:"-"`
	Source  domain.Source  `json:"source"`
	Name    string         `json:"name"`
	Path    string         `json:"path,omitempty"`
	Note    string         `json:"note,omitempty"`
	Skipped bool           `json:"skipped,omitempty"`
}

const (
	LayerDefaults  = "defaults"
	LayerGlobal    = "global"
	LayerEnvConfig = "env-config"
	LayerProject   = "project"
	LayerLocal     = "local"
	LayerCustom    = "custom"
	LayerEnv       = "env"
)

// Active reports whether the layer takes part in the merge.
func (l Layer) Active() bool {
	return !l.Skipped && l.Err == nil && l.Values != nil
}

func (l Layer) ErrString() string {
	if l.Err == nil {
		return ""
	}
	return l.Err.Error()
}

// peekString reads a top-level string without going through the merge.
func (l Layer) peekString(key string) (string, bool) {
	if !l.Active() {
		return "", false
	}
	s, ok := l.Values[key].(string)
	return s, ok && s != ""
}

func (l Layer) peekBool(key string) (bool, bool) {
	if !l.Active() {
		return false, false
	}
	b, ok := l.Values[key].(bool)
	return b, ok
}

func (l Layer) definesDefaultModel() bool {
	return l.defines(constants.KeyDefaultModel)
}

// defines reports whether the layer sets a dotted key to something other than "".
func (l Layer) defines(key string) bool {
	if !l.Active() {
		return false
	}
	var cur any = l.Values
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		if cur, ok = m[part]; !ok {
			return false
		}
	}
	if s, ok := cur.(string); ok {
		return s != ""
	}
	return cur != nil
}
