package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/thushan/chillm/internal/core/constants"
)

// readFile parses one config file with an isolated viper instance, picking the
// format from the extension. Unrecognised extensions are read as YAML, which also
// accepts JSON.
func readFile(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return map[string]any{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if !isKnownExtension(filepath.Ext(path)) {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

// readInline parses a JSON document passed directly in an environment variable.
func readInline(doc string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

func isKnownExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".json", ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// findConfigIn returns the first .chi_llm.* file in dir, or "".
func findConfigIn(dir string) string {
	for _, ext := range constants.ConfigExtensions {
		candidate := filepath.Join(dir, constants.ConfigBaseName+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// findProjectConfig walks upward from the parent of workDir and stops at the
// first directory holding a config file, or once stopAt (inclusive) or the
// filesystem root has been checked.
func findProjectConfig(workDir, stopAt string) string {
	if workDir == "" {
		return ""
	}
	dir := filepath.Clean(workDir)
	if stopAt != "" {
		stopAt = filepath.Clean(stopAt)
		if dir == stopAt {
			return ""
		}
	}
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
		if found := findConfigIn(dir); found != "" {
			return found
		}
		if stopAt != "" && dir == stopAt {
			return ""
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
