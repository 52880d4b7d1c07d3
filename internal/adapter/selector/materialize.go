package selector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thushan/chillm/internal/adapter/registry"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/core/ports"
	"github.com/thushan/chillm/internal/logger"
)

// Materializer turns a decision into a model file on disk. Files already present
// in the cache or under a discovery path are used without contacting the fetcher.
type Materializer struct {
	Catalogue ports.ModelCatalogue
	Fetcher   ports.Fetcher
	Ledger    ports.DownloadLedger
	Logger    *logger.StyledLogger
	CacheDir  string
	GGUFPaths []string
}

func (m *Materializer) Materialize(ctx context.Context, decision domain.EffectiveModelDecision) (string, error) {
	if decision.IsPath {
		path := decision.Model
		if _, err := os.Stat(path); err != nil {
			return "", domain.NewConfigError(keyModelPath, string(decision.Source), decision.SourcePath, err)
		}
		return path, nil
	}

	desc, err := m.Catalogue.Lookup(decision.Model)
	if err != nil {
		return "", err
	}

	if path := m.discovered(desc); path != "" {
		m.log().Debug("Using discovered model file", "model", desc.ID, "path", path)
		return path, nil
	}

	cached := filepath.Join(m.CacheDir, desc.Filename)
	if fileReady(cached) {
		if m.Ledger != nil {
			if seen, lerr := m.Ledger.IsDownloaded(ctx, desc.ID); lerr == nil && !seen {
				_ = m.Ledger.MarkDownloaded(ctx, desc.ID)
			}
		}
		return cached, nil
	}

	if m.Fetcher == nil {
		return "", fmt.Errorf("model %s is not downloaded and no fetcher is configured", desc.ID)
	}

	m.log().InfoWithModel("Downloading model", desc.ID, "repo", desc.Repo, "file", desc.Filename)
	path, err := m.Fetcher.Fetch(ctx, desc.Repo, desc.Filename, m.CacheDir)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", desc.ID, err)
	}

	if m.Ledger != nil {
		if err := m.Ledger.MarkDownloaded(ctx, desc.ID); err != nil {
			m.log().Warn("Failed to record download", "model", desc.ID, "error", err)
		}
	}
	return path, nil
}

// discovered looks for the catalogue file name, or <id>.gguf, under the discovery paths.
func (m *Materializer) discovered(desc domain.ModelDescriptor) string {
	if len(m.GGUFPaths) == 0 {
		return ""
	}
	files, _ := registry.ScanGGUF(m.GGUFPaths)
	for _, f := range files {
		if filepath.Base(f.Path) == desc.Filename || f.ID == desc.ID+".gguf" {
			return f.Path
		}
	}
	return ""
}

func (m *Materializer) log() *logger.StyledLogger {
	if m.Logger == nil {
		return logger.NewDiscard()
	}
	return m.Logger
}

func fileReady(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
