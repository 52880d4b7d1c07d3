package ports

import (
	"context"

	"github.com/thushan/chillm/internal/core/domain"
)

// Backend is the uniform contract every adapter implements. A failed call always
// returns an error, never an empty string standing in for one.
type Backend interface {
	Type() domain.BackendType
	Target() string
	Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error)
	Chat(ctx context.Context, message string, history []domain.Turn, opts domain.GenerateOptions) (string, error)
	Complete(ctx context.Context, text string, opts domain.GenerateOptions) (string, error)
}

// ModelDiscoverer is optional; adapters that can list their backend's models implement it.
type ModelDiscoverer interface {
	DiscoverModels(ctx context.Context) ([]string, error)
}

// ModelCatalogue is the read side of the model registry.
type ModelCatalogue interface {
	Lookup(id string) (domain.ModelDescriptor, error)
	DefaultID() string
}

// Fetcher materialises repo/filename into cacheDir and returns the local path.
// Calling it for an artifact already present returns immediately.
type Fetcher interface {
	Fetch(ctx context.Context, repo, filename, cacheDir string) (string, error)
}

// DownloadLedger is the append-only record of model ids fetched so far.
type DownloadLedger interface {
	IsDownloaded(ctx context.Context, id string) (bool, error)
	MarkDownloaded(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}
