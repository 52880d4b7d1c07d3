package util

import (
	"net/url"
	"path"
)

// ResolveURLPath joins pathOrURL onto baseURL, keeping any path prefix the base
// carries. An absolute pathOrURL is returned untouched.
//
//   - ResolveURLPath("http://localhost:1234/proxy/", "/v1/models") -> "http://localhost:1234/proxy/v1/models"
//   - ResolveURLPath("https://huggingface.co", "org/repo/resolve/main/model.gguf") -> "https://huggingface.co/org/repo/resolve/main/model.gguf"
func ResolveURLPath(baseURL, pathOrURL string) string {
	if baseURL == "" {
		return pathOrURL
	}
	if pathOrURL == "" {
		return baseURL
	}
	if parsed, err := url.Parse(pathOrURL); err == nil && parsed.IsAbs() {
		return pathOrURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return pathOrURL
	}
	// url.ResolveReference would drop the base path for "/v1/..."
	base.Path = path.Join(base.Path, pathOrURL)
	return base.String()
}
