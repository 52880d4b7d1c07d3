package constants

// Paths are joined onto the provider base URL, so a base of
// http://host:1234/proxy resolves /v1/models under /proxy.
const (
	PathV1Models          = "/v1/models"
	PathV1Completions     = "/v1/completions"
	PathV1ChatCompletions = "/v1/chat/completions"
	PathV1Messages        = "/v1/messages"

	PathOllamaGenerate = "/api/generate"
	PathOllamaChat     = "/api/chat"
	PathOllamaTags     = "/api/tags"
)
