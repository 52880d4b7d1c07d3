package constants

const (
	DefaultContentTypeJSON = "application/json"
	ContentTypeHeader      = "Content-Type"
	AuthorizationHeader    = "Authorization"
	UserAgentHeader        = "User-Agent"

	AnthropicVersion       = "2023-06-01"
	AnthropicVersionHeader = "anthropic-version"
	AnthropicKeyHeader     = "x-api-key"
)
