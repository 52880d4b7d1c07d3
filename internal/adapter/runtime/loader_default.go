//go:build !llama

package runtime

// DefaultLoader shells out to llama.cpp. Build with -tags llama for the in-process engine.
func DefaultLoader() Loader {
	return LoadSubprocess
}
