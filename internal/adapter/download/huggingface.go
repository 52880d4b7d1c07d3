package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/logger"
	"github.com/thushan/chillm/internal/util"
	"github.com/thushan/chillm/internal/version"
	"github.com/thushan/chillm/pkg/format"
)

const (
	DefaultBaseURL = "https://huggingface.co"
	EnvToken       = "HF_TOKEN"

	tempPattern = ".download-*.part"

	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
	maxRetryDelay     = 15 * time.Second
)

var ErrDownloadFailed = errors.New("model download failed")

// HuggingFace fetches repo/filename from the hub's resolve endpoint into a
// cache directory. Concurrent fetches of the same file share one transfer.
type HuggingFace struct {
	client  *http.Client
	log     *logger.StyledLogger
	flight  singleflight.Group
	baseURL    string
	token      string
	attempts   int
	retryDelay time.Duration
}

type Option func(*HuggingFace)

func WithBaseURL(u string) Option {
	return func(h *HuggingFace) { h.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(h *HuggingFace) { h.client = c }
}

func WithLogger(l *logger.StyledLogger) Option {
	return func(h *HuggingFace) { h.log = l }
}

func WithToken(token string) Option {
	return func(h *HuggingFace) { h.token = token }
}

// WithRetries sets how many times a transfer is tried and the first backoff delay.
// Only connection failures and 429/5xx responses are retried.
func WithRetries(attempts int, delay time.Duration) Option {
	return func(h *HuggingFace) {
		if attempts > 0 {
			h.attempts = attempts
		}
		h.retryDelay = delay
	}
}

func NewHuggingFace(opts ...Option) *HuggingFace {
	h := &HuggingFace{
		client:  &http.Client{Transport: http.DefaultTransport},
		log:     logger.NewDiscard(),
		baseURL:    DefaultBaseURL,
		token:      os.Getenv(EnvToken),
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// URL is where repo/filename is downloaded from.
func (h *HuggingFace) URL(repo, filename string) string {
	return util.ResolveURLPath(h.baseURL, path.Join(repo, "resolve", "main", filename))
}

// Fetch returns the cached path if the file already exists, otherwise downloads it
// to a temporary file and renames it into place.
func (h *HuggingFace) Fetch(ctx context.Context, repo, filename, cacheDir string) (string, error) {
	dest := filepath.Join(cacheDir, filepath.Base(filename))
	if present(dest) {
		return dest, nil
	}

	v, err, shared := h.flight.Do(dest, func() (any, error) {
		if present(dest) {
			return dest, nil
		}
		return dest, h.downloadWithRetry(ctx, h.URL(repo, filename), dest)
	})
	if shared {
		h.log.Debug("Joined in-flight download", "file", filename)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// transferError carries the HTTP status of a failed transfer, zero when no
// response arrived.
type transferError struct {
	err    error
	status int
}

func (e *transferError) Error() string { return e.err.Error() }
func (e *transferError) Unwrap() error { return e.err }

func (e *transferError) retryable() bool {
	return e.status == 0 || e.status == http.StatusTooManyRequests || e.status >= 500
}

func (h *HuggingFace) downloadWithRetry(ctx context.Context, url, dest string) error {
	var err error
	for attempt := 1; attempt <= h.attempts; attempt++ {
		if err = h.download(ctx, url, dest); err == nil {
			return nil
		}
		var te *transferError
		if !errors.As(err, &te) || !te.retryable() || attempt == h.attempts || ctx.Err() != nil {
			return err
		}

		delay := util.CalculateExponentialBackoff(attempt, h.retryDelay, maxRetryDelay, 0.2)
		h.log.Warn("Download failed, retrying", "url", url, "attempt", attempt, "delay", format.Duration(delay), "error", err)
		if serr := util.SleepContext(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

func (h *HuggingFace) download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set(constants.UserAgentHeader, version.UserAgent())
	if h.token != "" {
		req.Header.Set(constants.AuthorizationHeader, "Bearer "+h.token)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return &transferError{err: fmt.Errorf("%w: %s: %w", ErrDownloadFailed, url, err)}
	}
	defer func() {
		// dont care about errors on close
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return &transferError{
			err:    fmt.Errorf("%w: %s: HTTP %d: %s", ErrDownloadFailed, url, resp.StatusCode, snippet),
			status: resp.StatusCode,
		}
	}

	size := "unknown size"
	if resp.ContentLength > 0 {
		size = format.Bytes(uint64(resp.ContentLength))
	}
	h.log.Debug("Starting transfer", "url", url, "size", size)

	tmp, err := os.CreateTemp(filepath.Dir(dest), tempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	written, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && resp.ContentLength > 0 && written != resp.ContentLength {
		copyErr = fmt.Errorf("short read: got %d of %d bytes", written, resp.ContentLength)
	}
	if copyErr != nil {
		_ = os.Remove(tmpName)
		return &transferError{err: fmt.Errorf("%w: %s: %w", ErrDownloadFailed, url, copyErr)}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	h.log.Info("Model downloaded",
		"file", filepath.Base(dest),
		"size", format.Bytes(uint64(written)),
		"took", format.Duration(time.Since(start)))
	return nil
}

func present(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir() && info.Size() > 0
}
