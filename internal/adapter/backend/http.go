package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/logger"
	"github.com/thushan/chillm/internal/util"
	"github.com/thushan/chillm/internal/version"
	"github.com/thushan/chillm/pkg/pool"
)

var bufferPool = pool.MustNew(func() *bytes.Buffer { return new(bytes.Buffer) })

// httpBackend is the transport shared by the JSON-over-HTTP adapters.
type httpBackend struct {
	client  *http.Client
	log     *logger.StyledLogger
	headers map[string]string
	kind    domain.BackendType
	baseURL string
	timeout time.Duration
}

func newHTTPBackend(settings domain.ProviderSettings, deps Deps, defaultBase string) *httpBackend {
	return &httpBackend{
		client:  deps.client(),
		log:     deps.log(),
		kind:    settings.Type,
		baseURL: baseURL(settings, defaultBase),
		timeout: settings.TimeoutOrDefault(),
		headers: map[string]string{},
	}
}

// baseURL prefers an explicit base_url, then a host that already carries a
// scheme, then http://host:port.
func baseURL(settings domain.ProviderSettings, defaultBase string) string {
	if settings.BaseURL != "" {
		return strings.TrimRight(settings.BaseURL, "/")
	}
	if strings.HasPrefix(settings.Host, "http://") || strings.HasPrefix(settings.Host, "https://") {
		return strings.TrimRight(settings.Host, "/")
	}
	if defaultBase != "" && settings.Host == "" {
		return defaultBase
	}
	host := settings.HostOrDefault()
	if port := settings.PortOrDefault(); port > 0 {
		return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	}
	return "http://" + host
}

func (h *httpBackend) target() string {
	return h.baseURL
}

func (h *httpBackend) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	return h.do(ctx, op, http.MethodPost, path, payload)
}

func (h *httpBackend) get(ctx context.Context, op, path string) ([]byte, error) {
	return h.do(ctx, op, http.MethodGet, path, nil)
}

func (h *httpBackend) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	url := util.ResolveURLPath(h.baseURL, path)

	ctx, span := tracer.Start(ctx, "backend."+op, trace.WithAttributes(
		attribute.String("backend.type", string(h.kind)),
		attribute.String("backend.target", h.baseURL),
		attribute.String("http.method", method),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	fail := func(status int, err error) ([]byte, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, domain.NewBackendError(string(h.kind), h.baseURL, op, status, time.Since(start), err)
	}

	var body io.Reader
	if payload != nil {
		buf := bufferPool.Get()
		defer bufferPool.Put(buf)
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return fail(0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(buf.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fail(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set(constants.UserAgentHeader, version.UserAgent())
	req.Header.Set("Accept", constants.DefaultContentTypeJSON)
	if payload != nil {
		req.Header.Set(constants.ContentTypeHeader, constants.DefaultContentTypeJSON)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v: %w", h.timeout, context.DeadlineExceeded)
		}
		return fail(0, err)
	}
	defer func() {
		// dont care about errors on close
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(resp.StatusCode, fmt.Errorf("%s", truncate(strings.TrimSpace(string(data)), maxErrorSnippet)))
	}

	h.log.Debug("Backend call complete",
		"backend", h.kind,
		"op", op,
		"status", resp.StatusCode,
		"latency", time.Since(start))
	return data, nil
}

// unexpected wraps a response that decoded but carried none of the fields we read.
func (h *httpBackend) unexpected(op string, data []byte) error {
	return domain.NewBackendError(string(h.kind), h.baseURL, op, 0, 0,
		fmt.Errorf("%w: %s", domain.ErrEmptyResponse, truncate(string(data), maxErrorSnippet)))
}
