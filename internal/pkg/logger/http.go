package logger

import (
	log "log/slog"
	"net/http"
	"time"
)

// HTTPTransport 记录出站 HTTP 请求（推送服务、网关客户端）
type HTTPTransport struct {
	Transport http.RoundTripper
	Slow      time.Duration
}

func NewHTTPTransport(next http.RoundTripper) *HTTPTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &HTTPTransport{Transport: next, Slow: 500 * time.Millisecond}
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if id := TraceID(req.Context()); id != "" && req.Header.Get("X-Trace-ID") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("X-Trace-ID", id)
	}

	start := time.Now()
	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(start)

	fields := []any{
		log.String("method", req.Method),
		log.String("host", req.URL.Host),
		log.String("path", req.URL.Path),
		log.Duration("latency", elapsed),
	}

	if err != nil {
		log.ErrorContext(req.Context(), "HTTP_CLIENT_ERROR", append(fields, log.Any("err", err))...)
		return nil, err
	}

	fields = append(fields, log.Int("status", resp.StatusCode))
	switch {
	case resp.StatusCode >= 500:
		log.WarnContext(req.Context(), "HTTP_CLIENT_5XX", fields...)
	case elapsed > t.Slow:
		log.WarnContext(req.Context(), "HTTP_CLIENT_SLOW", fields...)
	default:
		log.DebugContext(req.Context(), "HTTP_CLIENT", fields...)
	}
	return resp, nil
}
