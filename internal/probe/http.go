package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	httpPeekBytes      = 64
	DefaultHTTPTimeout = 3 * time.Second
)

// HTTPProber checks MJPEG (or any plain HTTP) endpoints with a HEAD request,
// falling back to a GET that reads only a tiny body prefix when the camera
// does not implement HEAD. It never pulls the stream payload.
type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPProber{
		Client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPProber) Probe(ctx context.Context, target string) Outcome {
	start := time.Now()
	fail := func(err error) Outcome {
		return Outcome{Up: false, Message: connMessage(err), LatencyMS: time.Since(start).Milliseconds()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fail(err)
	}
	resp, err := h.Client.Do(req)
	if err == nil && resp.StatusCode != http.StatusMethodNotAllowed {
		resp.Body.Close()
		return statusOutcome(resp.StatusCode, start)
	}
	if resp != nil {
		resp.Body.Close()
	}

	// HEAD unsupported or failed; GET a small prefix instead.
	req2, err2 := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err2 != nil {
		return fail(err2)
	}
	resp2, err2 := h.Client.Do(req2)
	if err2 != nil {
		return fail(err2)
	}
	defer resp2.Body.Close()
	_, _ = io.CopyN(io.Discard, resp2.Body, httpPeekBytes)
	return statusOutcome(resp2.StatusCode, start)
}

func statusOutcome(code int, start time.Time) Outcome {
	return Outcome{
		Up:        code >= 200 && code < 400,
		Message:   fmt.Sprintf("HTTP %d", code),
		LatencyMS: time.Since(start).Milliseconds(),
	}
}
