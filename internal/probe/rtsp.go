package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	rtspDefaultPort    = "554"
	rtspReadLimit      = 512
	rtspUserAgent      = "camwatch/1.0"
	DefaultRTSPTimeout = 3500 * time.Millisecond
)

// RTSPProber checks a stream-control endpoint by sending a single DESCRIBE
// request over TCP and classifying the first status line of the reply. It
// never negotiates media; one request, one bounded read.
type RTSPProber struct {
	Timeout time.Duration
}

func NewRTSPProber(timeout time.Duration) *RTSPProber {
	if timeout <= 0 {
		timeout = DefaultRTSPTimeout
	}
	return &RTSPProber{Timeout: timeout}
}

func (p *RTSPProber) Probe(ctx context.Context, target string) Outcome {
	start := time.Now()
	fail := func(msg string) Outcome {
		return Outcome{Up: false, Message: msg, LatencyMS: time.Since(start).Milliseconds()}
	}

	addr, err := rtspAddr(target)
	if err != nil {
		return fail("error: " + err.Error())
	}

	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fail(connMessage(err))
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(p.Timeout))
	req := fmt.Sprintf("DESCRIBE %s RTSP/1.0\r\nCSeq: 1\r\nUser-Agent: %s\r\nAccept: application/sdp\r\n\r\n",
		target, rtspUserAgent)
	if _, err := conn.Write([]byte(req)); err != nil {
		return fail(connMessage(err))
	}

	buf := make([]byte, rtspReadLimit)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return fail(connMessage(err))
	}

	up, msg := classifyRTSP(string(buf[:n]))
	return Outcome{Up: up, Message: msg, LatencyMS: time.Since(start).Milliseconds()}
}

// classifyRTSP keeps the reachable-but-restricted statuses distinct from a
// plain 200: the camera answered, so it is alive, even if it refuses this
// particular request.
func classifyRTSP(status string) (bool, string) {
	switch {
	case strings.Contains(status, "RTSP/1.0 200"):
		return true, "RTSP 200"
	case strings.Contains(status, "RTSP/1.0 401"):
		return true, "RTSP 401 Unauthorized"
	case strings.Contains(status, "RTSP/1.0 403"):
		return true, "RTSP 403 Forbidden"
	case strings.Contains(status, "RTSP/1.0 404"):
		return true, "RTSP 404 Not Found"
	case strings.Contains(status, "RTSP/1.0 454"):
		return true, "RTSP 454 Session Not Found"
	default:
		return false, "RTSP not 200"
	}
}

func rtspAddr(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("missing host in url")
	}
	port := u.Port()
	if port == "" {
		port = rtspDefaultPort
	}
	return net.JoinHostPort(host, port), nil
}

// connMessage collapses transport errors to the two classifications the
// record consumers key on.
func connMessage(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error: " + err.Error()
}
