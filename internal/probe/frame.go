package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/camwatch/camwatch/internal/domain"
)

const (
	frameScanLimit      = 1 << 20 // give up after 1 MiB without a complete frame
	DefaultFrameTimeout = 8 * time.Second
)

// FrameProber is the heavyweight fallback: it opens the actual media stream
// and reads exactly one frame, then hangs up. For RTSP that means a full
// DESCRIBE/SETUP/PLAY handshake with interleaved transport and one RTP
// packet; for HTTP it means scanning the response for one complete JPEG.
// The frame is counted, never decoded.
type FrameProber struct {
	Timeout time.Duration
	Client  *http.Client
}

func NewFrameProber(timeout time.Duration) *FrameProber {
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	return &FrameProber{
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (f *FrameProber) Probe(ctx context.Context, target string) Outcome {
	start := time.Now()
	var err error
	if domain.FamilyOf(target) == domain.FamilyRTSP {
		err = f.rtspFrame(ctx, target)
	} else {
		err = f.httpFrame(ctx, target)
	}
	lat := time.Since(start).Milliseconds()
	if err != nil {
		msg := "no frame"
		if !errors.Is(err, errNoFrame) {
			msg = connMessage(err)
		}
		return Outcome{Up: false, Message: msg, LatencyMS: lat}
	}
	return Outcome{Up: true, Message: "frame", LatencyMS: lat}
}

var errNoFrame = errors.New("no frame")

// httpFrame reads the body (an MJPEG multipart stream or a snapshot image)
// until one complete JPEG appears: SOI marker followed by EOI.
func (f *FrameProber) httpFrame(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	br := bufio.NewReader(io.LimitReader(resp.Body, frameScanLimit))
	if !scanJPEG(br) {
		return errNoFrame
	}
	return nil
}

// scanJPEG consumes the reader looking for 0xFFD8 ... 0xFFD9.
func scanJPEG(br *bufio.Reader) bool {
	inFrame := false
	var prev byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return false
		}
		if prev == 0xFF {
			if !inFrame && b == 0xD8 {
				inFrame = true
			} else if inFrame && b == 0xD9 {
				return true
			}
		}
		prev = b
	}
}

// rtspFrame runs the minimal control exchange needed to make the camera send
// media over the same TCP connection, then waits for the first interleaved
// packet.
func (f *FrameProber) rtspFrame(ctx context.Context, target string) error {
	addr, err := rtspAddr(target)
	if err != nil {
		return err
	}
	d := net.Dialer{Timeout: f.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(f.Timeout))
	br := bufio.NewReader(conn)

	cseq := 1
	request := func(method, uri string, extra ...string) (int, map[string]string, []byte, error) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %s RTSP/1.0\r\nCSeq: %d\r\nUser-Agent: %s\r\n", method, uri, cseq, rtspUserAgent)
		for _, h := range extra {
			sb.WriteString(h)
			sb.WriteString("\r\n")
		}
		sb.WriteString("\r\n")
		cseq++
		if _, err := conn.Write([]byte(sb.String())); err != nil {
			return 0, nil, nil, err
		}
		return readRTSPResponse(br)
	}

	code, hdr, body, err := request("DESCRIBE", target, "Accept: application/sdp")
	if err != nil || code != 200 {
		return firstErr(err, fmt.Errorf("describe %d", code))
	}
	control := trackControl(target, hdr, body)

	code, hdr, _, err = request("SETUP", control, "Transport: RTP/AVP/TCP;unicast;interleaved=0-1")
	if err != nil || code != 200 {
		return firstErr(err, fmt.Errorf("setup %d", code))
	}
	session := hdr["session"]
	if i := strings.IndexByte(session, ';'); i >= 0 {
		session = session[:i]
	}

	code, _, _, err = request("PLAY", target, "Session: "+session, "Range: npt=0.000-")
	if err != nil || code != 200 {
		return firstErr(err, fmt.Errorf("play %d", code))
	}

	return readInterleaved(br)
}

func firstErr(err error, alt error) error {
	if err != nil {
		return err
	}
	return alt
}

// readRTSPResponse parses one "RTSP/1.0 code reason" response with headers
// and an optional Content-Length body.
func readRTSPResponse(br *bufio.Reader) (int, map[string]string, []byte, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return 0, nil, nil, err
	}
	parts := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "RTSP/") {
		return 0, nil, nil, fmt.Errorf("malformed status line %q", strings.TrimSpace(line))
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("malformed status code %q", parts[1])
	}

	headers := make(map[string]string)
	for {
		h, err := br.ReadString('\n')
		if err != nil {
			return 0, nil, nil, err
		}
		h = strings.TrimSpace(h)
		if h == "" {
			break
		}
		if i := strings.IndexByte(h, ':'); i > 0 {
			headers[strings.ToLower(strings.TrimSpace(h[:i]))] = strings.TrimSpace(h[i+1:])
		}
	}

	var body []byte
	if cl, err := strconv.Atoi(headers["content-length"]); err == nil && cl > 0 {
		body = make([]byte, cl)
		if _, err := io.ReadFull(br, body); err != nil {
			return 0, nil, nil, err
		}
	}
	return code, headers, body, nil
}

// trackControl picks the control URI of the first media track in the SDP.
// Relative controls resolve against Content-Base, per RFC 2326.
func trackControl(target string, hdr map[string]string, sdp []byte) string {
	base := hdr["content-base"]
	if base == "" {
		base = target
	}
	var inMedia bool
	for _, line := range bytes.Split(sdp, []byte("\n")) {
		l := strings.TrimSpace(string(line))
		if strings.HasPrefix(l, "m=") {
			inMedia = true
			continue
		}
		if inMedia && strings.HasPrefix(l, "a=control:") {
			c := strings.TrimPrefix(l, "a=control:")
			if c == "*" || c == "" {
				return base
			}
			if strings.Contains(c, "://") {
				return c
			}
			return strings.TrimSuffix(base, "/") + "/" + c
		}
	}
	return base
}

// readInterleaved skips any interleaved control data until one framed media
// packet ('$' channel length payload) has been read in full.
func readInterleaved(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b != '$' {
			continue
		}
		var hdr [3]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			return err
		}
		size := binary.BigEndian.Uint16(hdr[1:])
		if _, err := io.CopyN(io.Discard, br, int64(size)); err != nil {
			return err
		}
		return nil
	}
}
