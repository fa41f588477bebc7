package probe

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeRTSP answers every connection with a canned response and closes.
func fakeRTSP(t *testing.T, response string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 1024)
				_, _ = c.Read(buf) // consume the DESCRIBE
				_, _ = c.Write([]byte(response))
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestRTSPProber_200(t *testing.T) {
	addr := fakeRTSP(t, "RTSP/1.0 200 OK\r\nCSeq: 1\r\n\r\n")
	p := NewRTSPProber(2 * time.Second)
	out := p.Probe(context.Background(), "rtsp://"+addr+"/stream")
	if !out.Up {
		t.Fatalf("want up, got %+v", out)
	}
	if out.Message != "RTSP 200" {
		t.Fatalf("want 'RTSP 200', got %q", out.Message)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %d", out.LatencyMS)
	}
}

// A 401 means the camera is alive but wants credentials; that must stay
// distinguishable from a plain 200.
func TestRTSPProber_UnauthorizedIsUpWithMessage(t *testing.T) {
	addr := fakeRTSP(t, "RTSP/1.0 401 Unauthorized\r\nCSeq: 1\r\n\r\n")
	p := NewRTSPProber(2 * time.Second)
	out := p.Probe(context.Background(), "rtsp://"+addr+"/stream")
	if !out.Up {
		t.Fatalf("401 should count as reachable, got %+v", out)
	}
	if !strings.Contains(out.Message, "Unauthorized") {
		t.Fatalf("message must keep the restricted classification, got %q", out.Message)
	}
}

func TestRTSPProber_SessionNotFoundIsUp(t *testing.T) {
	addr := fakeRTSP(t, "RTSP/1.0 454 Session Not Found\r\nCSeq: 1\r\n\r\n")
	p := NewRTSPProber(2 * time.Second)
	out := p.Probe(context.Background(), "rtsp://"+addr+"/stream")
	if !out.Up || !strings.Contains(out.Message, "454") {
		t.Fatalf("want up with 454 message, got %+v", out)
	}
}

func TestRTSPProber_UnknownStatusIsDown(t *testing.T) {
	addr := fakeRTSP(t, "RTSP/1.0 500 Internal Server Error\r\nCSeq: 1\r\n\r\n")
	p := NewRTSPProber(2 * time.Second)
	out := p.Probe(context.Background(), "rtsp://"+addr+"/stream")
	if out.Up {
		t.Fatalf("500 should be down, got %+v", out)
	}
	if out.Message != "RTSP not 200" {
		t.Fatalf("want 'RTSP not 200', got %q", out.Message)
	}
}

func TestRTSPProber_GarbageResponseIsDown(t *testing.T) {
	addr := fakeRTSP(t, "ICY 200 OK\r\n\r\n")
	p := NewRTSPProber(2 * time.Second)
	out := p.Probe(context.Background(), "rtsp://"+addr+"/stream")
	if out.Up {
		t.Fatalf("non-RTSP response should be down, got %+v", out)
	}
}

func TestRTSPProber_SilentServerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// accept and say nothing
			defer conn.Close()
		}
	}()

	p := NewRTSPProber(100 * time.Millisecond)
	out := p.Probe(context.Background(), "rtsp://"+ln.Addr().String()+"/stream")
	if out.Up {
		t.Fatalf("want down on timeout, got %+v", out)
	}
	if out.Message != "timeout" {
		t.Fatalf("want 'timeout', got %q", out.Message)
	}
}

func TestRTSPProber_ConnectionRefused(t *testing.T) {
	// grab a port and release it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := NewRTSPProber(time.Second)
	out := p.Probe(context.Background(), "rtsp://"+addr+"/stream")
	if out.Up {
		t.Fatalf("want down, got %+v", out)
	}
	if !strings.HasPrefix(out.Message, "error: ") {
		t.Fatalf("want 'error: ...' classification, got %q", out.Message)
	}
}

func TestRTSPProber_BadURL(t *testing.T) {
	p := NewRTSPProber(time.Second)
	out := p.Probe(context.Background(), "rtsp://")
	if out.Up {
		t.Fatalf("want down for url without host, got %+v", out)
	}
}
