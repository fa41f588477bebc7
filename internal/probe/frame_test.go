package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// tiny but complete JPEG byte stream: SOI, one marker segment, EOI.
var jpegFrame = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x04, 0x01, 0x02, 0xFF, 0xD9}

func TestFrameProber_MJPEGOneFrame(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n")
		w.Write(jpegFrame)
		fmt.Fprintf(w, "\r\n--frame\r\n")
	}))
	defer s.Close()

	p := NewFrameProber(2 * time.Second)
	out := p.Probe(context.Background(), s.URL)
	if !out.Up {
		t.Fatalf("want frame, got %+v", out)
	}
	if out.Message != "frame" {
		t.Fatalf("want 'frame', got %q", out.Message)
	}
}

func TestFrameProber_NoFrameInBody(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not an image"))
	}))
	defer s.Close()

	p := NewFrameProber(2 * time.Second)
	out := p.Probe(context.Background(), s.URL)
	if out.Up {
		t.Fatalf("want no frame, got %+v", out)
	}
	if out.Message != "no frame" {
		t.Fatalf("want 'no frame', got %q", out.Message)
	}
}

func TestFrameProber_HTTPErrorStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", 502)
	}))
	defer s.Close()

	p := NewFrameProber(2 * time.Second)
	out := p.Probe(context.Background(), s.URL)
	if out.Up {
		t.Fatalf("want down, got %+v", out)
	}
}

// fakeRTSPServer speaks just enough RTSP to hand out one interleaved packet.
func fakeRTSPServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	sdp := "v=0\r\nm=video 0 RTP/AVP 96\r\na=control:track1\r\n"
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 2048)
				for i := 0; i < 3; i++ {
					n, err := c.Read(buf)
					if err != nil {
						return
					}
					req := string(buf[:n])
					switch {
					case len(req) >= 8 && req[:8] == "DESCRIBE":
						fmt.Fprintf(c, "RTSP/1.0 200 OK\r\nCSeq: 1\r\nContent-Length: %d\r\n\r\n%s", len(sdp), sdp)
					case len(req) >= 5 && req[:5] == "SETUP":
						fmt.Fprintf(c, "RTSP/1.0 200 OK\r\nCSeq: 2\r\nSession: 12345678;timeout=60\r\n\r\n")
					case len(req) >= 4 && req[:4] == "PLAY":
						fmt.Fprintf(c, "RTSP/1.0 200 OK\r\nCSeq: 3\r\nSession: 12345678\r\n\r\n")
						// one interleaved RTP packet on channel 0
						c.Write([]byte{'$', 0, 0, 4, 0xDE, 0xAD, 0xBE, 0xEF})
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestFrameProber_RTSPOneInterleavedPacket(t *testing.T) {
	addr := fakeRTSPServer(t)
	p := NewFrameProber(2 * time.Second)
	out := p.Probe(context.Background(), "rtsp://"+addr+"/stream")
	if !out.Up {
		t.Fatalf("want frame over interleaved transport, got %+v", out)
	}
}

func TestFrameProber_RTSPRefusesDescribe(t *testing.T) {
	addr := fakeRTSP(t, "RTSP/1.0 503 Service Unavailable\r\nCSeq: 1\r\n\r\n")
	p := NewFrameProber(2 * time.Second)
	out := p.Probe(context.Background(), "rtsp://"+addr+"/stream")
	if out.Up {
		t.Fatalf("want down when DESCRIBE is refused, got %+v", out)
	}
}
