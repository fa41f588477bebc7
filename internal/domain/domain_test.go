package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFamilyOf(t *testing.T) {
	cases := []struct {
		url  string
		want Family
	}{
		{"rtsp://cam.local/stream1", FamilyRTSP},
		{"RTSP://CAM.LOCAL/STREAM1", FamilyRTSP},
		{"rtsps://cam.local:322/s", FamilyRTSP},
		{"http://cam.local/mjpeg", FamilyHTTP},
		{"https://cam.local/mjpeg", FamilyHTTP},
		{"garbage", FamilyHTTP},
	}
	for _, c := range cases {
		if got := FamilyOf(c.url); got != c.want {
			t.Fatalf("FamilyOf(%q)=%v want %v", c.url, got, c.want)
		}
	}
}

func TestNewEndpoint_DerivesFamilyOnce(t *testing.T) {
	ep := NewEndpoint("cam1", "rtsp://cam.local/stream1")
	if ep.Family != FamilyRTSP {
		t.Fatalf("want rtsp family, got %v", ep.Family)
	}
	ep2 := NewEndpoint("cam2", "http://cam.local/mjpeg")
	if ep2.Family != FamilyHTTP {
		t.Fatalf("want http family, got %v", ep2.Family)
	}
}

func TestProbeResult_JSONRoundTrip(t *testing.T) {
	lat := int64(42)
	want := ProbeResult{
		Endpoint:  "cam1",
		Up:        true,
		LatencyMS: &lat,
		Message:   "RTSP 200",
		CheckedAt: time.Date(2026, 8, 18, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got ProbeResult
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Endpoint != want.Endpoint || got.Up != want.Up ||
		got.Message != want.Message || !got.CheckedAt.Equal(want.CheckedAt) {
		t.Fatalf("mismatch after round-trip:\nwant=%+v\ngot =%+v", want, got)
	}
	if got.LatencyMS == nil || *got.LatencyMS != lat {
		t.Fatalf("latency mismatch: %v", got.LatencyMS)
	}
}
