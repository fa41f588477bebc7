package domain

import (
	"strings"
	"time"
)

// Family is the probing protocol family of an endpoint. It is derived once
// from the URL scheme when the endpoint is built and never changes afterwards;
// a feed whose URL moves to another scheme is dropped and re-added.
type Family string

const (
	FamilyRTSP Family = "rtsp"
	FamilyHTTP Family = "http"
)

// Endpoint is one monitored camera feed.
type Endpoint struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Family Family `json:"family"`
}

func NewEndpoint(name, url string) Endpoint {
	return Endpoint{Name: name, URL: url, Family: FamilyOf(url)}
}

// FamilyOf maps a URL scheme to its protocol family. Anything that is not
// rtsp(s) is probed over HTTP.
func FamilyOf(url string) Family {
	u := strings.ToLower(url)
	if strings.HasPrefix(u, "rtsp://") || strings.HasPrefix(u, "rtsps://") {
		return FamilyRTSP
	}
	return FamilyHTTP
}

// ProbeResult is one health record for an endpoint. Records are append-only:
// the monitor writes them once and never updates or deletes them.
type ProbeResult struct {
	Endpoint  string    `json:"endpoint"`
	Up        bool      `json:"up"`
	LatencyMS *int64    `json:"latency_ms,omitempty"` // nil when not measurable
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}
