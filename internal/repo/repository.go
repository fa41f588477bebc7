package repo

import (
	"context"
	"time"

	"github.com/camwatch/camwatch/internal/domain"
)

// LatestRow is the most recent record per endpoint, the shape the status API
// serves.
type LatestRow struct {
	Endpoint  string    `json:"endpoint"`
	Up        bool      `json:"up"`
	LatencyMS *int64    `json:"latency_ms"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}

// ResultStore is the append-only per-endpoint time series the monitor writes
// into. Adapters must serialize concurrent appends; the monitor issues at
// most one append per completed probe.
type ResultStore interface {
	Append(ctx context.Context, r *domain.ProbeResult) error
	// Latest returns nil, nil when the endpoint has no records yet.
	Latest(ctx context.Context, endpoint string) (*domain.ProbeResult, error)
	// History returns up to limit records, most recent first.
	History(ctx context.Context, endpoint string, limit int) ([]domain.ProbeResult, error)
	// Snapshot returns the latest record for every endpoint seen so far.
	Snapshot(ctx context.Context) ([]LatestRow, error)
}
