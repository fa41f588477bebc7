package probe

import "context"

// Outcome is the unified result of a single probe.
//
// Up plus Message carry a two-tier signal for stream-control endpoints: a
// camera that answers the handshake with 401/403/404/454 is reachable (Up)
// but the message records that it is not necessarily usable. Callers must
// keep the message alongside the boolean.
type Outcome struct {
	Up        bool
	Message   string
	LatencyMS int64
}

// Prober performs a single liveness check for a given target URL.
type Prober interface {
	Probe(ctx context.Context, target string) Outcome
}
