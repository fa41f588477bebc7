package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/camwatch/camwatch/internal/domain"
	"github.com/camwatch/camwatch/internal/probe"
)

const (
	// recheck cadence while a slot is parked (above the plan's worker count
	// or with nothing eligible in the lane)
	idleRecheck  = 500 * time.Millisecond
	emptyRecheck = 150 * time.Millisecond

	// consecutive light-probe failures before the frame fallback kicks in
	fallbackAfterFails = 3
)

// worker is one slot's loop: consult the plan, claim an endpoint, probe it,
// settle the outcome, record, pace. Probe failures never escape this loop.
func (s *Scheduler) worker(ctx context.Context, l *lane, wid int) {
	for ctx.Err() == nil {
		p := s.planFor(l)
		if wid >= p.Workers {
			s.sleep(ctx, idleRecheck)
			continue
		}

		st := l.nextEligible()
		if st == nil {
			s.sleep(ctx, emptyRecheck)
			continue
		}

		out := s.probeOnce(ctx, st)
		l.settle(st, out.Up, s.backoffBase())

		lat := out.LatencyMS
		res := &domain.ProbeResult{
			Endpoint:  st.ep.Name,
			Up:        out.Up,
			LatencyMS: &lat,
			Message:   out.Message,
			CheckedAt: s.clock.Now().UTC(),
		}
		if err := s.sink.Append(ctx, res); err != nil {
			s.logger.Warn("worker_append_error",
				zap.String("endpoint", st.ep.Name),
				zap.Error(err),
			)
		} else {
			s.logger.Debug("worker_checked",
				zap.String("endpoint", st.ep.Name),
				zap.String("family", string(st.ep.Family)),
				zap.Bool("up", out.Up),
				zap.Int64("latency_ms", out.LatencyMS),
				zap.String("message", out.Message),
			)
		}

		s.sleep(ctx, p.Delay)
	}
}

// probeOnce runs the family's light probe and, once the endpoint has failed
// enough light probes in a row, lets a successful frame fetch override the
// failure for this cycle.
func (s *Scheduler) probeOnce(ctx context.Context, st *endpointState) probe.Outcome {
	out := s.probers[st.ep.Family].Probe(ctx, st.ep.URL)
	// st.fails is stable here: the claim keeps other workers off this endpoint
	if !out.Up && s.fallback != nil && st.fails >= fallbackAfterFails {
		if fb := s.fallback.Probe(ctx, st.ep.URL); fb.Up {
			out = fb
		}
	}
	return out
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-s.clock.After(d):
	}
}
