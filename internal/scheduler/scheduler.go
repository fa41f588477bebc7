package scheduler

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/camwatch/camwatch/internal/config"
	"github.com/camwatch/camwatch/internal/domain"
	"github.com/camwatch/camwatch/internal/probe"
	"github.com/camwatch/camwatch/internal/repo"
)

// minProbeDelay keeps a tiny lane from hammering its endpoints back to back.
const minProbeDelay = 50 * time.Millisecond

// Plan is the per-lane sizing decision for the current tick: how many worker
// slots are active and how long each sleeps between probes so the lane's
// aggregate rate tracks the heartbeat target.
type Plan struct {
	Workers int
	Delay   time.Duration
}

// Scheduler owns the lanes and all per-endpoint state. Workers receive it by
// handle and never touch state they were not given through it.
type Scheduler struct {
	logger   *zap.Logger
	clock    clockwork.Clock
	sink     repo.ResultStore
	probers  map[domain.Family]probe.Prober
	fallback probe.Prober

	maxWorkers int // worker slots spawned per lane; plans never exceed it

	mu        sync.RWMutex
	states    map[string]*endpointState
	lanes     map[domain.Family]*lane
	heartbeat time.Duration
	backoff   time.Duration // backoff base delay for the first failure
}

func New(
	logger *zap.Logger,
	clock clockwork.Clock,
	sink repo.ResultStore,
	probers map[domain.Family]probe.Prober,
	fallback probe.Prober,
	maxWorkers int,
) *Scheduler {
	if maxWorkers < 1 {
		maxWorkers = config.DefaultMaxWorkers
	}
	return &Scheduler{
		logger:     logger,
		clock:      clock,
		sink:       sink,
		probers:    probers,
		fallback:   fallback,
		maxWorkers: maxWorkers,
		states:     make(map[string]*endpointState),
		lanes: map[domain.Family]*lane{
			domain.FamilyRTSP: newLane(domain.FamilyRTSP, clock),
			domain.FamilyHTTP: newLane(domain.FamilyHTTP, clock),
		},
		heartbeat: time.Duration(config.DefaultHeartbeatSeconds) * time.Second,
		backoff:   defaultBackoffBase,
	}
}

// Apply reconciles the endpoint set against a new configuration. Endpoints
// present in both keep their backoff state; new or rewritten ones start
// fresh and immediately eligible; absent ones are dropped. Prior results in
// the sink are untouched.
func (s *Scheduler) Apply(cfg *config.Config) {
	s.mu.Lock()
	s.heartbeat = cfg.Heartbeat()
	if cfg.BackoffBase > 0 {
		s.backoff = cfg.BackoffBase
	}

	var added, kept int
	next := make(map[string]*endpointState, len(cfg.Streams))
	for _, st := range cfg.Streams {
		if cur, ok := s.states[st.Name]; ok && cur.ep.URL == st.URL {
			next[st.Name] = cur
			kept++
			continue
		}
		// new endpoint, or a URL change modeled as delete+recreate
		next[st.Name] = &endpointState{ep: domain.NewEndpoint(st.Name, st.URL)}
		added++
	}
	dropped := len(s.states) - kept
	s.states = next

	for fam, ln := range s.lanes {
		items := make([]*endpointState, 0, len(next))
		for _, st := range next {
			if st.ep.Family == fam {
				items = append(items, st)
			}
		}
		ln.rebuild(items)
	}
	s.mu.Unlock()

	s.logger.Info("scheduler_reconciled",
		zap.Int("endpoints", len(next)),
		zap.Int("added", added),
		zap.Int("dropped", dropped),
		zap.Duration("heartbeat", cfg.Heartbeat()),
	)
}

func (s *Scheduler) backoffBase() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backoff
}

// planFor sizes a lane so the sum of per-worker rates meets the heartbeat
// target: with N endpoints and heartbeat H the lane needs N/H probes per
// second, spread over ceil(N/H) workers each pacing at W/(N/H).
func (s *Scheduler) planFor(l *lane) Plan {
	s.mu.RLock()
	h := s.heartbeat
	s.mu.RUnlock()

	n := l.size()
	if n == 0 {
		return Plan{Workers: 0, Delay: time.Second}
	}
	rate := float64(n) / h.Seconds()
	w := int(math.Ceil(rate))
	if w < 1 {
		w = 1
	}
	if w > s.maxWorkers {
		w = s.maxWorkers
	}
	delay := time.Duration(float64(w) / rate * float64(time.Second))
	if delay < minProbeDelay {
		delay = minProbeDelay
	}
	return Plan{Workers: w, Delay: delay}
}

// Run spawns the fixed worker slots for every lane and blocks until ctx is
// cancelled. Slots beyond the current plan idle cheaply, so scale-up on a
// config change needs no new goroutines.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, ln := range s.lanes {
		for wid := 0; wid < s.maxWorkers; wid++ {
			wg.Add(1)
			go func(l *lane, wid int) {
				defer wg.Done()
				s.worker(ctx, l, wid)
			}(ln, wid)
		}
	}
	wg.Wait()
	s.logger.Info("scheduler_stopped")
}
