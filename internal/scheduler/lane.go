package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/camwatch/camwatch/internal/domain"
)

const (
	defaultBackoffBase = 5 * time.Second
	backoffCap         = 90 * time.Second
	backoffMaxExponent = 5
)

// endpointState is the mutable health state of one endpoint. All fields are
// guarded by the owning lane's mutex; between nextEligible and settle the
// claiming worker has exclusive use.
type endpointState struct {
	ep         domain.Endpoint
	fails      int
	eligibleAt time.Time
	claimed    bool
}

// backoffDelay grows exponentially with the failure streak up to a hard cap.
func backoffDelay(base time.Duration, streak int) time.Duration {
	if base <= 0 {
		base = defaultBackoffBase
	}
	e := streak
	if e > backoffMaxExponent {
		e = backoffMaxExponent
	}
	d := base << uint(e)
	if d > backoffCap {
		d = backoffCap
	}
	return d
}

// lane groups the endpoints of one protocol family and hands them out round
// robin, skipping endpoints that are claimed or still backing off.
type lane struct {
	family domain.Family
	clock  clockwork.Clock

	mu     sync.Mutex
	items  []*endpointState
	cursor int
}

func newLane(family domain.Family, clock clockwork.Clock) *lane {
	return &lane{family: family, clock: clock}
}

// rebuild replaces the membership, keeping name order so traversal stays
// deterministic across reloads. Backoff state lives in the states themselves;
// rebuild neither creates nor discards it.
func (l *lane) rebuild(items []*endpointState) {
	sort.Slice(items, func(i, j int) bool { return items[i].ep.Name < items[j].ep.Name })
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = items
	if l.cursor >= len(items) {
		l.cursor = 0
	}
}

func (l *lane) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// nextEligible advances the cursor at most one full lap and claims the first
// endpoint that is neither claimed nor backing off. Returns nil when the lane
// is empty or everything is waiting.
func (l *lane) nextEligible() *endpointState {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.items)
	if n == 0 {
		return nil
	}
	now := l.clock.Now()
	for i := 0; i < n; i++ {
		st := l.items[l.cursor]
		l.cursor = (l.cursor + 1) % n
		if st.claimed || now.Before(st.eligibleAt) {
			continue
		}
		st.claimed = true
		return st
	}
	return nil
}

// settle applies a probe outcome to a claimed endpoint and releases the
// claim. Success makes the endpoint immediately eligible again; failure
// pushes eligibility out by the backoff delay grown from base.
func (l *lane) settle(st *endpointState, up bool, base time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if up {
		st.fails = 0
		st.eligibleAt = now
	} else {
		st.fails++
		st.eligibleAt = now.Add(backoffDelay(base, st.fails))
	}
	st.claimed = false
}
