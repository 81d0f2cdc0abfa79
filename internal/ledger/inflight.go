package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"stagevote/pkg/domain"
)

// ErrDrainTimeout is returned when in-flight submissions for a competition do
// not complete within the drain deadline. Finalize surfaces it as a retryable
// error instead of snapshotting a possibly-incomplete ledger.
var ErrDrainTimeout = errors.New("in-flight votes did not drain before deadline")

// Tracker counts vote submissions in flight per competition.
//
// A submission registers before admission checks run and deregisters when its
// outcome is resolved, so a drain wait observes every vote that could still
// reach the ledger. Finalize closes voting first (new submissions reject on
// status), then waits here for the remaining in-flight set to resolve.
type Tracker struct {
	mu     sync.Mutex
	counts map[domain.CompetitionID]int
	zeroed map[domain.CompetitionID]chan struct{} // closed when count returns to zero
}

func NewTracker() *Tracker {
	return &Tracker{
		counts: make(map[domain.CompetitionID]int),
		zeroed: make(map[domain.CompetitionID]chan struct{}),
	}
}

// Begin registers an in-flight submission and returns the completion func.
// Callers must invoke the returned func exactly once, typically via defer.
func (t *Tracker) Begin(competitionID domain.CompetitionID) func() {
	t.mu.Lock()
	t.counts[competitionID]++
	if t.counts[competitionID] == 1 {
		t.zeroed[competitionID] = make(chan struct{})
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.counts[competitionID]--
			if t.counts[competitionID] == 0 {
				close(t.zeroed[competitionID])
				delete(t.zeroed, competitionID)
				delete(t.counts, competitionID)
			}
			t.mu.Unlock()
		})
	}
}

// InFlight returns the current in-flight submission count for a competition.
func (t *Tracker) InFlight(competitionID domain.CompetitionID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[competitionID]
}

// AwaitDrain blocks until every submission in flight at call time has
// resolved, the timeout elapses (ErrDrainTimeout), or ctx is cancelled.
// Submissions started after the call do not extend the wait; they are
// rejected on competition status anyway once voting is closed.
func (t *Tracker) AwaitDrain(ctx context.Context, competitionID domain.CompetitionID, timeout time.Duration) error {
	t.mu.Lock()
	if t.counts[competitionID] == 0 {
		t.mu.Unlock()
		return nil
	}
	drained := t.zeroed[competitionID]
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-drained:
		return nil
	case <-timer.C:
		return ErrDrainTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
