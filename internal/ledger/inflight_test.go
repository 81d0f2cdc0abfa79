package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagevote/pkg/domain"
)

func TestTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("drain returns immediately with nothing in flight", func(t *testing.T) {
		tr := NewTracker()
		require.NoError(t, tr.AwaitDrain(ctx, domain.NewCompetitionID(), 10*time.Millisecond))
	})

	t.Run("drain waits for in-flight submissions", func(t *testing.T) {
		tr := NewTracker()
		comp := domain.NewCompetitionID()
		done := tr.Begin(comp)
		assert.Equal(t, 1, tr.InFlight(comp))

		go func() {
			time.Sleep(20 * time.Millisecond)
			done()
		}()

		require.NoError(t, tr.AwaitDrain(ctx, comp, time.Second))
		assert.Equal(t, 0, tr.InFlight(comp))
	})

	t.Run("drain times out when submissions stall", func(t *testing.T) {
		tr := NewTracker()
		comp := domain.NewCompetitionID()
		done := tr.Begin(comp)
		defer done()

		err := tr.AwaitDrain(ctx, comp, 20*time.Millisecond)
		require.ErrorIs(t, err, ErrDrainTimeout)
	})

	t.Run("drain honours context cancellation", func(t *testing.T) {
		tr := NewTracker()
		comp := domain.NewCompetitionID()
		done := tr.Begin(comp)
		defer done()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := tr.AwaitDrain(cancelled, comp, time.Second)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("completion func is idempotent", func(t *testing.T) {
		tr := NewTracker()
		comp := domain.NewCompetitionID()
		done := tr.Begin(comp)
		done()
		done()
		assert.Equal(t, 0, tr.InFlight(comp))
	})

	t.Run("concurrent begin and end balance out", func(t *testing.T) {
		tr := NewTracker()
		comp := domain.NewCompetitionID()

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				done := tr.Begin(comp)
				time.Sleep(time.Millisecond)
				done()
			}()
		}
		wg.Wait()

		assert.Equal(t, 0, tr.InFlight(comp))
		require.NoError(t, tr.AwaitDrain(ctx, comp, 10*time.Millisecond))
	})
}
