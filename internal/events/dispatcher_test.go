package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagevote/internal/platform/logger"
	"stagevote/pkg/domain"
)

func TestDispatcherAndWorker(t *testing.T) {
	log := logger.New()

	t.Run("worker fans events out to sinks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		d := NewDispatcher(16, log)
		first := NewMemorySink()
		second := NewMemorySink()
		worker := NewWorker(d.Inbox(), log, first, second)
		go func() { _ = worker.Run(ctx) }()

		comp := domain.NewCompetitionID()
		d.Emit(ctx, VoteAccepted(comp, domain.NewParticipantID(), 1, time.Now()))

		require.Eventually(t, func() bool {
			return len(first.Events()) == 1 && len(second.Events()) == 1
		}, time.Second, 5*time.Millisecond)

		got := first.Events()[0]
		assert.Equal(t, TypeVoteAccepted, got.Type)
		assert.Equal(t, comp, got.CompetitionID)
		assert.Equal(t, 1, got.NewCount)
	})

	t.Run("emit drops instead of blocking when inbox is full", func(t *testing.T) {
		dropped := 0
		d := NewDispatcher(1, log, WithDropHook(func() { dropped++ }))

		ctx := context.Background()
		comp := domain.NewCompetitionID()
		d.Emit(ctx, CompetitionFinalized(comp, nil, time.Now()))
		d.Emit(ctx, CompetitionFinalized(comp, nil, time.Now())) // inbox full

		assert.Equal(t, 1, dropped)
	})

	t.Run("worker stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		d := NewDispatcher(1, log)
		worker := NewWorker(d.Inbox(), log, NewMemorySink())

		errCh := make(chan error, 1)
		go func() { errCh <- worker.Run(ctx) }()
		cancel()

		select {
		case err := <-errCh:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
	})

	t.Run("memory sink filters by type", func(t *testing.T) {
		sink := NewMemorySink()
		ctx := context.Background()
		comp := domain.NewCompetitionID()
		require.NoError(t, sink.Deliver(ctx, VoteAccepted(comp, domain.NewParticipantID(), 1, time.Now())))
		require.NoError(t, sink.Deliver(ctx, VoteRejected(comp, domain.NewParticipantID(), domain.NewVoterID(), "DUPLICATE_VOTE", time.Now())))

		assert.Len(t, sink.ByType(TypeVoteAccepted), 1)
		assert.Len(t, sink.ByType(TypeVoteRejected), 1)
		assert.Empty(t, sink.ByType(TypeCompetitionFinalized))
	})
}
