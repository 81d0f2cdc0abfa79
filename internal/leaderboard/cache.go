package leaderboard

import (
	"context"

	"stagevote/pkg/domain"
)

// Cache holds recently computed full boards. Only the unfiltered board is
// cached; country filters and paging are applied after the fact so one entry
// serves every variant of the read.
//
// A miss is (zero Board, false, nil). Implementations expire entries on a
// short TTL; staleness up to the TTL is acceptable for standings reads.
type Cache interface {
	Get(ctx context.Context, competitionID domain.CompetitionID) (Board, bool, error)
	Set(ctx context.Context, competitionID domain.CompetitionID, board Board) error

	// Invalidate drops the entry, used when a finalize needs a fresh read.
	Invalidate(ctx context.Context, competitionID domain.CompetitionID) error
}
