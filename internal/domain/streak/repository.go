package streak

import (
	"context"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// Repository persists streak state.
type Repository interface {
	// Get returns the stored state or shared.ErrStreakNotFound.
	Get(ctx context.Context, userID shared.UserID) (*State, error)

	// Save writes the state if the stored version still equals state.Version
	// (zero inserts a new row). On success state.Version is incremented.
	// A stale version yields shared.ErrStreakVersion.
	Save(ctx context.Context, state *State) error
}
