package badge

import (
	"context"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// AwardRequest asks for one conditional earn_count increment.
type AwardRequest struct {
	UserID   shared.UserID
	BadgeKey string
	// Limit is the highest earn_count this award may produce. It is never
	// above the definition's MaximumEarnings.
	Limit int
	At    time.Time
}

// Repository persists user badges.
type Repository interface {
	// ListByUser returns all badges the user has earned at least once.
	ListByUser(ctx context.Context, userID shared.UserID) ([]UserBadge, error)

	// Award increments earn_count by one, inserting the row if absent, only
	// while earn_count < req.Limit. The check and the increment are a single
	// atomic step. awarded is false when the limit was already reached.
	Award(ctx context.Context, req AwardRequest) (badge *UserBadge, awarded bool, err error)
}

// Catalog supplies badge definitions.
type Catalog interface {
	BadgeDefinitions(ctx context.Context) ([]Definition, error)
}
