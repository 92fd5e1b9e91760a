package command

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
	"github.com/powlax/gamification-engine/internal/infrastructure/persistence/memory"
)

var (
	day0 = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

	offenseDrill    = scoring.Drill{ID: "d1", DifficultyScore: 3, Category: "Offensive Drills"}
	transitionDrill = scoring.Drill{ID: "d2", DifficultyScore: 3, Category: "Transition"}
	workoutDrills   = []scoring.Drill{offenseDrill, transitionDrill}
)

func testBadges() []badge.Definition {
	return []badge.Definition{
		{Key: "first-workout", Name: "First Workout", EarnedByType: badge.EarnedByMilestone, WorkoutRequirement: 1, MaximumEarnings: 1},
		{Key: "attack-apprentice", Name: "Attack Apprentice", EarnedByType: badge.EarnedByPoints, PointsTypeRequired: "attack_tokens", PointsRequired: 5, MaximumEarnings: 3},
		{Key: "secret-grinder", Name: "Secret Grinder", EarnedByType: badge.EarnedByAction, WorkoutRequirement: 2, MaximumEarnings: 1, IsHidden: true},
		{Key: "broken", Name: "Broken", EarnedByType: badge.EarnedByPoints, PointsTypeRequired: "gold", PointsRequired: 10, MaximumEarnings: 1},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type fixture struct {
	store   *memory.Store
	catalog *memory.Catalog
	pub     *recordingPublisher

	mu  sync.Mutex
	now time.Time

	streaks *StreakManager
	badges  *BadgeEngine
	ranks   *RankProgression
	handler *CompleteWorkoutHandler
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, configure ...func(*CompleteWorkoutConfig)) *fixture {
	t.Helper()

	f := &fixture{
		store:   memory.NewStore(),
		catalog: memory.NewCatalog(testBadges(), nil),
		pub:     &recordingPublisher{},
		now:     day0,
	}
	logger := quietLogger()

	f.streaks = NewStreakManager(f.store, f.pub, StreakManagerConfig{
		Policy: streak.DefaultPolicy(),
		Logger: logger,
		Clock:  f.clock,
	})
	f.badges = NewBadgeEngine(f.catalog, f.store, f.store, f.store, f.pub, BadgeEngineConfig{
		Logger: logger,
		Clock:  f.clock,
	})
	f.ranks = NewRankProgression(f.catalog, f.store.Ranks(), f.pub, RankProgressionConfig{
		Logger: logger,
		Clock:  f.clock,
	})

	cfg := DefaultCompleteWorkoutConfig()
	cfg.Logger = logger
	cfg.Clock = f.clock
	for _, fn := range configure {
		fn(&cfg)
	}
	f.handler = NewCompleteWorkoutHandler(f.streaks, f.badges, f.ranks, f.store, nil, f.pub, cfg)
	return f
}

func workout(sessionID string, at time.Time) WorkoutCompletionEvent {
	return WorkoutCompletionEvent{
		UserID:      "player-1",
		SessionID:   sessionID,
		Drills:      workoutDrills,
		SubmittedAt: at,
	}
}

func badgeKeys(ubs []badge.UserBadge) []string {
	keys := make([]string, 0, len(ubs))
	for _, ub := range ubs {
		keys = append(keys, ub.BadgeKey)
	}
	return keys
}
