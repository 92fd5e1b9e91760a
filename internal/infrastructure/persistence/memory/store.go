// Package memory provides in-process implementations of the engine's
// repositories. The worker uses them when no database is configured and the
// application tests run against them. All operations are serialized by one
// mutex, which gives the same atomicity the SQL adapters get from
// conditional statements.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/ledger"
	"github.com/powlax/gamification-engine/internal/domain/rank"
	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
)

type entryKey struct {
	user    shared.UserID
	session shared.SessionID
	source  ledger.Source
}

type badgeKey struct {
	user shared.UserID
	key  string
}

// Store holds all per-user engine state in maps.
type Store struct {
	mu      sync.Mutex
	streaks map[shared.UserID]*streak.State
	entries map[entryKey]ledger.Entry
	totals  map[shared.UserID]scoring.CategoryPoints
	badges  map[badgeKey]*badge.UserBadge
	ranks   map[shared.UserID]*rank.UserRank
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		streaks: make(map[shared.UserID]*streak.State),
		entries: make(map[entryKey]ledger.Entry),
		totals:  make(map[shared.UserID]scoring.CategoryPoints),
		badges:  make(map[badgeKey]*badge.UserBadge),
		ranks:   make(map[shared.UserID]*rank.UserRank),
	}
}

var (
	_ streak.Repository = (*Store)(nil)
	_ ledger.Repository = (*Store)(nil)
	_ badge.Repository  = (*Store)(nil)
	_ rank.Repository   = (*RankStore)(nil)
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns a copy of the stored streak state.
func (s *Store) Get(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streaks[userID]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	return st.Clone(), nil
}

// Save stores the state if its version matches.
func (s *Store) Save(ctx context.Context, state *streak.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveStreakLocked(state)
}

func (s *Store) saveStreakLocked(state *streak.State) error {
	var stored int64
	if cur, ok := s.streaks[state.UserID]; ok {
		stored = cur.Version
	}
	if stored != state.Version {
		return shared.ErrStreakVersion
	}
	state.Version++
	s.streaks[state.UserID] = state.Clone()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Totals returns the cumulative points of a user.
func (s *Store) Totals(ctx context.Context, userID shared.UserID) (scoring.CategoryPoints, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[userID], nil
}

// FindWorkout returns the workout entry of a session.
func (s *Store) FindWorkout(ctx context.Context, userID shared.UserID, sessionID shared.SessionID) (*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryKey{userID, sessionID, ledger.SourceWorkout}]
	if !ok {
		return nil, shared.WrapError("ledger", "FindWorkout", shared.ErrNotFound, "session not recorded", nil)
	}
	return &e, nil
}

// CommitWorkout applies entries and the streak write all-or-nothing.
func (s *Store) CommitWorkout(ctx context.Context, c ledger.WorkoutCommit) (scoring.CategoryPoints, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range c.Entries {
		if _, dup := s.entries[entryKey{e.UserID, e.SessionID, e.Source}]; dup {
			return scoring.CategoryPoints{}, shared.ErrDuplicateSession
		}
	}
	if c.Streak != nil {
		if err := s.saveStreakLocked(c.Streak); err != nil {
			return scoring.CategoryPoints{}, err
		}
	}

	var userID shared.UserID
	for _, e := range c.Entries {
		s.entries[entryKey{e.UserID, e.SessionID, e.Source}] = e
		s.totals[e.UserID] = s.totals[e.UserID].Add(e.Points)
		userID = e.UserID
	}
	if userID == "" && c.Streak != nil {
		userID = c.Streak.UserID
	}
	return s.totals[userID], nil
}

// EntriesByUser returns a user's ledger entries, oldest first.
func (s *Store) EntriesByUser(userID shared.UserID) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ledger.Entry
	for k, e := range s.entries {
		if k.user == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Source < out[j].Source
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGES
// ══════════════════════════════════════════════════════════════════════════════

// ListByUser returns the user's earned badges sorted by key.
func (s *Store) ListByUser(ctx context.Context, userID shared.UserID) ([]badge.UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]badge.UserBadge, 0)
	for k, ub := range s.badges {
		if k.user == userID {
			out = append(out, *ub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BadgeKey < out[j].BadgeKey })
	return out, nil
}

// Award increments earn_count while it is below the limit.
func (s *Store) Award(ctx context.Context, req badge.AwardRequest) (*badge.UserBadge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := badgeKey{req.UserID, req.BadgeKey}
	ub, ok := s.badges[k]
	if ok && ub.EarnCount >= req.Limit {
		c := *ub
		return &c, false, nil
	}
	if req.Limit < 1 {
		return nil, false, nil
	}
	if !ok {
		ub = &badge.UserBadge{ID: uuid.NewString(), UserID: req.UserID, BadgeKey: req.BadgeKey}
		s.badges[k] = ub
	}
	ub.EarnCount++
	ub.EarnedAt = req.At
	c := *ub
	return &c, true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKS
// ══════════════════════════════════════════════════════════════════════════════

// RankStore adapts the rank methods, whose names collide with the streak ones.
type RankStore struct {
	s *Store
}

// Ranks returns the rank repository view of the store.
func (s *Store) Ranks() *RankStore {
	return &RankStore{s: s}
}

// Get returns a copy of the stored rank record.
func (r *RankStore) Get(ctx context.Context, userID shared.UserID) (*rank.UserRank, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ur, ok := r.s.ranks[userID]
	if !ok {
		return nil, shared.WrapError("rank", "Find", shared.ErrNotFound, "rank not found", nil)
	}
	c := *ur
	return &c, nil
}

// Save stores the record if its version matches.
func (r *RankStore) Save(ctx context.Context, ur *rank.UserRank) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var stored int64
	if cur, ok := r.s.ranks[ur.UserID]; ok {
		stored = cur.Version
	}
	if stored != ur.Version {
		return shared.ErrRankVersion
	}
	ur.Version++
	c := *ur
	r.s.ranks[ur.UserID] = &c
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog serves badge and rank definitions from memory.
type Catalog struct {
	mu     sync.RWMutex
	badges []badge.Definition
	ranks  []rank.Definition
}

// NewCatalog creates a catalog with the given definitions. A nil rank list
// means the default ladder.
func NewCatalog(badges []badge.Definition, ranks []rank.Definition) *Catalog {
	if ranks == nil {
		ranks = rank.DefaultDefinitions()
	}
	return &Catalog{badges: badges, ranks: ranks}
}

// BadgeDefinitions returns a copy of the badge catalog.
func (c *Catalog) BadgeDefinitions(ctx context.Context) ([]badge.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]badge.Definition, len(c.badges))
	copy(out, c.badges)
	return out, nil
}

// RankDefinitions returns a copy of the ladder.
func (c *Catalog) RankDefinitions(ctx context.Context) ([]rank.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]rank.Definition, len(c.ranks))
	copy(out, c.ranks)
	return out, nil
}

// SetBadgeDefinitions replaces the badge catalog.
func (c *Catalog) SetBadgeDefinitions(defs []badge.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.badges = defs
}
