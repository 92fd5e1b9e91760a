package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags holds engine rule toggles. Flags are read once at startup and
// can be flipped at runtime from tests or an admin surface.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// Missed days may be bridged with a streak freeze.
	FeatureStreakFreezes = "engine.streak_freezes"

	// The first workout of a calendar day earns the 1.1 multiplier.
	FeatureFirstTodayBonus = "engine.first_today_bonus"

	// Reaching 7, 30 or 100 days credits bonus Lax Credits.
	FeatureStreakMilestoneBonus = "engine.streak_milestone_bonus"

	// Per-user work is serialized across workers with a Redis lease.
	FeatureDistributedLock = "engine.distributed_lock"

	// Celebration notifications for a broken streak.
	FeatureNotifyStreakBroken = "notify.streak_broken"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureStreakFreezes] = &Feature{
		Name:        FeatureStreakFreezes,
		Description: "Spend a streak freeze to cover missed days",
		Enabled:     true,
	}
	ff.features[FeatureFirstTodayBonus] = &Feature{
		Name:        FeatureFirstTodayBonus,
		Description: "Bonus multiplier for the first workout of the day",
		Enabled:     true,
	}
	ff.features[FeatureStreakMilestoneBonus] = &Feature{
		Name:        FeatureStreakMilestoneBonus,
		Description: "Lax Credit bonus at streak milestones",
		Enabled:     true,
	}
	ff.features[FeatureDistributedLock] = &Feature{
		Name:        FeatureDistributedLock,
		Description: "Redis lease lock around per-user processing",
		Enabled:     true,
	}
	ff.features[FeatureNotifyStreakBroken] = &Feature{
		Name:        FeatureNotifyStreakBroken,
		Description: "Notify users when a streak ends",
		Enabled:     true,
	}
}

// loadFromEnvironment applies overrides.
// "engine.streak_freezes" is read from ENGINE_STREAK_FREEZES=true|false.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
		}
	}
}

func featureNameToEnvKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// Set flips a known feature. It returns false for unknown names.
func (ff *FeatureFlags) Set(featureName string, enabled bool) bool {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}
	feature.Enabled = enabled
	return true
}

// Snapshot returns the current flag values, sorted by name, for startup logs.
func (ff *FeatureFlags) Snapshot() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
