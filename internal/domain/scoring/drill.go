package scoring

import (
	"strings"

	"golang.org/x/text/cases"
)

// Difficulty bounds. Out-of-range content data is clamped, never rejected.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Relevance tags how strongly an academy drill trains a position.
type Relevance string

const (
	RelevanceNone      Relevance = ""
	RelevanceFull      Relevance = "F"
	RelevanceSecondary Relevance = "S"
)

// Drill is one exercise within a workout. Reference data; never mutated.
type Drill struct {
	ID                string    `json:"id"`
	DifficultyScore   int       `json:"difficulty_score"`
	Category          string    `json:"category,omitempty"`
	AcademyCategory   string    `json:"academy_category,omitempty"`
	AttackRelevance   Relevance `json:"attack_relevance,omitempty"`
	MidfieldRelevance Relevance `json:"midfield_relevance,omitempty"`
	DefenseRelevance  Relevance `json:"defense_relevance,omitempty"`
}

// ClampedDifficulty returns the difficulty forced into [1, 5].
func (d Drill) ClampedDifficulty() int64 {
	switch {
	case d.DifficultyScore < MinDifficulty:
		return MinDifficulty
	case d.DifficultyScore > MaxDifficulty:
		return MaxDifficulty
	default:
		return int64(d.DifficultyScore)
	}
}

// teamRoutes maps team-category substrings to buckets, checked in order.
var teamRoutes = []struct {
	needles []string
	bucket  Category
}{
	{[]string{"offensive", "settled offense", "settled-offense"}, AttackTokens},
	{[]string{"defensive", "settled defense", "settled-defense"}, DefenseDollars},
	{[]string{"transition"}, MidfieldMedals},
}

// TeamBucket routes a drill by its team category. The second result is
// false when the drill has no team category at all.
func (d Drill) TeamBucket() (Category, bool) {
	if strings.TrimSpace(d.Category) == "" {
		return "", false
	}
	folded := fold(d.Category)
	for _, route := range teamRoutes {
		for _, needle := range route.needles {
			if strings.Contains(folded, needle) {
				return route.bucket, true
			}
		}
	}
	return FlexPoints, true
}

// academyContributions returns the additive academy-routing amounts for a
// drill worth points. Drills without an academy category contribute nothing.
func (d Drill) academyContributions(points int64) CategoryPoints {
	var out CategoryPoints
	if strings.TrimSpace(d.AcademyCategory) == "" {
		return out
	}

	out.AddTo(AttackTokens, relevancePoints(d.AttackRelevance, points))
	out.AddTo(DefenseDollars, relevancePoints(d.DefenseRelevance, points))
	out.AddTo(MidfieldMedals, relevancePoints(d.MidfieldRelevance, points))

	folded := fold(d.AcademyCategory)
	if strings.Contains(folded, "wall ball") {
		out.AddTo(ReboundRewards, points)
	}
	if strings.Contains(folded, "strategy") || strings.Contains(folded, "iq") {
		out.AddTo(LaxIQPoints, points)
	}
	return out
}

// relevancePoints applies the full or secondary share for one position.
func relevancePoints(r Relevance, points int64) int64 {
	switch Relevance(strings.ToUpper(strings.TrimSpace(string(r)))) {
	case RelevanceFull:
		return points
	case RelevanceSecondary:
		return roundRatio(points*7, 10)
	default:
		return 0
	}
}

// fold case-folds s for substring matching. A Caser is stateful, so one is
// built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
