package scoring

// Streak thresholds for the consistency bonus.
const (
	StreakStartDays = 3
	StreakWeekDays  = 7
	StreakMonthDays = 30
)

// WorkoutScore is the scored result of one workout. It is derived data;
// callers persist CategoryPoints as a ledger delta.
type WorkoutScore struct {
	Drills            []Drill          `json:"drills"`
	TotalPoints       int64            `json:"total_points"`
	AverageDifficulty float64          `json:"average_difficulty"`
	CategoryPoints    CategoryPoints   `json:"category_points"`
	BonusMultipliers  BonusMultipliers `json:"bonus_multipliers"`
}

// CombinedMultiplier returns the product of the applied bonuses.
func (s WorkoutScore) CombinedMultiplier() float64 {
	return s.BonusMultipliers.Combined().Float64()
}

// CalculateWorkoutPoints scores a workout.
//
// The lax_credit base equals the sum of clamped drill difficulties, which is
// round(n × mean). Each drill is additionally routed by team category and,
// independently, by academy relevance; one drill may feed several buckets.
// The combined bonus is applied to every bucket and each bucket is rounded
// half-up on its own, so per-bucket drift is at most one point.
func CalculateWorkoutPoints(drills []Drill, userStreak int, isFirstToday bool) WorkoutScore {
	if len(drills) == 0 {
		return WorkoutScore{Drills: []Drill{}}
	}

	n := int64(len(drills))
	var sum int64
	var raw CategoryPoints

	for _, d := range drills {
		points := d.ClampedDifficulty()
		sum += points

		if bucket, ok := d.TeamBucket(); ok {
			raw.AddTo(bucket, points)
		}
		raw = raw.Add(d.academyContributions(points))
	}
	raw.LaxCredit = sum

	bonuses := BonusMultipliers{
		Difficulty: difficultyBonus(sum, n),
		Streak:     streakBonus(userStreak),
	}
	if isFirstToday {
		m := FirstTodayBonus
		bonuses.FirstToday = &m
	}

	out := make([]Drill, len(drills))
	copy(out, drills)

	return WorkoutScore{
		Drills:            out,
		TotalPoints:       sum,
		AverageDifficulty: averageTenths(sum, n),
		CategoryPoints:    raw.Scale(bonuses.Combined()),
		BonusMultipliers:  bonuses,
	}
}

// difficultyBonus compares the exact mean sum/n against the thresholds.
func difficultyBonus(sum, n int64) *Multiplier {
	var m Multiplier
	switch {
	case sum >= 4*n:
		m = DifficultyHardBonus
	case 2*sum >= 7*n:
		m = DifficultyMediumBonus
	default:
		return nil
	}
	return &m
}

func streakBonus(streak int) *Multiplier {
	var m Multiplier
	switch {
	case streak >= StreakMonthDays:
		m = StreakMonthBonus
	case streak >= StreakWeekDays:
		m = StreakWeekBonus
	case streak >= StreakStartDays:
		m = StreakStartBonus
	default:
		return nil
	}
	return &m
}

// averageTenths returns sum/n rounded half-up to one decimal.
func averageTenths(sum, n int64) float64 {
	return float64(roundRatio(sum*10, n)) / 10
}
