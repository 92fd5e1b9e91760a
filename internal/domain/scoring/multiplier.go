package scoring

import (
	"math/big"
	"strconv"
)

// Multiplier is a bonus factor in basis points: 11500 means ×1.15.
// Integer storage keeps the product of several bonuses exact.
type Multiplier int64

const multiplierScale = 10000

// Bonus factors.
const (
	DifficultyHardBonus   Multiplier = 15000 // average ≥ 4.0
	DifficultyMediumBonus Multiplier = 12500 // average ≥ 3.5
	StreakMonthBonus      Multiplier = 13000 // streak ≥ 30
	StreakWeekBonus       Multiplier = 11500 // streak ≥ 7
	StreakStartBonus      Multiplier = 10500 // streak ≥ 3
	FirstTodayBonus       Multiplier = 11000
)

// Float64 returns the factor for display.
func (m Multiplier) Float64() float64 {
	return float64(m) / multiplierScale
}

// String renders the factor like "1.15".
func (m Multiplier) String() string {
	return strconv.FormatFloat(m.Float64(), 'f', -1, 64)
}

// MarshalJSON encodes the factor as a decimal number.
func (m Multiplier) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// BonusMultipliers records which bonuses applied. Nil means absent.
type BonusMultipliers struct {
	Difficulty *Multiplier `json:"difficulty,omitempty"`
	Streak     *Multiplier `json:"streak,omitempty"`
	FirstToday *Multiplier `json:"first_today,omitempty"`
}

// Active returns the multipliers that are present.
func (b BonusMultipliers) Active() []Multiplier {
	out := make([]Multiplier, 0, 3)
	for _, m := range []*Multiplier{b.Difficulty, b.Streak, b.FirstToday} {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// IsEmpty reports whether no bonus applied.
func (b BonusMultipliers) IsEmpty() bool {
	return b.Difficulty == nil && b.Streak == nil && b.FirstToday == nil
}

// Combined returns the product of all active multipliers.
func (b BonusMultipliers) Combined() Factor {
	return Combine(b.Active()...)
}

// Factor is an exact rational multiplier num/den.
type Factor struct {
	num *big.Int
	den *big.Int
}

// Identity is the factor 1.
func Identity() Factor {
	return Factor{num: big.NewInt(1), den: big.NewInt(1)}
}

// Combine multiplies factors together. Order does not matter.
func Combine(ms ...Multiplier) Factor {
	f := Identity()
	scale := big.NewInt(multiplierScale)
	for _, m := range ms {
		f.num.Mul(f.num, big.NewInt(int64(m)))
		f.den.Mul(f.den, scale)
	}
	return f
}

// Equal reports whether two factors are the same rational number.
func (f Factor) Equal(other Factor) bool {
	left := new(big.Int).Mul(f.num, other.den)
	right := new(big.Int).Mul(other.num, f.den)
	return left.Cmp(right) == 0
}

// Float64 returns the factor for display.
func (f Factor) Float64() float64 {
	v, _ := new(big.Rat).SetFrac(f.num, f.den).Float64()
	return v
}

// Apply multiplies value by the factor and rounds half-up to an integer.
func (f Factor) Apply(value int64) int64 {
	return roundHalfUp(new(big.Int).Mul(big.NewInt(value), f.num), f.den)
}

// roundHalfUp returns round(n/d) with ties going up. d must be positive.
func roundHalfUp(n, d *big.Int) int64 {
	// floor((2n + d) / 2d)
	twoN := new(big.Int).Lsh(n, 1)
	twoD := new(big.Int).Lsh(d, 1)
	q := new(big.Int).Add(twoN, d)
	q.Div(q, twoD)
	return q.Int64()
}

// roundRatio is roundHalfUp for small int64 operands.
func roundRatio(n, d int64) int64 {
	return roundHalfUp(big.NewInt(n), big.NewInt(d))
}
