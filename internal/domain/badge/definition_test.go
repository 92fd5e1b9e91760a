package badge

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

func TestDecodeCatalog(t *testing.T) {
	defs, err := DecodeCatalog(strings.NewReader(`[
		{"key": "Attack Ace", "earned_by_type": "Points", "points_type_required": "ATTACK_TOKENS", "points_required": 250, "maximum_earnings": 1},
		{"key": "first workout", "earned_by_type": "milestone", "maximum_earnings": 1}
	]`))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "attack-ace", defs[0].Key)
	assert.Equal(t, EarnedByPoints, defs[0].EarnedByType)
	assert.Equal(t, "attack_tokens", defs[0].PointsTypeRequired)
	assert.Equal(t, DefaultWorkoutRequirement, defs[1].WorkoutRequirement)
	assert.Equal(t, "first-workout", defs[1].Name)
}

func TestDecodeCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"not an array", `{"key": "x"}`},
		{"invalid entry", `[{"key": "x", "earned_by_type": "points", "points_type_required": "gold", "points_required": 1, "maximum_earnings": 1}]`},
		{"duplicate after slug", `[
			{"key": "Hat Trick", "earned_by_type": "action", "maximum_earnings": 1},
			{"key": "hat-trick", "earned_by_type": "action", "maximum_earnings": 1}
		]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCatalog(strings.NewReader(tt.body))
			require.Error(t, err)
			invalid := shared.IsValidation(err) || errors.Is(err, shared.ErrInvalidDefinition)
			assert.True(t, invalid, err.Error())
		})
	}
}
