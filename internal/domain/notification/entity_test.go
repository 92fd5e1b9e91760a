package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

func TestNewNotification(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	n, err := NewNotification("u", TypeRankUp, "Up", "You ranked up.", at)
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, PriorityHigh, n.Priority)
	assert.Equal(t, "v", n.With("k", "v").Data["k"])

	_, err = NewNotification("", TypeRankUp, "Up", "msg", at)
	assert.True(t, shared.IsValidation(err))

	_, err = NewNotification("u", Type("confetti"), "Up", "msg", at)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewNotification("u", TypeBadgeEarned, "Up", "  ", at)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}
