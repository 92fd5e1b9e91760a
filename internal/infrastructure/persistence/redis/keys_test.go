package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "gamification:lock:u-1", LockKey("u-1"))
	assert.Equal(t, "gamification:catalog:badges", CatalogKey("badges"))
	assert.Equal(t, "gamification:notifications:u-1", NotificationKey("u-1"))
	assert.Equal(t, "gamification:badge.awarded", PubSubChannel("badge.awarded"))
	assert.Equal(t, "gamification:intake.workout.completed", WorkoutCompletedChannel)
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}
