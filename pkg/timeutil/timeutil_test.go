package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDate_UsesLocation(t *testing.T) {
	ny, err := LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:30 UTC on the 15th is still the evening of the 14th in New York.
	instant := time.Date(2024, 3, 15, 2, 30, 0, 0, time.UTC)

	assert.Equal(t, Date(2024, 3, 14), CalendarDate(instant, ny))
	assert.Equal(t, Date(2024, 3, 15), CalendarDate(instant, time.UTC))
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"same day", Date(2024, 1, 1), Date(2024, 1, 1), 0},
		{"next day", Date(2024, 1, 1), Date(2024, 1, 2), 1},
		{"month boundary", Date(2024, 1, 31), Date(2024, 2, 1), 1},
		{"leap day", Date(2024, 2, 28), Date(2024, 3, 1), 2},
		{"backwards", Date(2024, 1, 5), Date(2024, 1, 2), -3},
		{"year boundary", Date(2023, 12, 31), Date(2024, 1, 1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.from, tt.to))
		})
	}
}

func TestDaysBetween_AcrossDSTIsWholeDays(t *testing.T) {
	ny, err := LoadLocation("America/New_York")
	require.NoError(t, err)

	before := CalendarDate(time.Date(2024, 3, 9, 12, 0, 0, 0, ny), ny)
	after := CalendarDate(time.Date(2024, 3, 11, 12, 0, 0, 0, ny), ny)

	assert.Equal(t, 2, DaysBetween(before, after))
}

func TestParseAndFormatDate(t *testing.T) {
	d, err := ParseDate("2024-07-04")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, 7, 4), d)
	assert.Equal(t, "2024-07-04", FormatDate(d))
	assert.Equal(t, "", FormatDate(time.Time{}))

	_, err = ParseDate("07/04/2024")
	assert.Error(t, err)
}

func TestLoadLocation_Empty(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Nowhere/Special")
	assert.Error(t, err)
}
