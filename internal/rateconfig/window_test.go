package rateconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func TestIsOpen(t *testing.T) {
	window := Window{StartDay: 26, EndDay: 30}

	tests := []struct {
		name string
		now  time.Time
		open bool
	}{
		{"day before window", date(2025, time.March, 25), false},
		{"first day", date(2025, time.March, 26), true},
		{"mid window", date(2025, time.March, 28), true},
		{"last day", date(2025, time.March, 30), true},
		{"day after window", date(2025, time.March, 31), false},
		{"start of month", date(2025, time.March, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, IsOpen(tt.now, window))
		})
	}
}

func TestIsOpenClampsToShortMonth(t *testing.T) {
	// February 2025 has 28 days; a 29-31 window collapses onto the 28th.
	window := Window{StartDay: 29, EndDay: 31}

	assert.False(t, IsOpen(date(2025, time.February, 27), window))
	assert.True(t, IsOpen(date(2025, time.February, 28), window))
}

func TestNextWindowSameMonth(t *testing.T) {
	window := Window{StartDay: 26, EndDay: 30}

	start, end := NextWindow(date(2025, time.March, 10), window)
	assert.Equal(t, time.Date(2025, time.March, 26, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.March, 30, 23, 59, 59, 0, time.UTC), end)
}

func TestNextWindowRollsToNextMonth(t *testing.T) {
	window := Window{StartDay: 26, EndDay: 30}

	start, end := NextWindow(date(2025, time.March, 31), window)
	assert.Equal(t, time.Date(2025, time.April, 26, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.April, 30, 23, 59, 59, 0, time.UTC), end)
}

func TestNextWindowYearBoundary(t *testing.T) {
	window := Window{StartDay: 26, EndDay: 30}

	start, _ := NextWindow(date(2025, time.December, 31), window)
	assert.Equal(t, time.Date(2026, time.January, 26, 0, 0, 0, 0, time.UTC), start)
}

func TestWindowValidate(t *testing.T) {
	require.NoError(t, Window{StartDay: 26, EndDay: 30}.Validate())
	assert.Error(t, Window{StartDay: 0, EndDay: 30}.Validate())
	assert.Error(t, Window{StartDay: 26, EndDay: 32}.Validate())
	assert.Error(t, Window{StartDay: 30, EndDay: 26}.Validate())
}
