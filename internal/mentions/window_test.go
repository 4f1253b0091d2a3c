package mentions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brandlens/brandlens/internal/models"
)

func TestNewWindow_Bounds(t *testing.T) {
	now := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name          string
		days          int
		from          models.ClockTime
		to            models.ClockTime
		expectedLower time.Time
		expectedUpper time.Time
	}{
		{
			name:          "Seven full days",
			days:          7,
			from:          models.StartOfDay,
			to:            models.EndOfDay,
			expectedLower: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
			expectedUpper: time.Date(2025, 3, 15, 23, 59, 59, 999000000, time.UTC),
		},
		{
			name:          "Single day covers today only",
			days:          1,
			from:          models.StartOfDay,
			to:            models.EndOfDay,
			expectedLower: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			expectedUpper: time.Date(2025, 3, 15, 23, 59, 59, 999000000, time.UTC),
		},
		{
			name:          "Custom clock bounds",
			days:          3,
			from:          models.ClockTime{Hour: 9, Minute: 30, Meridiem: "AM"},
			to:            models.ClockTime{Hour: 5, Minute: 15, Meridiem: "PM"},
			expectedLower: time.Date(2025, 3, 13, 9, 30, 0, 0, time.UTC),
			expectedUpper: time.Date(2025, 3, 15, 17, 15, 59, 999000000, time.UTC),
		},
		{
			name:          "Noon and midnight map correctly",
			days:          2,
			from:          models.ClockTime{Hour: 12, Minute: 0, Meridiem: "AM"},
			to:            models.ClockTime{Hour: 12, Minute: 0, Meridiem: "PM"},
			expectedLower: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			expectedUpper: time.Date(2025, 3, 15, 12, 0, 59, 999000000, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(tt.days, tt.from, tt.to, now)
			assert.Equal(t, tt.expectedLower, w.Lower)
			assert.Equal(t, tt.expectedUpper, w.Upper)
		})
	}
}

func TestWindow_Contains(t *testing.T) {
	now := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)
	w := NewWindow(7, models.StartOfDay, models.EndOfDay, now)

	inWindow := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	atLower := w.Lower
	atUpper := w.Upper
	before := w.Lower.Add(-time.Millisecond)
	after := w.Upper.Add(time.Millisecond)

	tests := []struct {
		name     string
		post     models.Post
		expected bool
	}{
		{"Inside window", models.Post{CreatedAt: &inWindow}, true},
		{"Exactly at lower bound", models.Post{CreatedAt: &atLower}, true},
		{"Exactly at upper bound", models.Post{CreatedAt: &atUpper}, true},
		{"Just before lower bound", models.Post{CreatedAt: &before}, false},
		{"Just after upper bound", models.Post{CreatedAt: &after}, false},
		{"Falls back to fetched time", models.Post{FetchedAt: &inWindow}, true},
		{"No timestamp always passes", models.Post{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, w.Contains(&tt.post))
		})
	}
}

func TestClockTime_Hour24(t *testing.T) {
	tests := []struct {
		name     string
		clock    models.ClockTime
		expected int
	}{
		{"Midnight", models.ClockTime{Hour: 12, Meridiem: "AM"}, 0},
		{"Morning", models.ClockTime{Hour: 9, Meridiem: "AM"}, 9},
		{"Noon", models.ClockTime{Hour: 12, Meridiem: "PM"}, 12},
		{"Afternoon", models.ClockTime{Hour: 5, Meridiem: "PM"}, 17},
		{"Late evening", models.ClockTime{Hour: 11, Meridiem: "PM"}, 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.clock.Hour24())
		})
	}
}
