package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultEvaluator() *Evaluator {
	return NewEvaluator(
		[]SessionWindow{
			{Name: "london", StartHour: 8, EndHour: 16},
			{Name: "newyork", StartHour: 13, EndHour: 21},
		},
		[]BlackoutWindow{
			{Name: "eia", Weekday: time.Wednesday, Hour: 15, Minute: 30,
				Before: 30 * time.Minute, After: 60 * time.Minute},
		},
	)
}

// 2024-03-05 is a Tuesday, 2024-03-06 a Wednesday.
func tuesday(hour, min int) time.Time {
	return time.Date(2024, 3, 5, hour, min, 0, 0, time.UTC)
}

func wednesday(hour, min int) time.Time {
	return time.Date(2024, 3, 6, hour, min, 0, 0, time.UTC)
}

func TestEvaluator_SessionUnion(t *testing.T) {
	e := defaultEvaluator()

	tests := []struct {
		name    string
		at      time.Time
		allowed bool
	}{
		{"before london opens", tuesday(7, 59), false},
		{"london open", tuesday(8, 0), true},
		{"london only", tuesday(10, 0), true},
		{"london/ny overlap", tuesday(14, 0), true},
		{"ny only after london close", tuesday(18, 30), true},
		{"ny close", tuesday(21, 0), false},
		{"overnight", tuesday(2, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason := e.EntryAllowed(tt.at)
			assert.Equal(t, tt.allowed, allowed, reason)
		})
	}
}

func TestEvaluator_BlackoutWindow(t *testing.T) {
	e := defaultEvaluator()

	tests := []struct {
		name    string
		at      time.Time
		allowed bool
	}{
		{"wednesday before window", wednesday(14, 59), true},
		{"window start inclusive", wednesday(15, 0), false},
		{"at release", wednesday(15, 30), false},
		{"window end inclusive", wednesday(16, 30), false},
		{"after window", wednesday(16, 31), true},
		{"same time on tuesday", tuesday(15, 30), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, _ := e.EntryAllowed(tt.at)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestEvaluator_NoSessionsMeansNoRestriction(t *testing.T) {
	e := NewEvaluator(nil, nil)

	allowed, _ := e.EntryAllowed(tuesday(3, 0))
	assert.True(t, allowed)
}

func TestEvaluator_ActiveSessions(t *testing.T) {
	e := defaultEvaluator()

	assert.Equal(t, []string{"london"}, e.ActiveSessions(tuesday(9, 0)))
	assert.Equal(t, []string{"london", "newyork"}, e.ActiveSessions(tuesday(14, 0)))
	assert.Empty(t, e.ActiveSessions(tuesday(23, 0)))
}

func TestEvaluator_NextBlackout(t *testing.T) {
	e := defaultEvaluator()

	next, ok := e.NextBlackout(tuesday(10, 0))
	require.True(t, ok)
	assert.Equal(t, wednesday(15, 0), next, "blackout starts Before minutes ahead of the release")

	// Past this week's window: the following Wednesday.
	next, ok = e.NextBlackout(wednesday(17, 0))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC), next)

	_, ok = NewEvaluator(nil, nil).NextBlackout(tuesday(10, 0))
	assert.False(t, ok)
}
