package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}

func TestCohortKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-03-10T00:00:00Z", "2025-03-10"}, // Monday
		{"2025-03-12T15:30:00Z", "2025-03-10"},
		{"2025-03-16T23:59:59Z", "2025-03-10"}, // Sunday belongs to the previous Monday
		{"2025-03-17T00:00:00Z", "2025-03-17"},
		{"2025-01-01T08:00:00Z", "2024-12-30"}, // crosses a year boundary
		// Monday 01:00 in UTC+5 is still Sunday in UTC
		{"2025-03-17T01:00:00+05:00", "2025-03-10"},
		// Sunday 22:00 in UTC-5 is already Monday in UTC
		{"2025-03-16T22:00:00-05:00", "2025-03-17"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CohortKey(mustTime(t, c.in)), c.in)
	}
}

func TestCohortKeyStableAcrossWeek(t *testing.T) {
	base := mustTime(t, "2024-01-01T00:00:00Z")
	for h := 0; h < 24*400; h += 7 {
		ts := base.Add(time.Duration(h) * time.Hour)
		key := CohortKey(ts)

		monday, err := time.Parse(cohortLayout, key)
		require.NoError(t, err)
		require.Equal(t, time.Monday, monday.Weekday(), key)
		require.False(t, ts.Before(monday))
		require.True(t, ts.Before(monday.AddDate(0, 0, 7)))

		for k := 0; k < 7; k++ {
			require.Equal(t, key, CohortKey(monday.AddDate(0, 0, k).Add(23*time.Hour)))
		}
	}
}

func TestClampRangeDays(t *testing.T) {
	assert.Equal(t, 30, ClampRangeDays(0))
	assert.Equal(t, 30, ClampRangeDays(math.NaN()))
	assert.Equal(t, 30, ClampRangeDays(math.Inf(1)))
	assert.Equal(t, 30, ClampRangeDays(math.Inf(-1)))
	assert.Equal(t, 1, ClampRangeDays(-5))
	assert.Equal(t, 1, ClampRangeDays(0.5))
	assert.Equal(t, 7, ClampRangeDays(7.9))
	assert.Equal(t, 365, ClampRangeDays(400))
}

func TestParseRangeDays(t *testing.T) {
	cases := map[string]int{
		"":         1,
		"  ":       1,
		"abc":      30,
		"NaN":      30,
		"Infinity": 30,
		"14":       14,
		" 14 ":     14,
		"0":        1,
		"-3":       1,
		"90.9":     90,
		"1e3":      365,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRangeDays(in), "input %q", in)
	}
}
