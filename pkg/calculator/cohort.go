package calculator

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

const (
	cohortLayout     = "2006-01-02"
	defaultRangeDays = 30
	minRangeDays     = 1
	maxRangeDays     = 365
)

// CohortKey returns the Monday (YYYY-MM-DD, UTC) of the ISO week containing t.
func CohortKey(t time.Time) string {
	weeks := &now.Config{WeekStartDay: time.Monday, TimeLocation: time.UTC}
	return weeks.With(t.UTC()).BeginningOfWeek().Format(cohortLayout)
}

// ClampRangeDays floors n and clamps it to [1,365]. Zero and non-finite values mean "absent"
// and give the default of 30.
func ClampRangeDays(n float64) int {
	if n == 0 {
		return defaultRangeDays
	}
	return clampRange(n)
}

// ParseRangeDays reads a rangeDays value that was supplied. Blank input reads as 0 and clamps
// to 1; unparsable and non-finite input give the default. Callers handle an absent value.
func ParseRangeDays(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return minRangeDays
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultRangeDays
	}
	return clampRange(n)
}

func clampRange(n float64) int {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return defaultRangeDays
	}
	d := math.Floor(n)
	if d < minRangeDays {
		return minRangeDays
	}
	if d > maxRangeDays {
		return maxRangeDays
	}
	return int(d)
}

func daysToDuration(d int) time.Duration {
	return time.Duration(d) * 24 * time.Hour
}
