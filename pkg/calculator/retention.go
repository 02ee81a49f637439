package calculator

import (
	"fmt"
	"time"

	"funnel-health/pkg/models"
)

// RetentionHorizons are the horizons, in days, reported for every product.
var RetentionHorizons = []int{7, 30}

// HorizonKey is the report key of a retention horizon ("day7", "day30").
func HorizonKey(days int) string {
	return fmt.Sprintf("day%d", days)
}

// ComputeRetention computes base/retained/rate for each horizon over records.
//
// A record is eligible for horizon d when it joined at or before now-d. It is retained when it
// was last seen at or after joined+d and had not left before joined+d.
func ComputeRetention(records []models.MembershipRecord, horizons []int, now time.Time) map[string]models.RetentionResult {
	out := make(map[string]models.RetentionResult, len(horizons))
	for _, d := range horizons {
		window := daysToDuration(d)
		cutoff := now.Add(-window)

		base, retained := 0, 0
		for _, r := range records {
			if r.JoinedAt == nil || r.JoinedAt.After(cutoff) {
				continue
			}
			base++
			target := r.JoinedAt.Add(window)
			if r.LastSeenAt == nil || r.LastSeenAt.Before(target) {
				continue
			}
			if r.LeftAt != nil && r.LeftAt.Before(target) {
				continue
			}
			retained++
		}

		out[HorizonKey(d)] = models.RetentionResult{
			Base:     base,
			Retained: retained,
			Rate:     rate(retained, base),
		}
	}
	return out
}

func rate(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
