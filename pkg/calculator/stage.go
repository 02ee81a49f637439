package calculator

import (
	"context"
	"sort"
	"time"

	"funnel-health/pkg/models"
)

type cohortAccumulator struct {
	fromCount   int
	toCount     int
	deltasHours []float64
}

// ComputeStageConversion computes per-cohort conversion from fromProductID to toProductID for
// users who joined fromProductID at or after since.
func ComputeStageConversion(
	ctx context.Context,
	ledger Ledger,
	companyID, fromProductID, toProductID string,
	since time.Time,
) ([]models.CohortBucket, error) {
	fromRows, err := ledger.ListMembershipsSince(ctx, companyID, fromProductID, since)
	if err != nil {
		return nil, newLedgerReadError(opMembershipsSince, err)
	}

	fromByUser := make(map[string]time.Time, len(fromRows))
	for _, r := range fromRows {
		if r.JoinedAt == nil || r.JoinedAt.Before(since) {
			continue
		}
		fromByUser[r.UserID] = *r.JoinedAt
	}
	if len(fromByUser) == 0 {
		return []models.CohortBucket{}, nil
	}

	userIDs := make([]string, 0, len(fromByUser))
	for uid := range fromByUser {
		userIDs = append(userIDs, uid)
	}
	sort.Strings(userIDs)

	toRows, err := ledger.ListMembershipsForUsers(ctx, companyID, toProductID, userIDs)
	if err != nil {
		return nil, newLedgerReadError(opMembershipsForUsers, err)
	}

	toByUser := make(map[string]time.Time, len(toRows))
	for _, r := range toRows {
		if r.JoinedAt == nil {
			continue
		}
		if _, ok := fromByUser[r.UserID]; !ok {
			continue
		}
		toByUser[r.UserID] = *r.JoinedAt
	}

	return BucketStage(fromByUser, toByUser), nil
}

// BucketStage groups users of the source step by signup week and counts their conversions.
// Conversions timestamped before the source join count toward ToCount but not the latency sample.
func BucketStage(fromByUser, toByUser map[string]time.Time) []models.CohortBucket {
	byCohort := make(map[string]*cohortAccumulator)
	for uid, fromJoinedAt := range fromByUser {
		key := CohortKey(fromJoinedAt)
		acc, ok := byCohort[key]
		if !ok {
			acc = &cohortAccumulator{}
			byCohort[key] = acc
		}
		acc.fromCount++

		toJoinedAt, converted := toByUser[uid]
		if !converted {
			continue
		}
		acc.toCount++
		if delta := toJoinedAt.Sub(fromJoinedAt); delta >= 0 {
			acc.deltasHours = append(acc.deltasHours, delta.Hours())
		}
	}

	keys := make([]string, 0, len(byCohort))
	for k := range byCohort {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.CohortBucket, 0, len(keys))
	for _, k := range keys {
		acc := byCohort[k]
		out = append(out, models.CohortBucket{
			Cohort:         k,
			FromCount:      acc.fromCount,
			ToCount:        acc.toCount,
			ConversionRate: rate(acc.toCount, acc.fromCount),
			MedianHours:    Percentile(acc.deltasHours, 50),
			P75Hours:       Percentile(acc.deltasHours, 75),
		})
	}
	return out
}
