package calculator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"funnel-health/pkg/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Ledger supplies the membership history the engine aggregates.
type Ledger interface {
	// ListSnapshots returns snapshots of productIDs taken at or after since, ascending by time.
	ListSnapshots(ctx context.Context, companyID string, productIDs []string, since time.Time) ([]models.SnapshotRecord, error)
	// ListMembershipsSince returns memberships of productID with a non-null joined_at >= since.
	ListMembershipsSince(ctx context.Context, companyID, productID string, since time.Time) ([]models.MembershipRecord, error)
	// ListMembershipsForUsers returns memberships of productID with a non-null joined_at, restricted to userIDs.
	ListMembershipsForUsers(ctx context.Context, companyID, productID string, userIDs []string) ([]models.MembershipRecord, error)
}

type stagePair struct {
	from, to         string
	fromName, toName string
}

// ComputeFunnelReport builds the snapshot, retention and stage conversion report of funnel.
// Any ledger failure aborts the computation and no report is returned.
func ComputeFunnelReport(ctx context.Context, ledger Ledger, funnel models.Funnel, cfg models.ReportConfig) (*models.FunnelReport, error) {
	start := time.Now()
	report, err := computeFunnelReport(ctx, ledger, funnel, cfg)
	reportDuration.Observe(time.Since(start).Seconds())

	logCtx := log.WithFields(log.Fields{
		"experience_id": funnel.ExperienceID,
		"company_id":    funnel.CompanyID,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	if err != nil {
		reportsTotal.WithLabelValues("error").Inc()
		logCtx.WithError(err).Error("Failed computing funnel report.")
		return nil, err
	}
	reportsTotal.WithLabelValues("ok").Inc()
	logCtx.WithField("products", len(report.ProductIDs)).Info("Computed funnel report.")
	return report, nil
}

func computeFunnelReport(ctx context.Context, ledger Ledger, funnel models.Funnel, cfg models.ReportConfig) (*models.FunnelReport, error) {
	rangeDays := ClampRangeDays(cfg.RangeDays)
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	since := now.Add(-daysToDuration(rangeDays))

	productIDs := distinctProductIDs(funnel.Steps)
	report := &models.FunnelReport{
		RangeDays:    rangeDays,
		Since:        since,
		CompanyID:    funnel.CompanyID,
		ProductIDs:   productIDs,
		Snapshots:    make(map[string][]models.SnapshotPoint, len(productIDs)),
		Retention:    make(map[string]map[string]models.RetentionResult, len(productIDs)),
		StageCohorts: []models.StageCohorts{},
	}
	if len(productIDs) == 0 {
		return report, nil
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var snapshots []models.SnapshotRecord
	g.Go(func() error {
		rows, err := ledger.ListSnapshots(gctx, funnel.CompanyID, productIDs, since)
		if err != nil {
			return newLedgerReadError(opSnapshots, err)
		}
		snapshots = rows
		return nil
	})

	retention := make([]map[string]models.RetentionResult, len(productIDs))
	for i, pid := range productIDs {
		g.Go(func() error {
			rows, err := ledger.ListMembershipsSince(gctx, funnel.CompanyID, pid, since)
			if err != nil {
				return newLedgerReadError(opMembershipsSince, err)
			}
			retention[i] = ComputeRetention(rows, RetentionHorizons, now)
			return nil
		})
	}

	pairs := stagePairs(funnel.Steps)
	stages := make([][]models.CohortBucket, len(pairs))
	for i, p := range pairs {
		g.Go(func() error {
			cohorts, err := ComputeStageConversion(gctx, ledger, funnel.CompanyID, p.from, p.to, since)
			if err != nil {
				return err
			}
			if cfg.Verbose {
				log.WithFields(log.Fields{
					"from_product_id": p.from,
					"to_product_id":   p.to,
					"cohorts":         len(cohorts),
				}).Debug("Computed stage conversion.")
			}
			stages[i] = cohorts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("funnel report: %w", err)
	}

	for _, pid := range productIDs {
		report.Snapshots[pid] = []models.SnapshotPoint{}
	}
	for _, s := range snapshots {
		points, ok := report.Snapshots[s.ProductID]
		if !ok {
			continue
		}
		report.Snapshots[s.ProductID] = append(points, models.SnapshotPoint{
			SnapshotAt:  s.SnapshotAt.UTC(),
			MemberCount: s.MemberCount,
		})
	}
	for i, pid := range productIDs {
		report.Retention[pid] = retention[i]
	}
	for i, p := range pairs {
		report.StageCohorts = append(report.StageCohorts, models.StageCohorts{
			FromProductID: p.from,
			ToProductID:   p.to,
			FromName:      p.fromName,
			ToName:        p.toName,
			Cohorts:       stages[i],
		})
	}
	return report, nil
}

// distinctProductIDs keeps the first appearance order of bound products.
func distinctProductIDs(steps []models.Step) []string {
	seen := make(map[string]struct{}, len(steps))
	out := []string{}
	for _, s := range steps {
		if s.ProductID == "" {
			continue
		}
		if _, ok := seen[s.ProductID]; ok {
			continue
		}
		seen[s.ProductID] = struct{}{}
		out = append(out, s.ProductID)
	}
	return out
}

// stagePairs pairs adjacent steps after a stable sort by Order. Pairs with an unbound side are
// skipped without looking further for the next bound step.
func stagePairs(steps []models.Step) []stagePair {
	ordered := make([]models.Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	var pairs []stagePair
	for i := 0; i+1 < len(ordered); i++ {
		from, to := ordered[i], ordered[i+1]
		if from.ProductID == "" || to.ProductID == "" {
			continue
		}
		pairs = append(pairs, stagePair{
			from:     from.ProductID,
			to:       to.ProductID,
			fromName: stepName(from, i),
			toName:   stepName(to, i+1),
		})
	}
	return pairs
}

func stepName(s models.Step, idx int) string {
	if s.Product != nil && s.Product.Title != "" {
		return s.Product.Title
	}
	return fmt.Sprintf("Step %d", idx+1)
}
