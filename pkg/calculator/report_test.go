package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"funnel-health/pkg/ledger"
	"funnel-health/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportLedger(t *testing.T, now time.Time) *ledger.Memory {
	t.Helper()
	mem := ledger.NewMemory()
	day := 24 * time.Hour
	for i, uid := range []string{"u1", "u2", "u3", "u4"} {
		joined := now.Add(-time.Duration(20-i) * day)
		mem.AddMembership(models.MembershipRecord{
			CompanyID: "biz_1", ProductID: "prod_a", UserID: uid,
			JoinedAt: ptr(joined), LastSeenAt: ptr(now),
		})
	}
	mem.AddMembership(models.MembershipRecord{
		CompanyID: "biz_1", ProductID: "prod_b", UserID: "u1",
		JoinedAt: ptr(now.Add(-19 * day)), LastSeenAt: ptr(now.Add(-15 * day)), LeftAt: ptr(now.Add(-15 * day)),
	})
	mem.AddMembership(models.MembershipRecord{
		CompanyID: "biz_1", ProductID: "prod_b", UserID: "u2",
		JoinedAt: ptr(now.Add(-18 * day)), LastSeenAt: ptr(now),
	})
	mem.AddSnapshot(models.SnapshotRecord{CompanyID: "biz_1", ProductID: "prod_a", SnapshotAt: now.Add(-2 * day), MemberCount: 4})
	mem.AddSnapshot(models.SnapshotRecord{CompanyID: "biz_1", ProductID: "prod_a", SnapshotAt: now.Add(-1 * day), MemberCount: 4})
	mem.AddSnapshot(models.SnapshotRecord{CompanyID: "biz_1", ProductID: "prod_b", SnapshotAt: now.Add(-40 * day), MemberCount: 1})
	return mem
}

func threeStepFunnel() models.Funnel {
	return models.Funnel{
		ExperienceID: "exp_1",
		CompanyID:    "biz_1",
		Steps: []models.Step{
			{Order: 2, ProductID: "prod_c"},
			{Order: 0, ProductID: "prod_a", Product: &models.StepProduct{ID: "prod_a", Title: "Starter Academy"}},
			{Order: 1, ProductID: "prod_b"},
		},
	}
}

func TestComputeFunnelReport(t *testing.T) {
	now := mustTime(t, "2025-06-01T12:00:00Z")
	report, err := ComputeFunnelReport(context.Background(), reportLedger(t, now), threeStepFunnel(), models.ReportConfig{Now: now})
	require.NoError(t, err)

	assert.Equal(t, 30, report.RangeDays)
	assert.Equal(t, now.AddDate(0, 0, -30), report.Since)
	assert.Equal(t, "biz_1", report.CompanyID)
	assert.Equal(t, []string{"prod_c", "prod_a", "prod_b"}, report.ProductIDs)

	// every referenced product is keyed, even without rows
	require.Contains(t, report.Snapshots, "prod_c")
	assert.Empty(t, report.Snapshots["prod_c"])
	assert.Len(t, report.Snapshots["prod_a"], 2)
	assert.Empty(t, report.Snapshots["prod_b"]) // outside the window

	assert.Equal(t, models.RetentionResult{Base: 4, Retained: 4, Rate: 100}, report.Retention["prod_a"]["day7"])
	assert.Equal(t, models.RetentionResult{Base: 2, Retained: 1, Rate: 50}, report.Retention["prod_b"]["day7"])
	assert.Equal(t, models.RetentionResult{}, report.Retention["prod_c"]["day30"])

	require.Len(t, report.StageCohorts, 2)
	ab := report.StageCohorts[0]
	assert.Equal(t, "prod_a", ab.FromProductID)
	assert.Equal(t, "prod_b", ab.ToProductID)
	assert.Equal(t, "Starter Academy", ab.FromName)
	assert.Equal(t, "Step 2", ab.ToName)
	total, converted := 0, 0
	for _, c := range ab.Cohorts {
		total += c.FromCount
		converted += c.ToCount
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, converted)

	bc := report.StageCohorts[1]
	assert.Equal(t, "prod_b", bc.FromProductID)
	assert.Equal(t, "prod_c", bc.ToProductID)
	assert.Equal(t, "Step 3", bc.ToName)
}

func TestComputeFunnelReportUnboundStepBreaksPairing(t *testing.T) {
	now := mustTime(t, "2025-06-01T12:00:00Z")
	funnel := models.Funnel{
		CompanyID: "biz_1",
		Steps: []models.Step{
			{Order: 0, ProductID: "prod_a"},
			{Order: 1},
			{Order: 2, ProductID: "prod_b"},
			{Order: 3, ProductID: "prod_a"},
		},
	}
	report, err := ComputeFunnelReport(context.Background(), reportLedger(t, now), funnel, models.ReportConfig{Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"prod_a", "prod_b"}, report.ProductIDs)
	require.Len(t, report.StageCohorts, 1)
	assert.Equal(t, "prod_b", report.StageCohorts[0].FromProductID)
	assert.Equal(t, "prod_a", report.StageCohorts[0].ToProductID)
	assert.Equal(t, "Step 3", report.StageCohorts[0].FromName)
	assert.Equal(t, "Step 4", report.StageCohorts[0].ToName)
}

func TestComputeFunnelReportEmptyFunnel(t *testing.T) {
	now := mustTime(t, "2025-06-01T12:00:00Z")
	funnel := models.Funnel{CompanyID: "biz_1", Steps: []models.Step{{Order: 0}, {Order: 1}}}
	report, err := ComputeFunnelReport(context.Background(), failingLedger{}, funnel, models.ReportConfig{Now: now, RangeDays: 7})
	require.NoError(t, err)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"rangeDays": 7,
		"since": "2025-05-25T12:00:00Z",
		"companyId": "biz_1",
		"productIds": [],
		"snapshots": {},
		"retention": {},
		"stageCohorts": []
	}`, string(raw))
}

func TestComputeFunnelReportIdempotent(t *testing.T) {
	now := mustTime(t, "2025-06-01T12:00:00Z")
	mem := reportLedger(t, now)
	cfg := models.ReportConfig{Now: now, RangeDays: 60}

	first, err := ComputeFunnelReport(context.Background(), mem, threeStepFunnel(), cfg)
	require.NoError(t, err)
	second, err := ComputeFunnelReport(context.Background(), mem, threeStepFunnel(), cfg)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	cfg.Concurrency = 1
	sequential, err := ComputeFunnelReport(context.Background(), mem, threeStepFunnel(), cfg)
	require.NoError(t, err)
	c, err := json.Marshal(sequential)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(c))
}

func TestComputeFunnelReportLedgerFailure(t *testing.T) {
	now := mustTime(t, "2025-06-01T12:00:00Z")
	for _, op := range []string{opSnapshots, opMembershipsSince, opMembershipsForUsers} {
		l := &flakyLedger{Ledger: reportLedger(t, now), failOp: op}
		report, err := ComputeFunnelReport(context.Background(), l, threeStepFunnel(), models.ReportConfig{Now: now})
		assert.Nil(t, report, op)

		var readErr *LedgerReadError
		require.True(t, errors.As(err, &readErr), op)
		assert.Equal(t, op, readErr.Op)
		assert.ErrorIs(t, err, errLedgerDown)
	}
}

func TestComputeFunnelReportCancelled(t *testing.T) {
	now := mustTime(t, "2025-06-01T12:00:00Z")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := ComputeFunnelReport(ctx, reportLedger(t, now), threeStepFunnel(), models.ReportConfig{Now: now})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
}

var errLedgerDown = errors.New("ledger down")

type failingLedger struct{}

func (failingLedger) ListSnapshots(context.Context, string, []string, time.Time) ([]models.SnapshotRecord, error) {
	return nil, errLedgerDown
}

func (failingLedger) ListMembershipsSince(context.Context, string, string, time.Time) ([]models.MembershipRecord, error) {
	return nil, errLedgerDown
}

func (failingLedger) ListMembershipsForUsers(context.Context, string, string, []string) ([]models.MembershipRecord, error) {
	return nil, errLedgerDown
}

type flakyLedger struct {
	Ledger
	failOp string
}

func (f *flakyLedger) ListSnapshots(ctx context.Context, companyID string, productIDs []string, since time.Time) ([]models.SnapshotRecord, error) {
	if f.failOp == opSnapshots {
		return nil, errLedgerDown
	}
	return f.Ledger.ListSnapshots(ctx, companyID, productIDs, since)
}

func (f *flakyLedger) ListMembershipsSince(ctx context.Context, companyID, productID string, since time.Time) ([]models.MembershipRecord, error) {
	if f.failOp == opMembershipsSince {
		return nil, errLedgerDown
	}
	return f.Ledger.ListMembershipsSince(ctx, companyID, productID, since)
}

func (f *flakyLedger) ListMembershipsForUsers(ctx context.Context, companyID, productID string, userIDs []string) ([]models.MembershipRecord, error) {
	if f.failOp == opMembershipsForUsers {
		return nil, errLedgerDown
	}
	return f.Ledger.ListMembershipsForUsers(ctx, companyID, productID, userIDs)
}
