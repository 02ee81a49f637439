package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"funnel-health/pkg/models"
)

// Memory is an in-memory membership ledger. It applies the same filters and ordering as the
// SQL ledger and hands out copies, so callers can never mutate stored history.
type Memory struct {
	mu          sync.RWMutex
	memberships []models.MembershipRecord
	snapshots   []models.SnapshotRecord
}

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{}
}

// AddMembership appends a membership record.
func (m *Memory) AddMembership(r models.MembershipRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberships = append(m.memberships, cloneMembership(r))
}

// AddSnapshot appends a snapshot record.
func (m *Memory) AddSnapshot(s models.SnapshotRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
}

// Len returns the number of memberships and snapshots held.
func (m *Memory) Len() (memberships, snapshots int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.memberships), len(m.snapshots)
}

// ListSnapshots returns snapshots of productIDs taken at or after since, ascending by time.
func (m *Memory) ListSnapshots(ctx context.Context, companyID string, productIDs []string, since time.Time) ([]models.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := toSet(productIDs)

	m.mu.RLock()
	out := make([]models.SnapshotRecord, 0)
	for _, s := range m.snapshots {
		if s.CompanyID != companyID || s.SnapshotAt.Before(since) {
			continue
		}
		if _, ok := wanted[s.ProductID]; !ok {
			continue
		}
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].SnapshotAt.Before(out[j].SnapshotAt) })
	return out, nil
}

// ListMembershipsSince returns memberships of productID with a non-null joined_at >= since.
func (m *Memory) ListMembershipsSince(ctx context.Context, companyID, productID string, since time.Time) ([]models.MembershipRecord, error) {
	return m.filter(ctx, func(r models.MembershipRecord) bool {
		return r.CompanyID == companyID && r.ProductID == productID &&
			r.JoinedAt != nil && !r.JoinedAt.Before(since)
	})
}

// ListMembershipsForUsers returns memberships of productID with a non-null joined_at for userIDs.
func (m *Memory) ListMembershipsForUsers(ctx context.Context, companyID, productID string, userIDs []string) ([]models.MembershipRecord, error) {
	users := toSet(userIDs)
	return m.filter(ctx, func(r models.MembershipRecord) bool {
		if r.CompanyID != companyID || r.ProductID != productID || r.JoinedAt == nil {
			return false
		}
		_, ok := users[r.UserID]
		return ok
	})
}

func (m *Memory) filter(ctx context.Context, keep func(models.MembershipRecord) bool) ([]models.MembershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MembershipRecord, 0)
	for _, r := range m.memberships {
		if keep(r) {
			out = append(out, cloneMembership(r))
		}
	}
	return out, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func cloneMembership(r models.MembershipRecord) models.MembershipRecord {
	r.JoinedAt = cloneTime(r.JoinedAt)
	r.LastSeenAt = cloneTime(r.LastSeenAt)
	r.LeftAt = cloneTime(r.LeftAt)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
