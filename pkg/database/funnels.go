package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"funnel-health/pkg/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FunnelStore keeps funnel definitions in the funnels table, one row per experience.
type FunnelStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewFunnelStore wraps an open database.
func NewFunnelStore(db *sql.DB) *FunnelStore {
	return &FunnelStore{db: db, now: time.Now}
}

// Get returns the funnel of experienceID or models.ErrFunnelNotFound.
func (s *FunnelStore) Get(ctx context.Context, experienceID string) (*models.Funnel, error) {
	q := funnelSelect + ` WHERE experience_id = ? LIMIT 1`

	f, err := scanFunnel(s.db.QueryRowContext(ctx, q, experienceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrFunnelNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get funnel %s", experienceID)
	}
	return f, nil
}

// All returns every stored funnel, ordered by experience.
func (s *FunnelStore) All(ctx context.Context) ([]models.Funnel, error) {
	rows, err := s.db.QueryContext(ctx, funnelSelect+` ORDER BY experience_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list funnels")
	}
	defer rows.Close()

	out := make([]models.Funnel, 0)
	for rows.Next() {
		f, err := scanFunnel(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan funnels")
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate funnels")
	}
	return out, nil
}

const funnelSelect = `
		SELECT id, experience_id, company_id, steps, counting_mode, created_at, updated_at
		FROM funnels`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFunnel(row rowScanner) (*models.Funnel, error) {
	var (
		f     models.Funnel
		steps []byte
	)
	if err := row.Scan(&f.ID, &f.ExperienceID, &f.CompanyID, &steps, &f.CountingMode, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &f.Steps); err != nil {
		return nil, errors.Wrapf(err, "decode steps of funnel %s", f.ExperienceID)
	}
	if f.Steps == nil {
		f.Steps = []models.Step{}
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

// Upsert inserts or replaces the funnel of f.ExperienceID and returns the stored row.
func (s *FunnelStore) Upsert(ctx context.Context, f models.Funnel) (*models.Funnel, error) {
	const q = `
		INSERT INTO funnels (id, experience_id, company_id, steps, counting_mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			company_id = VALUES(company_id),
			steps = VALUES(steps),
			counting_mode = VALUES(counting_mode),
			updated_at = VALUES(updated_at)`

	steps := f.Steps
	if steps == nil {
		steps = []models.Step{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return nil, errors.Wrap(err, "encode steps")
	}
	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, q,
		uuid.NewString(), f.ExperienceID, f.CompanyID, raw, f.CountingMode, now, now); err != nil {
		return nil, errors.Wrapf(err, "upsert funnel %s", f.ExperienceID)
	}
	return s.Get(ctx, f.ExperienceID)
}

// Delete removes the funnel of experienceID and reports whether one existed.
func (s *FunnelStore) Delete(ctx context.Context, experienceID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM funnels WHERE experience_id = ?`, experienceID)
	if err != nil {
		return false, errors.Wrapf(err, "delete funnel %s", experienceID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}
