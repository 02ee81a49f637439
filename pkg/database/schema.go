package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS funnels (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		experience_id VARCHAR(64) NOT NULL,
		company_id VARCHAR(64) NOT NULL,
		steps JSON NOT NULL,
		counting_mode CHAR(1) NOT NULL DEFAULT 'A',
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		UNIQUE KEY uniq_funnels_experience (experience_id)
	)`,
	`CREATE TABLE IF NOT EXISTS product_memberships (
		company_id VARCHAR(64) NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		joined_at DATETIME(3) NULL,
		last_seen_at DATETIME(3) NULL,
		most_recent_action_at DATETIME(3) NULL,
		left_at DATETIME(3) NULL,
		PRIMARY KEY (company_id, product_id, user_id),
		KEY idx_memberships_joined (company_id, product_id, joined_at)
	)`,
	`CREATE TABLE IF NOT EXISTS product_snapshots (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		company_id VARCHAR(64) NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		snapshot_at DATETIME(3) NOT NULL,
		member_count INT NOT NULL,
		KEY idx_snapshots_product_time (company_id, product_id, snapshot_at)
	)`,
}

// EnsureSchema creates the ledger and funnel tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
	}
	return nil
}
