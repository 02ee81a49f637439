package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"funnel-health/pkg/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// inChunkSize bounds the number of placeholders of one IN (...) list.
const inChunkSize = 500

// Open DSN mariadb:// or mysql:// → go-sql-driver format
func Open(dsn string, maxOpenConns int) (*sql.DB, string, error) {
	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, "", errors.Wrap(err, "open mysql")
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, mysqlDSN, nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("incomplete dsn (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// Ledger reads membership history from the product_memberships and product_snapshots tables.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps an open database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// ListSnapshots returns snapshots of productIDs taken at or after since, ascending by time.
func (l *Ledger) ListSnapshots(ctx context.Context, companyID string, productIDs []string, since time.Time) ([]models.SnapshotRecord, error) {
	out := make([]models.SnapshotRecord, 0)
	for _, chunk := range chunks(productIDs, inChunkSize) {
		q := fmt.Sprintf(`
			SELECT product_id, snapshot_at, member_count
			FROM product_snapshots
			WHERE company_id = ? AND product_id IN (%s) AND snapshot_at >= ?
			ORDER BY snapshot_at ASC`, placeholders(len(chunk)))

		args := make([]any, 0, len(chunk)+2)
		args = append(args, companyID)
		for _, id := range chunk {
			args = append(args, id)
		}
		args = append(args, since.UTC())

		rows, err := l.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, errors.Wrap(err, "query product_snapshots")
		}
		for rows.Next() {
			s := models.SnapshotRecord{CompanyID: companyID}
			if err := rows.Scan(&s.ProductID, &s.SnapshotAt, &s.MemberCount); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "scan product_snapshots")
			}
			s.SnapshotAt = s.SnapshotAt.UTC()
			out = append(out, s)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, errors.Wrap(err, "iterate product_snapshots")
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SnapshotAt.Before(out[j].SnapshotAt) })
	return out, nil
}

// ListMembershipsSince returns memberships of productID with a non-null joined_at >= since.
func (l *Ledger) ListMembershipsSince(ctx context.Context, companyID, productID string, since time.Time) ([]models.MembershipRecord, error) {
	const q = `
		SELECT user_id, joined_at, last_seen_at, left_at
		FROM product_memberships
		WHERE company_id = ? AND product_id = ? AND joined_at IS NOT NULL AND joined_at >= ?`

	rows, err := l.db.QueryContext(ctx, q, companyID, productID, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "query product_memberships")
	}
	defer rows.Close()
	return scanMemberships(rows, companyID, productID)
}

// ListMembershipsForUsers returns memberships of productID with a non-null joined_at for userIDs.
func (l *Ledger) ListMembershipsForUsers(ctx context.Context, companyID, productID string, userIDs []string) ([]models.MembershipRecord, error) {
	out := make([]models.MembershipRecord, 0)
	for _, chunk := range chunks(userIDs, inChunkSize) {
		q := fmt.Sprintf(`
			SELECT user_id, joined_at, last_seen_at, left_at
			FROM product_memberships
			WHERE company_id = ? AND product_id = ? AND user_id IN (%s) AND joined_at IS NOT NULL`,
			placeholders(len(chunk)))

		args := make([]any, 0, len(chunk)+2)
		args = append(args, companyID, productID)
		for _, id := range chunk {
			args = append(args, id)
		}

		rows, err := l.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, errors.Wrap(err, "query product_memberships by users")
		}
		part, err := scanMemberships(rows, companyID, productID)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	log.WithFields(log.Fields{
		"product_id": productID,
		"users":      len(userIDs),
		"rows":       len(out),
	}).Debug("Loaded memberships for users.")
	return out, nil
}

func scanMemberships(rows *sql.Rows, companyID, productID string) ([]models.MembershipRecord, error) {
	out := make([]models.MembershipRecord, 0)
	for rows.Next() {
		var (
			userID                     string
			joinedAt, lastSeen, leftAt sql.NullTime
		)
		if err := rows.Scan(&userID, &joinedAt, &lastSeen, &leftAt); err != nil {
			return nil, errors.Wrap(err, "scan product_memberships")
		}
		out = append(out, models.MembershipRecord{
			CompanyID:  companyID,
			ProductID:  productID,
			UserID:     userID,
			JoinedAt:   nullTime(joinedAt),
			LastSeenAt: nullTime(lastSeen),
			LeftAt:     nullTime(leftAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate product_memberships")
	}
	return out, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
