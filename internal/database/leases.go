package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Acquire attempts to take the lease for a job slot. The whole operation is
// a single conditional upsert, so the compare-and-set rides on Postgres'
// row-level atomicity: the insert wins an empty slot, the update wins an
// expired one (or renews our own), and any other live holder makes the
// statement affect zero rows.
func (db *DB) Acquire(ctx context.Context, jobName, holderID string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO scheduler_leases (job_name, holder_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_name)
		DO UPDATE SET holder_id = EXCLUDED.holder_id, expires_at = EXCLUDED.expires_at
		WHERE scheduler_leases.expires_at <= now()
		   OR scheduler_leases.holder_id = EXCLUDED.holder_id
		RETURNING job_name
	`
	var got string
	err := db.conn.QueryRowContext(ctx, query, jobName, holderID, time.Now().Add(ttl)).Scan(&got)
	if err == sql.ErrNoRows {
		// Another worker holds a live lease; expected contention, not an error.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", jobName, err)
	}
	return true, nil
}

// Renew extends a lease the holder still owns.
func (db *DB) Renew(ctx context.Context, jobName, holderID string, ttl time.Duration) (bool, error) {
	query := `
		UPDATE scheduler_leases
		SET expires_at = $3
		WHERE job_name = $1 AND holder_id = $2 AND expires_at > now()
	`
	result, err := db.conn.ExecContext(ctx, query, jobName, holderID, time.Now().Add(ttl))
	if err != nil {
		return false, fmt.Errorf("failed to renew lease %s: %w", jobName, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// Release gives up a lease. Only the current holder may release; a release
// after expiry-and-reacquire by another worker is a no-op.
func (db *DB) Release(ctx context.Context, jobName, holderID string) error {
	query := `DELETE FROM scheduler_leases WHERE job_name = $1 AND holder_id = $2`
	if _, err := db.conn.ExecContext(ctx, query, jobName, holderID); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", jobName, err)
	}
	return nil
}
