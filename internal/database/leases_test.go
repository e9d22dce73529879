package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Granted(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	db := NewFromConn(conn)

	mock.ExpectQuery(`INSERT INTO scheduler_leases .+ ON CONFLICT \(job_name\)`).
		WithArgs("price-refresh", "worker-a", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"job_name"}).AddRow("price-refresh"))

	granted, err := db.Acquire(context.Background(), "price-refresh", "worker-a", 4*time.Minute)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquire_DeniedWhenHeld_NotAnError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	db := NewFromConn(conn)

	// A live lease held by someone else makes the conditional upsert
	// affect zero rows.
	mock.ExpectQuery(`INSERT INTO scheduler_leases`).
		WithArgs("price-refresh", "worker-b", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"job_name"}))

	granted, err := db.Acquire(context.Background(), "price-refresh", "worker-b", 4*time.Minute)
	require.NoError(t, err, "lease contention is expected steady state")
	assert.False(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRenew_OnlyLiveOwnLease(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	db := NewFromConn(conn)

	mock.ExpectExec(`UPDATE scheduler_leases`).
		WithArgs("daily-snapshot", "worker-a", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	renewed, err := db.Renew(context.Background(), "daily-snapshot", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, renewed, "an expired or stolen lease must not renew")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelease_HolderChecked(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	db := NewFromConn(conn)

	mock.ExpectExec(`DELETE FROM scheduler_leases WHERE job_name = \$1 AND holder_id = \$2`).
		WithArgs("price-refresh", "worker-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.Release(context.Background(), "price-refresh", "worker-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
