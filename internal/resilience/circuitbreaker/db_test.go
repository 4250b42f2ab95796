package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBCircuitBreaker_QueryContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	dcb := NewDBCircuitBreaker(db)
	assert.Same(t, db, dcb.DB())

	mock.ExpectQuery("SELECT payload FROM sentiment_analyses").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(`{}`))

	rows, err := dcb.QueryContext(context.Background(), "SELECT payload FROM sentiment_analyses WHERE request_id = $1", "abc")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var payload string
	require.NoError(t, rows.Scan(&payload))
	assert.Equal(t, "{}", payload)
	assert.Equal(t, gobreaker.StateClosed, dcb.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_ExecContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	dcb := NewDBCircuitBreaker(db)
	mock.ExpectExec("DELETE FROM sentiment_analyses").WillReturnResult(sqlmock.NewResult(0, 2))

	res, err := dcb.ExecContext(context.Background(), "DELETE FROM sentiment_analyses")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDBCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	dcb := NewDBCircuitBreakerWithConfig(db, Config{
		Name:             "test-db",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 1.0,
		MinRequests:      3,
	})

	down := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT").WillReturnError(down)
		_, err := dcb.ExecContext(context.Background(), "INSERT INTO t VALUES (1)")
		assert.ErrorIs(t, err, down)
	}
	assert.True(t, dcb.IsOpen())

	_, err = dcb.ExecContext(context.Background(), "INSERT INTO t VALUES (1)")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.NoError(t, mock.ExpectationsWereMet(), "open circuit must not reach the database")
}
