package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigo-ai/carelog/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_CreateRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO care_records`).
		WithArgs(pgxmock.AnyArg(), "meal", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.CreateRecord(context.Background(), model.RecordMeal,
		map[string]string{"main_dish": "全粥"}, time.Time{})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.RecordMeal, rec.RecordType)
	assert.False(t, rec.RecordedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "record_type", "details", "recorded_at", "created_at", "updated_at"}).
		AddRow("rec-1", "vital", []byte(`{"temperature":"36.8"}`), now, now, now)

	mock.ExpectQuery(`SELECT id, record_type, details, recorded_at, created_at, updated_at FROM care_records WHERE id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(rows)

	rec, err := s.GetRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, model.RecordVital, rec.RecordType)
	assert.Equal(t, "36.8", rec.Details["temperature"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, record_type, details, recorded_at, created_at, updated_at FROM care_records WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRecord(context.Background(), "nonexistent")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecords_AppliesFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "record_type", "details", "recorded_at", "created_at", "updated_at"}).
		AddRow("rec-1", "meal", []byte(`{"main_dish":"ご飯"}`), now, now, now)

	mock.ExpectQuery(`SELECT .+ FROM care_records WHERE 1=1 AND record_type = \$1 ORDER BY recorded_at DESC LIMIT \$2`).
		WithArgs("meal", 25).
		WillReturnRows(rows)

	records, err := s.ListRecords(context.Background(), RecordFilter{Type: model.RecordMeal, Limit: 25})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ご飯", records[0].Details["main_dish"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecords_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"id", "record_type", "details", "recorded_at", "created_at", "updated_at"})

	mock.ExpectQuery(`SELECT .+ FROM care_records WHERE 1=1 ORDER BY recorded_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(rows)

	_, err := s.ListRecords(context.Background(), RecordFilter{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE care_records SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRecord(context.Background(), "nope", model.RecordOther, nil, time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM care_records WHERE id = \$1`).
		WithArgs("rec-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteRecord(context.Background(), "rec-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByType(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"record_type", "count"}).
		AddRow("meal", int64(3)).
		AddRow("vital", int64(1))

	mock.ExpectQuery(`SELECT record_type, COUNT\(\*\) FROM care_records`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)

	counts, err := s.CountByType(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, counts[model.RecordMeal])
	assert.Equal(t, 1, counts[model.RecordVital])
	assert.NoError(t, mock.ExpectationsWereMet())
}
