package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kaigo-ai/carelog/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS care_records (
	id          TEXT PRIMARY KEY,
	record_type TEXT NOT NULL,
	details     TEXT NOT NULL,
	recorded_at DATETIME NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_care_records_type ON care_records(record_type);
CREATE INDEX IF NOT EXISTS idx_care_records_recorded_at ON care_records(recorded_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, recordType model.RecordType, details map[string]string, recordedAt time.Time) (*model.CareRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	if recordedAt.IsZero() {
		recordedAt = now
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal details")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO care_records (id, record_type, details, recorded_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(recordType), string(detailsJSON), recordedAt.UTC(), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert record")
	}

	return &model.CareRecord{
		ID:         id,
		RecordType: recordType,
		Details:    details,
		RecordedAt: recordedAt.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.CareRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, record_type, details, recorded_at, created_at, updated_at FROM care_records WHERE id = ?`,
		id,
	)
	return scanRecord(row)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.CareRecord, error) {
	query := `SELECT id, record_type, details, recorded_at, created_at, updated_at FROM care_records WHERE 1=1`
	var args []any

	if filter.Type != "" {
		query += ` AND record_type = ?`
		args = append(args, string(filter.Type))
	}
	if !filter.Since.IsZero() {
		query += ` AND recorded_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY recorded_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.CareRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, id string, recordType model.RecordType, details map[string]string, recordedAt time.Time) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal details")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE care_records SET record_type = ?, details = ?, recorded_at = ?, updated_at = ? WHERE id = ?`,
		string(recordType), string(detailsJSON), recordedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record %s", id)
	}
	return checkRowsAffected(res, "record", id)
}

func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM care_records WHERE id = ?`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete record %s", id)
	}
	return checkRowsAffected(res, "record", id)
}

func (s *SQLiteStore) CountByType(ctx context.Context, since time.Time) (map[model.RecordType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_type, COUNT(*) FROM care_records WHERE recorded_at >= ? GROUP BY record_type`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by type")
	}
	defer rows.Close()

	counts := make(map[model.RecordType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.RecordType(t)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.CareRecord, error) {
	var r model.CareRecord
	var recordType string
	var detailsJSON string

	err := row.Scan(&r.ID, &recordType, &detailsJSON, &r.RecordedAt, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan record")
	}

	r.RecordType = model.RecordType(recordType)
	if err := json.Unmarshal([]byte(detailsJSON), &r.Details); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal details")
	}
	return &r, nil
}
