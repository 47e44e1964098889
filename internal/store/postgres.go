package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/kaigo-ai/carelog/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_record": `INSERT INTO care_records (id, record_type, details, recorded_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_record":    `SELECT id, record_type, details, recorded_at, created_at, updated_at FROM care_records WHERE id = $1`,
	"update_record": `UPDATE care_records SET record_type = $1, details = $2, recorded_at = $3, updated_at = $4 WHERE id = $5`,
	"delete_record": `DELETE FROM care_records WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS care_records (
	id          TEXT PRIMARY KEY,
	record_type TEXT NOT NULL,
	details     JSONB NOT NULL DEFAULT '{}'::jsonb,
	recorded_at TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_care_records_type ON care_records(record_type);
CREATE INDEX IF NOT EXISTS idx_care_records_recorded_at ON care_records(recorded_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, recordType model.RecordType, details map[string]string, recordedAt time.Time) (*model.CareRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	if recordedAt.IsZero() {
		recordedAt = now
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal details")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO care_records (id, record_type, details, recorded_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(recordType), detailsJSON, recordedAt.UTC(), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert record")
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

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.CareRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, record_type, details, recorded_at, created_at, updated_at FROM care_records WHERE id = $1`,
		id,
	)
	return scanPostgresRecord(row)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.CareRecord, error) {
	query := `SELECT id, record_type, details, recorded_at, created_at, updated_at FROM care_records WHERE 1=1`
	var args []any

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += ` AND record_type = $` + itoa(len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		query += ` AND recorded_at >= $` + itoa(len(args))
	}
	query += ` ORDER BY recorded_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.CareRecord
	for rows.Next() {
		r, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, id string, recordType model.RecordType, details map[string]string, recordedAt time.Time) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal details")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE care_records SET record_type = $1, details = $2, recorded_at = $3, updated_at = $4 WHERE id = $5`,
		string(recordType), detailsJSON, recordedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "record %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM care_records WHERE id = $1`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete record %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "record %s", id)
	}
	return nil
}

func (s *PostgresStore) CountByType(ctx context.Context, since time.Time) (map[model.RecordType]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record_type, COUNT(*) FROM care_records WHERE recorded_at >= $1 GROUP BY record_type`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by type")
	}
	defer rows.Close()

	counts := make(map[model.RecordType]int)
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[model.RecordType(t)] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count iterate")
}

func scanPostgresRecord(row pgx.Row) (*model.CareRecord, error) {
	var r model.CareRecord
	var recordType string
	var detailsJSON []byte

	err := row.Scan(&r.ID, &recordType, &detailsJSON, &r.RecordedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan record")
	}

	r.RecordType = model.RecordType(recordType)
	if err := json.Unmarshal(detailsJSON, &r.Details); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal details")
	}
	return &r, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
