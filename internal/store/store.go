// Package store persists finished care records. Two backends exist:
// SQLite for single-device installs and Postgres for shared facility
// deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kaigo-ai/carelog/internal/model"
)

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	Type   model.RecordType `json:"type,omitempty"`
	Since  time.Time        `json:"since,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// defaultListLimit bounds unconstrained listings.
const defaultListLimit = 100

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = eris.New("store: record not found")

// Store defines the persistence interface for care records.
type Store interface {
	CreateRecord(ctx context.Context, recordType model.RecordType, details map[string]string, recordedAt time.Time) (*model.CareRecord, error)
	GetRecord(ctx context.Context, id string) (*model.CareRecord, error)
	// ListRecords returns records newest-first, bounded by the filter's
	// limit (default 100).
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.CareRecord, error)
	UpdateRecord(ctx context.Context, id string, recordType model.RecordType, details map[string]string, recordedAt time.Time) error
	DeleteRecord(ctx context.Context, id string) error

	// CountByType tallies records per type recorded at or after since,
	// for the daily dashboard.
	CountByType(ctx context.Context, since time.Time) (map[model.RecordType]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
