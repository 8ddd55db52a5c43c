// Package postgres provides a PostgreSQL-backed RecordStore.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/runstream/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresRecordStore implements store.RecordStore using PostgreSQL
type PostgresRecordStore struct {
	pool      DBPool
	tableName string
}

var _ store.RecordStore = (*PostgresRecordStore)(nil)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "run_records"
}

// NewPostgresRecordStore creates a new Postgres record store
func NewPostgresRecordStore(ctx context.Context, opts PostgresOptions) (*PostgresRecordStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "run_records"
	}

	return &PostgresRecordStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// NewPostgresRecordStoreWithPool creates a new Postgres record store with an
// existing pool. Useful for testing with mocks
func NewPostgresRecordStoreWithPool(pool DBPool, tableName string) *PostgresRecordStore {
	if tableName == "" {
		tableName = "run_records"
	}
	return &PostgresRecordStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresRecordStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			root_id UUID NOT NULL,
			parent_id UUID,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			tags JSONB,
			metadata JSONB,
			input JSONB,
			output JSONB,
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_root_id ON %s (root_id);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresRecordStore) Close() {
	s.pool.Close()
}

// Save stores a record
func (s *PostgresRecordStore) Save(ctx context.Context, record *store.Record) error {
	tagsJSON, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	inputJSON, err := json.Marshal(record.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	outputJSON, err := json.Marshal(record.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, root_id, parent_id, kind, name, tags, metadata, input, output, error, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			root_id = EXCLUDED.root_id,
			parent_id = EXCLUDED.parent_id,
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			input = EXCLUDED.input,
			output = EXCLUDED.output,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		record.ID,
		record.RootID,
		record.ParentID,
		record.Kind,
		record.Name,
		tagsJSON,
		metadataJSON,
		inputJSON,
		outputJSON,
		record.Error,
		record.StartedAt,
		record.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Load retrieves a record by run id
func (s *PostgresRecordStore) Load(ctx context.Context, id uuid.UUID) (*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, root_id, parent_id, kind, name, tags, metadata, input, output, error, started_at, ended_at
		FROM %s
		WHERE id = $1
	`, s.tableName)

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return rec, nil
}

// List returns all records for a root run, ordered by start time
func (s *PostgresRecordStore) List(ctx context.Context, rootID uuid.UUID) ([]*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, root_id, parent_id, kind, name, tags, metadata, input, output, error, started_at, ended_at
		FROM %s
		WHERE root_id = $1
		ORDER BY started_at ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}
	return records, nil
}

// Delete removes a record
func (s *PostgresRecordStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Clear removes all records for a root run
func (s *PostgresRecordStore) Clear(ctx context.Context, rootID uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE root_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, rootID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*store.Record, error) {
	var rec store.Record
	var tagsJSON, metadataJSON, inJSON, outJSON []byte

	err := row.Scan(
		&rec.ID,
		&rec.RootID,
		&rec.ParentID,
		&rec.Kind,
		&rec.Name,
		&tagsJSON,
		&metadataJSON,
		&inJSON,
		&outJSON,
		&rec.Error,
		&rec.StartedAt,
		&rec.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tagsJSON, &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(inJSON, &rec.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if err := json.Unmarshal(outJSON, &rec.Output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return &rec, nil
}
