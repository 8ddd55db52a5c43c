// Package sqlite provides a SQLite-backed RecordStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/runstream/store"
)

// SqliteRecordStore implements store.RecordStore using SQLite
type SqliteRecordStore struct {
	db        *sql.DB
	tableName string
}

var _ store.RecordStore = (*SqliteRecordStore)(nil)

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "run_records"
}

// NewSqliteRecordStore creates a new SQLite record store
func NewSqliteRecordStore(opts SqliteOptions) (*SqliteRecordStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "run_records"
	}

	s := &SqliteRecordStore{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteRecordStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			root_id TEXT NOT NULL,
			parent_id TEXT,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			tags TEXT,
			metadata TEXT,
			input TEXT,
			output TEXT,
			error TEXT,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_root_id ON %s (root_id);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteRecordStore) Close() error {
	return s.db.Close()
}

// Save stores a record
func (s *SqliteRecordStore) Save(ctx context.Context, record *store.Record) error {
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

	var parentID any
	if record.ParentID != nil {
		parentID = record.ParentID.String()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, root_id, parent_id, kind, name, tags, metadata, input, output, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			root_id = excluded.root_id,
			parent_id = excluded.parent_id,
			kind = excluded.kind,
			name = excluded.name,
			tags = excluded.tags,
			metadata = excluded.metadata,
			input = excluded.input,
			output = excluded.output,
			error = excluded.error,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		record.ID.String(),
		record.RootID.String(),
		parentID,
		record.Kind,
		record.Name,
		string(tagsJSON),
		string(metadataJSON),
		string(inputJSON),
		string(outputJSON),
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
func (s *SqliteRecordStore) Load(ctx context.Context, id uuid.UUID) (*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, root_id, parent_id, kind, name, tags, metadata, input, output, error, started_at, ended_at
		FROM %s
		WHERE id = ?
	`, s.tableName)

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return rec, nil
}

// List returns all records for a root run, ordered by start time
func (s *SqliteRecordStore) List(ctx context.Context, rootID uuid.UUID) ([]*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, root_id, parent_id, kind, name, tags, metadata, input, output, error, started_at, ended_at
		FROM %s
		WHERE root_id = ?
		ORDER BY started_at ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, rootID.String())
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
func (s *SqliteRecordStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	_, err := s.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Clear removes all records for a root run
func (s *SqliteRecordStore) Clear(ctx context.Context, rootID uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE root_id = ?", s.tableName)
	_, err := s.db.ExecContext(ctx, query, rootID.String())
	if err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*store.Record, error) {
	var rec store.Record
	var idStr, rootStr string
	var parentStr sql.NullString
	var tagsJSON, metadataJSON, inJSON, outJSON string

	err := row.Scan(
		&idStr,
		&rootStr,
		&parentStr,
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

	if rec.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid record id: %w", err)
	}
	if rec.RootID, err = uuid.Parse(rootStr); err != nil {
		return nil, fmt.Errorf("invalid root id: %w", err)
	}
	if parentStr.Valid {
		parent, err := uuid.Parse(parentStr.String)
		if err != nil {
			return nil, fmt.Errorf("invalid parent id: %w", err)
		}
		rec.ParentID = &parent
	}

	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(inJSON), &rec.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if err := json.Unmarshal([]byte(outJSON), &rec.Output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return &rec, nil
}
