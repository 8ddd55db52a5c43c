package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/runstream/store"
)

func TestPostgresRecordStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresRecordStoreWithPool(mock, "run_records")

	rec := &store.Record{
		ID:        uuid.New(),
		RootID:    uuid.New(),
		Kind:      "llm",
		Name:      "gpt",
		Tags:      []string{"prod"},
		Metadata:  map[string]any{"env": "test"},
		Input:     map[string]any{"prompts": []any{"hi"}},
		Output:    "Hello",
		StartedAt: time.Now(),
		EndedAt:   time.Now().Add(time.Second),
	}

	tagsJSON, _ := json.Marshal(rec.Tags)
	metadataJSON, _ := json.Marshal(rec.Metadata)
	inputJSON, _ := json.Marshal(rec.Input)
	outputJSON, _ := json.Marshal(rec.Output)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO run_records")).
		WithArgs(
			rec.ID,
			rec.RootID,
			(*uuid.UUID)(nil),
			rec.Kind,
			rec.Name,
			tagsJSON,
			metadataJSON,
			inputJSON,
			outputJSON,
			rec.Error,
			rec.StartedAt,
			rec.EndedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresRecordStoreWithPool(mock, "run_records")

	id := uuid.New()
	rootID := uuid.New()
	parentID := uuid.New()
	started := time.Now()

	tagsJSON, _ := json.Marshal([]string{"prod"})
	metadataJSON, _ := json.Marshal(map[string]any{"env": "test"})
	inputJSON, _ := json.Marshal(map[string]any{"q": "x"})
	outputJSON, _ := json.Marshal("Hello")

	rows := pgxmock.NewRows([]string{
		"id", "root_id", "parent_id", "kind", "name",
		"tags", "metadata", "input", "output", "error",
		"started_at", "ended_at",
	}).AddRow(id, rootID, &parentID, "llm", "gpt",
		tagsJSON, metadataJSON, inputJSON, outputJSON, "",
		started, started.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, root_id, parent_id, kind, name, tags, metadata, input, output, error, started_at, ended_at")).
		WithArgs(id).
		WillReturnRows(rows)

	loaded, err := s.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.ID)
	assert.Equal(t, rootID, loaded.RootID)
	require.NotNil(t, loaded.ParentID)
	assert.Equal(t, parentID, *loaded.ParentID)
	assert.Equal(t, "gpt", loaded.Name)
	assert.Equal(t, []string{"prod"}, loaded.Tags)
	assert.Equal(t, "Hello", loaded.Output)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStore_LoadMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresRecordStoreWithPool(mock, "run_records")

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "root_id", "parent_id", "kind", "name",
			"tags", "metadata", "input", "output", "error",
			"started_at", "ended_at",
		}))

	_, err = s.Load(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStore_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresRecordStoreWithPool(mock, "run_records")

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM run_records WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStore_Clear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresRecordStoreWithPool(mock, "run_records")

	rootID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM run_records WHERE root_id = $1")).
		WithArgs(rootID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, s.Clear(context.Background(), rootID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
