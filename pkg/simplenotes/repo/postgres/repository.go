package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Schema creates the notes table. Attachment columns are NULL when the note
// has no attachment.
const Schema = `
CREATE TABLE IF NOT EXISTS notes (
	owner_id   TEXT        NOT NULL,
	note_id    TEXT        NOT NULL,
	title      TEXT        NOT NULL,
	content    TEXT        NOT NULL,
	file_key   TEXT,
	file_name  TEXT,
	file_type  TEXT,
	file_url   TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_id, note_id)
)`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplenotes.NoteRepository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var _ simplenotes.NoteRepository = (*Repository)(nil)

// Migrate creates the notes table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simplenotes.ErrNoteNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const noteColumns = `owner_id, note_id, title, content, file_key, file_name, file_type, file_url, created_at, updated_at`

func (r *Repository) Put(ctx context.Context, note *simplenotes.Note) error {
	query := `
		INSERT INTO notes (` + noteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id, note_id) DO UPDATE SET
			title = EXCLUDED.title, content = EXCLUDED.content,
			file_key = EXCLUDED.file_key, file_name = EXCLUDED.file_name,
			file_type = EXCLUDED.file_type, file_url = EXCLUDED.file_url,
			created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at`

	key, name, contentType, url := attachmentColumns(note.Attachment)
	_, err := r.db.Exec(ctx, query,
		note.OwnerID, note.NoteID, note.Title, note.Content,
		key, name, contentType, url, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("put note", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, ownerID, noteID string) (*simplenotes.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1 AND note_id = $2`

	note, err := scanNote(r.db.QueryRow(ctx, query, ownerID, noteID))
	if err != nil {
		return nil, r.handlePostgresError("get note", err)
	}
	return note, nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*simplenotes.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list notes", err)
	}
	defer rows.Close()

	notes := []*simplenotes.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, r.handlePostgresError("list notes", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list notes", err)
	}
	return notes, nil
}

func (r *Repository) Patch(ctx context.Context, ownerID, noteID string, patch simplenotes.NotePatch) error {
	query := `
		UPDATE notes SET
			title = $3, content = $4,
			file_key = $5, file_name = $6, file_type = $7, file_url = $8,
			updated_at = $9
		WHERE owner_id = $1 AND note_id = $2`

	key, name, contentType, url := attachmentColumns(patch.Attachment)
	tag, err := r.db.Exec(ctx, query,
		ownerID, noteID, patch.Title, patch.Content,
		key, name, contentType, url, patch.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("patch note", err)
	}
	if tag.RowsAffected() == 0 {
		return simplenotes.ErrNoteNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, ownerID, noteID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM notes WHERE owner_id = $1 AND note_id = $2`, ownerID, noteID)
	if err != nil {
		return r.handlePostgresError("delete note", err)
	}
	return nil
}

func attachmentColumns(a *simplenotes.Attachment) (key, name, contentType, url *string) {
	if a == nil {
		return nil, nil, nil, nil
	}
	return &a.BlobKey, &a.FileName, &a.ContentType, &a.AccessURL
}

func scanNote(row pgx.Row) (*simplenotes.Note, error) {
	var note simplenotes.Note
	var key, name, contentType, url *string
	err := row.Scan(
		&note.OwnerID, &note.NoteID, &note.Title, &note.Content,
		&key, &name, &contentType, &url, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if key != nil {
		note.Attachment = &simplenotes.Attachment{BlobKey: *key}
		if name != nil {
			note.Attachment.FileName = *name
		}
		if contentType != nil {
			note.Attachment.ContentType = *contentType
		}
		if url != nil {
			note.Attachment.AccessURL = *url
		}
	}
	note.CreatedAt = note.CreatedAt.UTC()
	note.UpdatedAt = note.UpdatedAt.UTC()
	return &note, nil
}
