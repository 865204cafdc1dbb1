package simplenotes

import (
	"context"
	"time"
)

// Service is the note lifecycle API
type Service interface {
	// CreateNote decodes the payload, stores any attached file and writes a new note
	CreateNote(ctx context.Context, req CreateNoteRequest) (*Note, error)

	// GetNote returns a single note
	GetNote(ctx context.Context, req GetNoteRequest) (*Note, error)

	// ListNotes returns every note of an owner, in no particular order
	ListNotes(ctx context.Context, req ListNotesRequest) ([]*Note, error)

	// UpdateNote applies a partial update, replacing or removing the attachment if asked
	UpdateNote(ctx context.Context, req UpdateNoteRequest) (*Note, error)

	// DeleteNote removes a note and attempts to remove its attachment blob
	DeleteNote(ctx context.Context, req DeleteNoteRequest) error
}

// AttachmentStore holds attachment blobs by key
type AttachmentStore interface {
	// Put stores data under key, overwriting any existing blob
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Delete removes the blob under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// SignedURL derives a URL granting read access to key for ttl
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// NoteRepository persists note records keyed by (ownerID, noteID).
// Implementations return ErrNoteNotFound for missing keys.
type NoteRepository interface {
	// Put upserts the whole note
	Put(ctx context.Context, note *Note) error

	// Get returns the note or ErrNoteNotFound
	Get(ctx context.Context, ownerID, noteID string) (*Note, error)

	// ListByOwner returns all notes for ownerID
	ListByOwner(ctx context.Context, ownerID string) ([]*Note, error)

	// Patch replaces title, content, attachment and updatedAt only.
	// It returns ErrNoteNotFound if the note does not exist.
	Patch(ctx context.Context, ownerID, noteID string, patch NotePatch) error

	// Delete removes the note. Deleting a missing note is not an error.
	Delete(ctx context.Context, ownerID, noteID string) error
}

// EventSink receives note lifecycle notifications. Errors returned by a sink
// are logged and never fail the operation.
type EventSink interface {
	NoteCreated(ctx context.Context, note *Note) error
	NoteUpdated(ctx context.Context, note *Note) error
	NoteDeleted(ctx context.Context, ownerID, noteID string) error

	// BlobOrphaned is fired when a blob could not be deleted and is left
	// behind without a note referencing it
	BlobOrphaned(ctx context.Context, blobKey string, cause error) error
}
