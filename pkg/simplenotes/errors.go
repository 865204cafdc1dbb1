package simplenotes

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-notes/pkg/simplenotes/multipart"
)

// Error types
var (
	// ErrNoteNotFound indicates no note exists for the owner and note ID
	ErrNoteNotFound = errors.New("note not found")

	// ErrDecode indicates a request body that could not be decoded.
	// It matches multipart decode failures as well.
	ErrDecode = multipart.ErrMalformed

	// ErrInvalidNote indicates a decoded note that is missing required fields
	ErrInvalidNote = errors.New("invalid note")

	// ErrMissingNoteID indicates an update or delete without a note ID
	ErrMissingNoteID = errors.New("noteId is required")

	// ErrUnsupportedMediaType indicates a body that is neither JSON nor multipart/form-data
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrBlobNotFound indicates no blob exists under a key
	ErrBlobNotFound = errors.New("blob not found")

	// ErrStorageUnavailable indicates the attachment store failed
	ErrStorageUnavailable = errors.New("attachment storage unavailable")

	// ErrRepositoryUnavailable indicates the note repository failed
	ErrRepositoryUnavailable = errors.New("note repository unavailable")
)

// NoteError represents an error related to note operations
type NoteError struct {
	OwnerID string
	NoteID  string
	Op      string
	Err     error
}

func (e *NoteError) Error() string {
	if e.NoteID == "" {
		return fmt.Sprintf("note operation %s failed for owner %s: %v", e.Op, e.OwnerID, e.Err)
	}
	return fmt.Sprintf("note operation %s failed for note %s/%s: %v", e.Op, e.OwnerID, e.NoteID, e.Err)
}

func (e *NoteError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to attachment storage operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both ErrStorageUnavailable and the backend error.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

// repositoryError wraps a backend error as ErrRepositoryUnavailable unless it
// is already a not-found condition.
func repositoryError(err error) error {
	if errors.Is(err, ErrNoteNotFound) || errors.Is(err, ErrRepositoryUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
}
