package dynamo

import (
	"fmt"
	"time"

	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// noteRecord is a single item in the notes table, keyed by (userId, noteId).
type noteRecord struct {
	UserID    string `dynamodbav:"userId"`
	NoteID    string `dynamodbav:"noteId"`
	Title     string `dynamodbav:"title"`
	Content   string `dynamodbav:"content"`
	FileKey   string `dynamodbav:"fileKey,omitempty"`
	FileName  string `dynamodbav:"fileName,omitempty"`
	FileType  string `dynamodbav:"fileType,omitempty"`
	FileURL   string `dynamodbav:"fileUrl,omitempty"`
	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

func toRecord(note *simplenotes.Note) noteRecord {
	rec := noteRecord{
		UserID:    note.OwnerID,
		NoteID:    note.NoteID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: formatTime(note.CreatedAt),
		UpdatedAt: formatTime(note.UpdatedAt),
	}
	if a := note.Attachment; a != nil {
		rec.FileKey = a.BlobKey
		rec.FileName = a.FileName
		rec.FileType = a.ContentType
		rec.FileURL = a.AccessURL
	}
	return rec
}

func (r noteRecord) toNote() (*simplenotes.Note, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt on note %s: %w", r.NoteID, err)
	}
	updatedAt := createdAt
	if r.UpdatedAt != "" {
		if updatedAt, err = parseTime(r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("invalid updatedAt on note %s: %w", r.NoteID, err)
		}
	}

	note := &simplenotes.Note{
		OwnerID:   r.UserID,
		NoteID:    r.NoteID,
		Title:     r.Title,
		Content:   r.Content,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if r.FileKey != "" {
		note.Attachment = &simplenotes.Attachment{
			BlobKey:     r.FileKey,
			FileName:    r.FileName,
			ContentType: r.FileType,
			AccessURL:   r.FileURL,
		}
	}
	return note, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
