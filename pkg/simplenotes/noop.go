package simplenotes

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) NoteCreated(ctx context.Context, note *Note) error {
	return nil
}

func (n *NoopEventSink) NoteUpdated(ctx context.Context, note *Note) error {
	return nil
}

func (n *NoopEventSink) NoteDeleted(ctx context.Context, ownerID, noteID string) error {
	return nil
}

func (n *NoopEventSink) BlobOrphaned(ctx context.Context, blobKey string, cause error) error {
	return nil
}

// LoggingEventSink writes every event to a structured logger
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink that logs through logger.
// A nil logger uses slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) NoteCreated(ctx context.Context, note *Note) error {
	l.logger.InfoContext(ctx, "Note created", "owner_id", note.OwnerID, "note_id", note.NoteID, "has_attachment", note.Attachment != nil)
	return nil
}

func (l *LoggingEventSink) NoteUpdated(ctx context.Context, note *Note) error {
	l.logger.InfoContext(ctx, "Note updated", "owner_id", note.OwnerID, "note_id", note.NoteID, "has_attachment", note.Attachment != nil)
	return nil
}

func (l *LoggingEventSink) NoteDeleted(ctx context.Context, ownerID, noteID string) error {
	l.logger.InfoContext(ctx, "Note deleted", "owner_id", ownerID, "note_id", noteID)
	return nil
}

func (l *LoggingEventSink) BlobOrphaned(ctx context.Context, blobKey string, cause error) error {
	l.logger.WarnContext(ctx, "Attachment blob orphaned", "blob_key", blobKey, "error", cause)
	return nil
}
