package simplenotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-notes/pkg/simplenotes/multipart"
	"github.com/tendant/simple-notes/pkg/simplenotes/objectkey"
)

// service implements the Service interface
type service struct {
	repository        NoteRepository
	store             AttachmentStore
	keyGenerator      objectkey.Generator
	eventSink         EventSink
	logger            *slog.Logger
	urlTTL            time.Duration
	refreshURLsOnRead bool
	now               func() time.Time
	newID             func() string
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the note repository for the service
func WithRepository(repo NoteRepository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithAttachmentStore sets the blob store for note attachments
func WithAttachmentStore(store AttachmentStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithKeyGenerator sets the blob key generation strategy
func WithKeyGenerator(generator objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = generator
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithURLTTL sets the lifetime of issued attachment URLs
func WithURLTTL(ttl time.Duration) Option {
	return func(s *service) {
		s.urlTTL = ttl
	}
}

// WithURLRefreshOnRead re-derives attachment URLs on get and list.
// Refreshed URLs are returned to the caller but not persisted.
func WithURLRefreshOnRead(enabled bool) Option {
	return func(s *service) {
		s.refreshURLsOnRead = enabled
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithIDGenerator overrides note ID generation
func WithIDGenerator(newID func() string) Option {
	return func(s *service) {
		s.newID = newID
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		keyGenerator: objectkey.NewRecommendedGenerator(),
		eventSink:    NewNoopEventSink(),
		urlTTL:       DefaultURLTTL,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("attachment store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.urlTTL <= 0 {
		s.urlTTL = DefaultURLTTL
	}

	return s, nil
}

func (s *service) CreateNote(ctx context.Context, req CreateNoteRequest) (*Note, error) {
	// A started create runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidNote)
	}

	payload, err := decodePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	if payload.Title == nil || payload.Content == nil {
		return nil, fmt.Errorf("%w: title and content are required", ErrInvalidNote)
	}

	now := s.now()
	note := &Note{
		OwnerID:   req.OwnerID,
		NoteID:    s.newID(),
		Title:     *payload.Title,
		Content:   *payload.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if payload.File != nil {
		attachment, err := s.storeFile(ctx, note.OwnerID, note.NoteID, payload.File, now)
		if err != nil {
			return nil, &NoteError{OwnerID: note.OwnerID, NoteID: note.NoteID, Op: "create", Err: err}
		}
		note.Attachment = attachment
	}

	if err := s.repository.Put(ctx, note); err != nil {
		if note.Attachment != nil {
			s.cleanupBlob(ctx, note.OwnerID, note.NoteID, note.Attachment.BlobKey)
		}
		return nil, &NoteError{OwnerID: note.OwnerID, NoteID: note.NoteID, Op: "create", Err: repositoryError(err)}
	}

	if err := s.eventSink.NoteCreated(ctx, note); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "note_created", "note_id", note.NoteID, "error", err)
	}

	return note.Clone(), nil
}

func (s *service) GetNote(ctx context.Context, req GetNoteRequest) (*Note, error) {
	if req.NoteID == "" {
		return nil, ErrMissingNoteID
	}

	note, err := s.repository.Get(ctx, req.OwnerID, req.NoteID)
	if err != nil {
		return nil, &NoteError{OwnerID: req.OwnerID, NoteID: req.NoteID, Op: "get", Err: repositoryError(err)}
	}

	if s.refreshURLsOnRead {
		s.refreshURL(ctx, note)
	}
	return note, nil
}

func (s *service) ListNotes(ctx context.Context, req ListNotesRequest) ([]*Note, error) {
	notes, err := s.repository.ListByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, &NoteError{OwnerID: req.OwnerID, Op: "list", Err: repositoryError(err)}
	}
	if notes == nil {
		notes = []*Note{}
	}

	if s.refreshURLsOnRead {
		for _, note := range notes {
			s.refreshURL(ctx, note)
		}
	}
	return notes, nil
}

func (s *service) UpdateNote(ctx context.Context, req UpdateNoteRequest) (*Note, error) {
	ctx = context.WithoutCancel(ctx)

	payload, err := decodePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	noteID := req.NoteID
	if noteID == "" {
		noteID = payload.NoteID
	}
	if noteID == "" {
		return nil, ErrMissingNoteID
	}

	existing, err := s.repository.Get(ctx, req.OwnerID, noteID)
	if err != nil {
		return nil, &NoteError{OwnerID: req.OwnerID, NoteID: noteID, Op: "update", Err: repositoryError(err)}
	}

	patch := NotePatch{
		Title:      existing.Title,
		Content:    existing.Content,
		Attachment: existing.Attachment,
		UpdatedAt:  s.now(),
	}
	if payload.Title != nil {
		patch.Title = *payload.Title
	}
	if payload.Content != nil {
		patch.Content = *payload.Content
	}

	var written *Attachment
	switch {
	case payload.File != nil:
		if existing.Attachment != nil {
			s.cleanupBlob(ctx, req.OwnerID, noteID, existing.Attachment.BlobKey)
		}
		written, err = s.storeFile(ctx, req.OwnerID, noteID, payload.File, patch.UpdatedAt)
		if err != nil {
			return nil, &NoteError{OwnerID: req.OwnerID, NoteID: noteID, Op: "update", Err: err}
		}
		patch.Attachment = written
	case payload.RemoveFile && existing.Attachment != nil:
		s.cleanupBlob(ctx, req.OwnerID, noteID, existing.Attachment.BlobKey)
		patch.Attachment = nil
	}

	if err := s.repository.Patch(ctx, req.OwnerID, noteID, patch); err != nil {
		if written != nil {
			s.cleanupBlob(ctx, req.OwnerID, noteID, written.BlobKey)
		}
		return nil, &NoteError{OwnerID: req.OwnerID, NoteID: noteID, Op: "update", Err: repositoryError(err)}
	}

	updated := existing.Apply(patch)
	if err := s.eventSink.NoteUpdated(ctx, updated); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "note_updated", "note_id", noteID, "error", err)
	}

	return updated, nil
}

func (s *service) DeleteNote(ctx context.Context, req DeleteNoteRequest) error {
	ctx = context.WithoutCancel(ctx)

	if req.NoteID == "" {
		return ErrMissingNoteID
	}

	existing, err := s.repository.Get(ctx, req.OwnerID, req.NoteID)
	if err != nil {
		return &NoteError{OwnerID: req.OwnerID, NoteID: req.NoteID, Op: "delete", Err: repositoryError(err)}
	}

	if existing.Attachment != nil {
		s.cleanupBlob(ctx, req.OwnerID, req.NoteID, existing.Attachment.BlobKey)
	}

	if err := s.repository.Delete(ctx, req.OwnerID, req.NoteID); err != nil {
		return &NoteError{OwnerID: req.OwnerID, NoteID: req.NoteID, Op: "delete", Err: repositoryError(err)}
	}

	if err := s.eventSink.NoteDeleted(ctx, req.OwnerID, req.NoteID); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "note_deleted", "note_id", req.NoteID, "error", err)
	}

	return nil
}

// storeFile writes the file under a fresh key and returns the attachment
// describing it. A URL signing failure leaves AccessURL empty.
func (s *service) storeFile(ctx context.Context, ownerID, noteID string, file *multipart.File, at time.Time) (*Attachment, error) {
	key := s.keyGenerator.GenerateKey(objectkey.KeyMetadata{
		OwnerID:    ownerID,
		NoteID:     noteID,
		FileName:   file.FileName,
		UploadedAt: at,
		UploadID:   uuid.New(),
	})

	if err := s.store.Put(ctx, key, file.Data, file.ContentType); err != nil {
		return nil, &StorageError{Key: key, Op: "put", Err: err}
	}

	return &Attachment{
		BlobKey:     key,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		AccessURL:   s.signURL(ctx, ownerID, noteID, key),
	}, nil
}

func (s *service) signURL(ctx context.Context, ownerID, noteID, key string) string {
	url, err := s.store.SignedURL(ctx, key, s.urlTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to sign attachment URL",
			"owner_id", ownerID, "note_id", noteID, "blob_key", key, "error", err)
		return ""
	}
	return url
}

func (s *service) refreshURL(ctx context.Context, note *Note) {
	if note.Attachment == nil {
		return
	}
	if url := s.signURL(ctx, note.OwnerID, note.NoteID, note.Attachment.BlobKey); url != "" {
		note.Attachment.AccessURL = url
	}
}

// cleanupBlob deletes a blob best-effort. Failure leaves an orphan that is
// logged and reported, never returned.
func (s *service) cleanupBlob(ctx context.Context, ownerID, noteID, key string) {
	err := s.store.Delete(ctx, key)
	if err == nil {
		return
	}
	err = &StorageError{Key: key, Op: "delete", Err: err}
	s.logger.WarnContext(ctx, "Failed to delete attachment blob",
		"owner_id", ownerID, "note_id", noteID, "blob_key", key, "error", err)
	if sinkErr := s.eventSink.BlobOrphaned(ctx, key, err); sinkErr != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "blob_orphaned", "blob_key", key, "error", sinkErr)
	}
}

// IsNotFound reports whether err means the note does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoteNotFound)
}
