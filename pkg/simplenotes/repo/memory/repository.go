package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tendant/simple-notes/pkg/simplenotes"
)

type noteKey struct {
	ownerID string
	noteID  string
}

// Repository implements simplenotes.NoteRepository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	notes map[noteKey]*simplenotes.Note
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		notes: make(map[noteKey]*simplenotes.Note),
	}
}

var _ simplenotes.NoteRepository = (*Repository)(nil)

func (r *Repository) Put(ctx context.Context, note *simplenotes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	r.notes[noteKey{note.OwnerID, note.NoteID}] = note.Clone()
	return nil
}

func (r *Repository) Get(ctx context.Context, ownerID, noteID string) (*simplenotes.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, exists := r.notes[noteKey{ownerID, noteID}]
	if !exists {
		return nil, simplenotes.ErrNoteNotFound
	}
	return note.Clone(), nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*simplenotes.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*simplenotes.Note{}
	for key, note := range r.notes {
		if key.ownerID == ownerID {
			result = append(result, note.Clone())
		}
	}

	// Newest first, for stable output in tools and tests
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) Patch(ctx context.Context, ownerID, noteID string, patch simplenotes.NotePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := noteKey{ownerID, noteID}
	note, exists := r.notes[key]
	if !exists {
		return simplenotes.ErrNoteNotFound
	}
	r.notes[key] = note.Apply(patch)
	return nil
}

func (r *Repository) Delete(ctx context.Context, ownerID, noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.notes, noteKey{ownerID, noteID})
	return nil
}
