package simplenotes

// Payload is a raw request body together with how it was transported.
type Payload struct {
	// ContentType is the request Content-Type header, including parameters
	ContentType string
	Body        []byte
	// Base64Encoded is set when the transport base64-encoded Body
	Base64Encoded bool
}

// CreateNoteRequest contains parameters for creating a note
type CreateNoteRequest struct {
	OwnerID string
	Payload Payload
}

// GetNoteRequest identifies a single note
type GetNoteRequest struct {
	OwnerID string
	NoteID  string
}

// ListNotesRequest contains parameters for listing notes
type ListNotesRequest struct {
	OwnerID string
}

// UpdateNoteRequest contains parameters for updating a note.
// NoteID may be empty when the payload carries it.
type UpdateNoteRequest struct {
	OwnerID string
	NoteID  string
	Payload Payload
}

// DeleteNoteRequest identifies the note to delete
type DeleteNoteRequest struct {
	OwnerID string
	NoteID  string
}
