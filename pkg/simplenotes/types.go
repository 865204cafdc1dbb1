package simplenotes

import "time"

// DefaultURLTTL is how long issued attachment URLs stay valid.
const DefaultURLTTL = 3600 * time.Second

// Note is one user-visible note, keyed by (OwnerID, NoteID).
type Note struct {
	OwnerID    string      `json:"ownerId"`
	NoteID     string      `json:"noteId"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Attachment describes the single file attached to a note.
//
// BlobKey is the durable locator. AccessURL is a time-limited URL derived from
// BlobKey when the attachment was written; it may be stale and can always be
// re-derived.
type Attachment struct {
	BlobKey     string `json:"blobKey"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	AccessURL   string `json:"accessUrl,omitempty"`
}

// NotePatch names the attributes a partial update replaces. A nil
// Attachment removes the attachment attributes from the record.
type NotePatch struct {
	Title      string
	Content    string
	Attachment *Attachment
	UpdatedAt  time.Time
}

// Clone returns a deep copy of the note.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	if n.Attachment != nil {
		a := *n.Attachment
		c.Attachment = &a
	}
	return &c
}

// Apply returns a copy of the note with the patch applied.
func (n *Note) Apply(patch NotePatch) *Note {
	c := n.Clone()
	c.Title = patch.Title
	c.Content = patch.Content
	c.UpdatedAt = patch.UpdatedAt
	c.Attachment = nil
	if patch.Attachment != nil {
		a := *patch.Attachment
		c.Attachment = &a
	}
	return c
}
