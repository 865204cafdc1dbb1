package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// DefaultOwnerID is the single identity every request acts as unless an
// OwnerResolver says otherwise
const DefaultOwnerID = "demo-user"

// Request is a transport-neutral request envelope: everything the notes
// endpoint needs from an HTTP request or a gateway event
type Request struct {
	Method          string
	Headers         map[string]string
	Body            []byte
	IsBase64Encoded bool
	QueryParameters map[string]string
}

// Header returns the named header, matching names case-insensitively
func (r Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Response is a status code and a JSON-serializable body
type Response struct {
	StatusCode int
	Body       any
}

// OwnerResolver picks the owner identity a request acts as
type OwnerResolver func(ctx context.Context, req Request) string

// NoteResponse is the wire shape of a note
type NoteResponse struct {
	NoteID    string    `json:"noteId"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	FileKey   string    `json:"fileKey,omitempty"`
	FileType  string    `json:"fileType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageResponse confirms an update or delete
type MessageResponse struct {
	Message string        `json:"message"`
	Note    *NoteResponse `json:"note,omitempty"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewNoteResponse flattens a note and its attachment
func NewNoteResponse(note *simplenotes.Note) *NoteResponse {
	resp := &NoteResponse{
		NoteID:    note.NoteID,
		UserID:    note.OwnerID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
	if a := note.Attachment; a != nil {
		resp.FileURL = a.AccessURL
		resp.FileName = a.FileName
		resp.FileKey = a.BlobKey
		resp.FileType = a.ContentType
	}
	return resp
}

// Dispatcher routes a Request to the note service by HTTP method
type Dispatcher struct {
	service simplenotes.Service
	owner   OwnerResolver
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithOwnerID makes every request act as ownerID
func WithOwnerID(ownerID string) DispatcherOption {
	return func(d *Dispatcher) {
		d.owner = func(context.Context, Request) string { return ownerID }
	}
}

// WithOwnerResolver derives the owner from each request
func WithOwnerResolver(resolver OwnerResolver) DispatcherOption {
	return func(d *Dispatcher) {
		d.owner = resolver
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher over service
func NewDispatcher(service simplenotes.Service, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{service: service, logger: slog.Default()}
	WithOwnerID(DefaultOwnerID)(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle runs one request to completion
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	ownerID := d.owner(ctx, req)
	payload := simplenotes.Payload{
		ContentType:   req.Header("Content-Type"),
		Body:          req.Body,
		Base64Encoded: req.IsBase64Encoded,
	}
	noteID := req.QueryParameters["noteId"]

	switch strings.ToUpper(req.Method) {
	case http.MethodPost:
		note, err := d.service.CreateNote(ctx, simplenotes.CreateNoteRequest{OwnerID: ownerID, Payload: payload})
		if err != nil {
			return d.errorResponse(ctx, "create", err)
		}
		return Response{StatusCode: http.StatusCreated, Body: NewNoteResponse(note)}

	case http.MethodGet:
		if noteID != "" {
			note, err := d.service.GetNote(ctx, simplenotes.GetNoteRequest{OwnerID: ownerID, NoteID: noteID})
			if err != nil {
				return d.errorResponse(ctx, "get", err)
			}
			return Response{StatusCode: http.StatusOK, Body: NewNoteResponse(note)}
		}

		notes, err := d.service.ListNotes(ctx, simplenotes.ListNotesRequest{OwnerID: ownerID})
		if err != nil {
			return d.errorResponse(ctx, "list", err)
		}
		body := make([]*NoteResponse, 0, len(notes))
		for _, note := range notes {
			body = append(body, NewNoteResponse(note))
		}
		return Response{StatusCode: http.StatusOK, Body: body}

	case http.MethodPut:
		note, err := d.service.UpdateNote(ctx, simplenotes.UpdateNoteRequest{OwnerID: ownerID, NoteID: noteID, Payload: payload})
		if err != nil {
			return d.errorResponse(ctx, "update", err)
		}
		return Response{StatusCode: http.StatusOK, Body: MessageResponse{Message: "Note updated", Note: NewNoteResponse(note)}}

	case http.MethodDelete:
		if noteID == "" {
			return Response{StatusCode: http.StatusBadRequest, Body: ErrorResponse{Error: "noteId is required"}}
		}
		if err := d.service.DeleteNote(ctx, simplenotes.DeleteNoteRequest{OwnerID: ownerID, NoteID: noteID}); err != nil {
			return d.errorResponse(ctx, "delete", err)
		}
		return Response{StatusCode: http.StatusOK, Body: MessageResponse{Message: "Note deleted"}}

	default:
		return Response{StatusCode: http.StatusMethodNotAllowed, Body: ErrorResponse{Error: "Method not allowed"}}
	}
}

func (d *Dispatcher) errorResponse(ctx context.Context, op string, err error) Response {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		d.logger.ErrorContext(ctx, "Note request failed", "op", op, "status", status, "error", err)
		return Response{StatusCode: status, Body: ErrorResponse{Error: http.StatusText(status)}}
	}
	d.logger.InfoContext(ctx, "Note request rejected", "op", op, "status", status, "error", err)
	return Response{StatusCode: status, Body: ErrorResponse{Error: err.Error()}}
}

// StatusForError maps service errors to HTTP status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, simplenotes.ErrNoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, simplenotes.ErrDecode),
		errors.Is(err, simplenotes.ErrInvalidNote),
		errors.Is(err, simplenotes.ErrMissingNoteID):
		return http.StatusBadRequest
	case errors.Is(err, simplenotes.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, simplenotes.ErrStorageUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
