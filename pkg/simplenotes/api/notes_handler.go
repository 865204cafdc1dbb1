package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// DefaultMaxBodySize caps request bodies when no limit is configured
const DefaultMaxBodySize int64 = 10 << 20

// NotesHandler adapts net/http requests to the Dispatcher
type NotesHandler struct {
	dispatcher  *Dispatcher
	maxBodySize int64
}

func NewNotesHandler(dispatcher *Dispatcher, maxBodySize int64) *NotesHandler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &NotesHandler{
		dispatcher:  dispatcher,
		maxBodySize: maxBodySize,
	}
}

// Routes returns the router for notes endpoints. /{noteId} is an alias for
// the noteId query parameter.
func (h *NotesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.HandleFunc("/", h.ServeNotes)
	r.HandleFunc("/{noteId}", h.ServeNotes)
	return r
}

// ServeNotes handles every method on the notes collection
func (h *NotesHandler) ServeNotes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("Request body too large", "limit", h.maxBodySize)
			writeJSON(w, r, Response{StatusCode: http.StatusRequestEntityTooLarge, Body: ErrorResponse{Error: "request body too large"}})
			return
		}
		slog.Error("Failed to read request body", "error", err)
		writeJSON(w, r, Response{StatusCode: http.StatusBadRequest, Body: ErrorResponse{Error: "failed to read request body"}})
		return
	}

	req := Request{
		Method:          r.Method,
		Headers:         make(map[string]string, len(r.Header)),
		Body:            body,
		QueryParameters: make(map[string]string),
	}
	for name := range r.Header {
		req.Headers[name] = r.Header.Get(name)
	}
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			req.QueryParameters[name] = values[0]
		}
	}
	if noteID := chi.URLParam(r, "noteId"); noteID != "" {
		req.QueryParameters["noteId"] = noteID
	}

	writeJSON(w, r, h.dispatcher.Handle(r.Context(), req))
}

func writeJSON(w http.ResponseWriter, r *http.Request, resp Response) {
	render.Status(r, resp.StatusCode)
	render.JSON(w, r, resp.Body)
}
