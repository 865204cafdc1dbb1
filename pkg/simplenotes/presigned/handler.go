package presigned

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// BlobOpener is implemented by attachment backends that can stream a blob
// back to the handler
type BlobOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Handler serves GET requests to signed attachment URLs
type Handler struct {
	opener BlobOpener
	signer *Signer
	logger *slog.Logger
}

// NewHandler creates a Handler reading blobs from opener and validating
// requests with signer
func NewHandler(opener BlobOpener, signer *Signer) *Handler {
	return &Handler{opener: opener, signer: signer, logger: slog.Default()}
}

// WithLogger returns the handler logging through logger
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}

	key, err := h.signer.ExtractObjectKey(r.URL.Path)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing_object_key", err.Error())
		return
	}

	// HEAD reuses the GET signature
	validate := r
	if r.Method == http.MethodHead {
		validate = r.Clone(r.Context())
		validate.Method = http.MethodGet
	}
	if err := h.signer.ValidateRequest(validate); err != nil {
		h.logger.WarnContext(r.Context(), "Signed URL validation failed", "blob_key", key, "error", err)
		status := http.StatusForbidden
		if errors.Is(err, ErrMissingSignature) || errors.Is(err, ErrMissingExpiration) {
			status = http.StatusUnauthorized
		}
		writeError(w, r, status, "invalid_signature", err.Error())
		return
	}

	rc, contentType, err := h.opener.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, simplenotes.ErrBlobNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "object not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to open blob", "blob_key", key, "error", err)
		writeError(w, r, http.StatusInternalServerError, "storage_error", "failed to read object")
		return
	}
	defer rc.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "Signed download copy error", "blob_key", key, "error", err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]errorBody{"error": {Code: code, Message: message}})
}
