package simplenotes

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/tendant/simple-notes/pkg/simplenotes/multipart"
)

// Field names shared by the JSON and multipart encodings.
const (
	FieldTitle      = "title"
	FieldContent    = "content"
	FieldNoteID     = "noteId"
	FieldRemoveFile = "removeFile"
)

// notePayload is the decoded form of a create or update body. Nil Title or
// Content means the field was not sent.
type notePayload struct {
	Title      *string
	Content    *string
	NoteID     string
	RemoveFile bool
	File       *multipart.File
}

type jsonNoteBody struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	NoteID     string  `json:"noteId"`
	RemoveFile bool    `json:"removeFile"`
}

// decodePayload picks the multipart or JSON decoder from the declared
// content type. An empty content type is treated as JSON.
func decodePayload(p Payload) (*notePayload, error) {
	contentType := strings.TrimSpace(p.ContentType)
	if multipart.IsFormData(contentType) {
		return decodeFormPayload(p, contentType)
	}

	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid content type %q", ErrDecode, contentType)
		}
		if mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
		}
	}
	return decodeJSONPayload(p)
}

func decodeFormPayload(p Payload, contentType string) (*notePayload, error) {
	boundary, err := multipart.Boundary(contentType)
	if err != nil {
		return nil, err
	}
	form, err := multipart.Decode(p.Body, boundary, p.Base64Encoded)
	if err != nil {
		return nil, err
	}

	payload := &notePayload{File: form.File}
	if v, ok := form.Value(FieldTitle); ok {
		payload.Title = &v
	}
	if v, ok := form.Value(FieldContent); ok {
		payload.Content = &v
	}
	payload.NoteID, _ = form.Value(FieldNoteID)
	if v, ok := form.Value(FieldRemoveFile); ok && v != "" {
		remove, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s value %q", ErrDecode, FieldRemoveFile, v)
		}
		payload.RemoveFile = remove
	}
	return payload, nil
}

func decodeJSONPayload(p Payload) (*notePayload, error) {
	body := p.Body
	if p.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 body: %v", ErrDecode, err)
		}
		body = decoded
	}

	var parsed jsonNoteBody
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON body: %v", ErrDecode, err)
		}
	}

	return &notePayload{
		Title:      parsed.Title,
		Content:    parsed.Content,
		NoteID:     parsed.NoteID,
		RemoveFile: parsed.RemoveFile,
	}, nil
}
