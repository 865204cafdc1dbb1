// Package multipart decodes multipart/form-data request bodies produced by
// browser form uploads.
//
// The decoder works on a fully buffered body. It understands exactly what a
// browser FormData upload produces: a flat list of parts, each with a
// Content-Disposition header naming the field and, for file inputs, the
// original filename. Nested multipart bodies and folded header lines are not
// supported.
package multipart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// DefaultContentType is recorded for file parts that declare no Content-Type.
const DefaultContentType = "application/octet-stream"

var (
	crlf          = []byte("\r\n")
	headerSep     = []byte("\r\n\r\n")
	dashBoundary  = "--"
	formDataMedia = "multipart/form-data"
)

// ErrMalformed indicates a body that could not be decoded as multipart/form-data
var ErrMalformed = errors.New("malformed multipart body")

// DecodeError describes why a body was rejected
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformed, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// File is the single file payload carried by a form
type File struct {
	FieldName   string
	FileName    string
	ContentType string
	Data        []byte
}

// Form is the decoded result: text fields by name plus at most one file.
type Form struct {
	Fields map[string]string
	File   *File
}

// Value returns the named text field and whether it was present.
func (f *Form) Value(name string) (string, bool) {
	v, ok := f.Fields[name]
	return v, ok
}

// Boundary extracts the boundary parameter from a multipart/form-data
// Content-Type header value.
func Boundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", &DecodeError{Reason: fmt.Sprintf("invalid content type %q", contentType)}
	}
	if mediaType != formDataMedia {
		return "", &DecodeError{Reason: fmt.Sprintf("content type %q is not %s", mediaType, formDataMedia)}
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", &DecodeError{Reason: "missing boundary parameter"}
	}
	return boundary, nil
}

// IsFormData reports whether contentType declares multipart/form-data.
func IsFormData(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == formDataMedia
}

// Decode splits body on the given boundary and returns its fields and file.
// When base64Encoded is set the body is base64-decoded first.
//
// Parts without a header/content separator or without a field name are
// skipped. If several parts carry a filename, the last one wins. Decode
// fails only when the boundary is empty, the body never contains the
// delimiter, or no part at all is well formed.
func Decode(body []byte, boundary string, base64Encoded bool) (*Form, error) {
	if boundary == "" {
		return nil, &DecodeError{Reason: "missing boundary"}
	}

	raw := body
	if base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("invalid base64 body: %v", err)}
		}
		raw = decoded
	}

	candidates := split(raw, []byte(dashBoundary+boundary))
	if candidates == nil {
		return nil, &DecodeError{Reason: "boundary delimiter not found"}
	}

	form := &Form{Fields: make(map[string]string)}
	wellFormed := 0
	for _, part := range candidates {
		if len(part) == 0 {
			continue
		}
		if decodePart(part, form) {
			wellFormed++
		}
	}

	if wellFormed == 0 {
		return nil, &DecodeError{Reason: "no well-formed parts"}
	}
	return form, nil
}

// split returns the byte ranges strictly between consecutive occurrences of
// delim. The range before the first occurrence is discarded, as is anything
// after the last one. It returns nil when delim never occurs.
func split(body, delim []byte) [][]byte {
	first := bytes.Index(body, delim)
	if first < 0 {
		return nil
	}

	parts := [][]byte{}
	start := first + len(delim)
	for {
		next := bytes.Index(body[start:], delim)
		if next < 0 {
			return parts
		}
		parts = append(parts, body[start:start+next])
		start += next + len(delim)
	}
}

// decodePart records one part into form and reports whether it was well formed.
func decodePart(part []byte, form *Form) bool {
	sep := bytes.Index(part, headerSep)
	if sep < 0 {
		return false
	}

	headers := parseHeaders(part[:sep])
	content := part[sep+len(headerSep):]
	// Only the CRLF that precedes the next delimiter belongs to the format.
	content = bytes.TrimSuffix(content, crlf)

	disposition, ok := headers["content-disposition"]
	if !ok {
		return false
	}
	params := dispositionParams(disposition)
	name, hasName := params["name"]
	if !hasName || name == "" {
		return false
	}

	fileName, hasFile := params["filename"]
	if !hasFile {
		form.Fields[name] = string(content)
		return true
	}

	// A file input left empty is sent with filename="" and no content.
	if fileName == "" {
		return true
	}

	contentType := headers["content-type"]
	if contentType == "" {
		contentType = DefaultContentType
	}
	form.File = &File{
		FieldName:   name,
		FileName:    fileName,
		ContentType: contentType,
		Data:        bytes.Clone(content),
	}
	return true
}

// parseHeaders reads "Name: value" lines into a map keyed by lower-cased name.
func parseHeaders(block []byte) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.Split(string(block), "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return headers
}

// dispositionParams parses the parameters of a Content-Disposition value such
// as `form-data; name="file"; filename="a;b.txt"`. Semicolons inside quoted
// values do not split parameters.
func dispositionParams(value string) map[string]string {
	params := make(map[string]string)
	for _, segment := range splitUnquoted(value, ';')[1:] {
		key, val, found := strings.Cut(segment, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		params[key] = unquote(strings.TrimSpace(val))
	}
	return params
}

func splitUnquoted(s string, sep byte) []string {
	var out []string
	inQuotes := false
	escaped := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inQuotes:
			escaped = true
		case c == '"':
			inQuotes = !inQuotes
		case c == sep && !inQuotes:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	inner := s[1 : len(s)-1]
	if !strings.Contains(inner, `\`) {
		return inner
	}
	var b strings.Builder
	escaped := false
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if !escaped && c == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteByte(c)
	}
	return b.String()
}
