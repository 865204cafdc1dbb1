package multipart_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes/multipart"
)

const boundary = "----WebKitFormBoundary7MA4YWxkTrZu0gW"

type part struct {
	name        string
	fileName    string
	contentType string
	data        []byte
	rawHeaders  string
}

// buildBody lays parts out exactly the way a browser FormData upload does.
func buildBody(parts ...part) []byte {
	var b bytes.Buffer
	for _, p := range parts {
		b.WriteString("--" + boundary + "\r\n")
		switch {
		case p.rawHeaders != "":
			b.WriteString(p.rawHeaders)
		case p.fileName != "":
			b.WriteString(`Content-Disposition: form-data; name="` + p.name + `"; filename="` + p.fileName + `"` + "\r\n")
			if p.contentType != "" {
				b.WriteString("Content-Type: " + p.contentType + "\r\n")
			}
		default:
			b.WriteString(`Content-Disposition: form-data; name="` + p.name + `"` + "\r\n")
		}
		b.WriteString("\r\n")
		b.Write(p.data)
		b.WriteString("\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")
	return b.Bytes()
}

func TestDecode_RoundTripWithBinaryFile(t *testing.T) {
	payload := []byte{0x00, 0xFF, 0x0D, 0x0A, 0x2D, 0x2D, 0xFE, 0x00, 0x80}
	body := buildBody(
		part{name: "title", data: []byte("Groceries")},
		part{name: "content", data: []byte("milk\r\neggs")},
		part{name: "file", fileName: "blob.bin", contentType: "application/x-custom", data: payload},
	)

	form, err := multipart.Decode(body, boundary, false)
	require.NoError(t, err)

	title, ok := form.Value("title")
	assert.True(t, ok)
	assert.Equal(t, "Groceries", title)
	content, ok := form.Value("content")
	assert.True(t, ok)
	assert.Equal(t, "milk\r\neggs", content)

	require.NotNil(t, form.File)
	assert.Equal(t, "file", form.File.FieldName)
	assert.Equal(t, "blob.bin", form.File.FileName)
	assert.Equal(t, "application/x-custom", form.File.ContentType)
	assert.Equal(t, payload, form.File.Data)
	_, isField := form.Value("file")
	assert.False(t, isField)
}

func TestDecode_Base64Transport(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}
	body := buildBody(
		part{name: "title", data: []byte("A")},
		part{name: "file", fileName: "photo.jpg", contentType: "image/jpeg", data: payload},
	)
	encoded := []byte(base64.StdEncoding.EncodeToString(body))

	form, err := multipart.Decode(encoded, boundary, true)
	require.NoError(t, err)
	require.NotNil(t, form.File)
	assert.Equal(t, payload, form.File.Data)
	assert.Equal(t, "A", form.Fields["title"])
}

func TestDecode_InvalidBase64(t *testing.T) {
	_, err := multipart.Decode([]byte("not base64!!"), boundary, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, multipart.ErrMalformed))
}

func TestDecode_TrailingCRLFTrim(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "no trailing newline", data: []byte("abc")},
		{name: "one genuine CRLF", data: []byte("abc\r\n")},
		{name: "content ending in blank line", data: []byte("abc\r\n\r\n")},
		{name: "only CRLFs", data: []byte("\r\n\r\n")},
		{name: "lone CR", data: []byte("abc\r")},
		{name: "empty file", data: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := buildBody(part{name: "file", fileName: "f.txt", contentType: "text/plain", data: tt.data})
			form, err := multipart.Decode(body, boundary, false)
			require.NoError(t, err)
			require.NotNil(t, form.File)
			assert.Equal(t, tt.data, form.File.Data)
		})
	}
}

func TestDecode_ExactByteBoundaries(t *testing.T) {
	body := []byte("--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"x\"\r\n" +
		"\r\n" +
		"\r\nX\r\n\r\n" +
		"\r\n--" + boundary + "--")

	form, err := multipart.Decode(body, boundary, false)
	require.NoError(t, err)
	require.NotNil(t, form.File)
	assert.Equal(t, []byte("\r\nX\r\n\r\n"), form.File.Data)
}

func TestDecode_LastFileWins(t *testing.T) {
	body := buildBody(
		part{name: "file", fileName: "first.txt", contentType: "text/plain", data: []byte("first")},
		part{name: "title", data: []byte("T")},
		part{name: "attachment", fileName: "second.txt", contentType: "text/csv", data: []byte("second")},
	)

	form, err := multipart.Decode(body, boundary, false)
	require.NoError(t, err)
	require.NotNil(t, form.File)
	assert.Equal(t, "second.txt", form.File.FileName)
	assert.Equal(t, "attachment", form.File.FieldName)
	assert.Equal(t, "text/csv", form.File.ContentType)
	assert.Equal(t, []byte("second"), form.File.Data)
}

func TestDecode_DefaultContentType(t *testing.T) {
	body := buildBody(part{name: "file", fileName: "raw", data: []byte{0x01}})
	form, err := multipart.Decode(body, boundary, false)
	require.NoError(t, err)
	require.NotNil(t, form.File)
	assert.Equal(t, multipart.DefaultContentType, form.File.ContentType)
}

func TestDecode_EmptyFileInputIsIgnored(t *testing.T) {
	body := buildBody(
		part{name: "title", data: []byte("T")},
		part{rawHeaders: "Content-Disposition: form-data; name=\"file\"; filename=\"\"\r\nContent-Type: application/octet-stream\r\n"},
	)
	form, err := multipart.Decode(body, boundary, false)
	require.NoError(t, err)
	assert.Nil(t, form.File)
	_, isField := form.Value("file")
	assert.False(t, isField)
}

func TestDecode_SkipsMalformedParts(t *testing.T) {
	body := []byte("preamble is discarded\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"broken\"\r\n" +
		"no separator here\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain\r\n\r\nno disposition\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; filename=\"nameless.txt\"\r\n\r\nx\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"title\"\r\n\r\nkept\r\n" +
		"--" + boundary + "--\r\n")

	form, err := multipart.Decode(body, boundary, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "kept"}, form.Fields)
	assert.Nil(t, form.File)
}

func TestDecode_HeaderParsing(t *testing.T) {
	body := buildBody(
		part{rawHeaders: "content-disposition: form-data; NAME=\"file\"; FileName=\"report; final \\\"v2\\\".pdf\"\r\nCONTENT-TYPE:application/pdf\r\n", data: []byte("%PDF")},
		part{rawHeaders: "Content-Disposition: form-data; name=title\r\n", data: []byte("unquoted")},
	)

	form, err := multipart.Decode(body, boundary, false)
	require.NoError(t, err)
	require.NotNil(t, form.File)
	assert.Equal(t, `report; final "v2".pdf`, form.File.FileName)
	assert.Equal(t, "application/pdf", form.File.ContentType)
	assert.Equal(t, "unquoted", form.Fields["title"])
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		boundary string
	}{
		{name: "empty boundary", body: buildBody(part{name: "a", data: []byte("b")}), boundary: ""},
		{name: "delimiter absent", body: []byte("title=A&content=B"), boundary: boundary},
		{name: "only closing delimiter", body: []byte("--" + boundary + "--\r\n"), boundary: boundary},
		{name: "no well-formed part", body: []byte("--" + boundary + "\r\ngarbage\r\n--" + boundary + "--"), boundary: boundary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, err := multipart.Decode(tt.body, tt.boundary, false)
			require.Error(t, err)
			assert.Nil(t, form)
			assert.True(t, errors.Is(err, multipart.ErrMalformed))
			var decodeErr *multipart.DecodeError
			assert.True(t, errors.As(err, &decodeErr))
		})
	}
}

func TestDecode_DoesNotAliasInput(t *testing.T) {
	body := buildBody(part{name: "file", fileName: "f", data: []byte("original")})
	form, err := multipart.Decode(body, boundary, false)
	require.NoError(t, err)

	for i := range body {
		body[i] = 'z'
	}
	assert.Equal(t, []byte("original"), form.File.Data)
}

func TestBoundary(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
		wantErr     bool
	}{
		{name: "browser header", contentType: "multipart/form-data; boundary=" + boundary, want: boundary},
		{name: "quoted boundary", contentType: `multipart/form-data; boundary="a b"`, want: "a b"},
		{name: "missing boundary", contentType: "multipart/form-data", wantErr: true},
		{name: "wrong media type", contentType: "application/json", wantErr: true},
		{name: "unparseable", contentType: ";;", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := multipart.Boundary(tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, multipart.ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsFormData(t *testing.T) {
	assert.True(t, multipart.IsFormData("multipart/form-data; boundary=x"))
	assert.True(t, multipart.IsFormData("Multipart/Form-Data; boundary=x"))
	assert.False(t, multipart.IsFormData("application/json"))
	assert.False(t, multipart.IsFormData(""))
}
