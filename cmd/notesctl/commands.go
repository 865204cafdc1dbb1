package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	mimemultipart "mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-notes/pkg/simplenotes/api"
)

// NewListCommand creates the list command
func NewListCommand(factory DispatcherFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all notes of the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, factory, api.Request{Method: http.MethodGet})
		},
	}
}

// NewGetCommand creates the get command
func NewGetCommand(factory DispatcherFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "get <note-id>",
		Short: "Show a single note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, factory, api.Request{
				Method:          http.MethodGet,
				QueryParameters: map[string]string{"noteId": args[0]},
			})
		},
	}
}

// NewCreateCommand creates the create command
func NewCreateCommand(factory DispatcherFactory) *cobra.Command {
	var form noteForm

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note, optionally with a file attachment",
		Example: `  notesctl create --title "Groceries" --content "milk, eggs"
  notesctl create --title "Receipt" --content "" --file ./receipt.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			form.setFromFlags(cmd)
			req, err := form.request(http.MethodPost)
			if err != nil {
				return err
			}
			return dispatch(cmd, factory, req)
		},
	}

	form.bindFlags(cmd)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

// NewUpdateCommand creates the update command
func NewUpdateCommand(factory DispatcherFactory) *cobra.Command {
	var form noteForm

	cmd := &cobra.Command{
		Use:   "update <note-id>",
		Short: "Update a note; fields that are not given keep their value",
		Example: `  notesctl update 3f2a... --title "Renamed"
  notesctl update 3f2a... --file ./v2.pdf
  notesctl update 3f2a... --remove-file`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form.setFromFlags(cmd)
			if !form.hasTitle && !form.hasContent && form.filePath == "" && !form.removeFile {
				return fmt.Errorf("nothing to update: pass --title, --content, --file or --remove-file")
			}
			req, err := form.request(http.MethodPut)
			if err != nil {
				return err
			}
			req.QueryParameters = map[string]string{"noteId": args[0]}
			return dispatch(cmd, factory, req)
		},
	}

	form.bindFlags(cmd)
	cmd.Flags().BoolVar(&form.removeFile, "remove-file", false, "remove the current attachment")
	cmd.MarkFlagsMutuallyExclusive("file", "remove-file")
	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(factory DispatcherFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <note-id>",
		Short: "Delete a note and its attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, factory, api.Request{
				Method:          http.MethodDelete,
				QueryParameters: map[string]string{"noteId": args[0]},
			})
		},
	}
}

// noteForm collects the fields of a create or update
type noteForm struct {
	title       string
	content     string
	filePath    string
	contentType string
	removeFile  bool

	hasTitle   bool
	hasContent bool
}

func (f *noteForm) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "note title")
	cmd.Flags().StringVar(&f.content, "content", "", "note content")
	cmd.Flags().StringVar(&f.filePath, "file", "", "file to attach")
	cmd.Flags().StringVar(&f.contentType, "content-type", "", "attachment content type (default: from the file extension)")
}

// setFromFlags records which text fields were given, so an explicit empty
// string is sent while an omitted flag is not.
func (f *noteForm) setFromFlags(cmd *cobra.Command) {
	f.hasTitle = cmd.Flags().Changed("title")
	f.hasContent = cmd.Flags().Changed("content")
}

// request encodes the form as the multipart/form-data body a browser sends
func (f *noteForm) request(method string) (api.Request, error) {
	var body bytes.Buffer
	w := mimemultipart.NewWriter(&body)

	if f.hasTitle {
		if err := w.WriteField("title", f.title); err != nil {
			return api.Request{}, err
		}
	}
	if f.hasContent {
		if err := w.WriteField("content", f.content); err != nil {
			return api.Request{}, err
		}
	}
	if f.removeFile {
		if err := w.WriteField("removeFile", "true"); err != nil {
			return api.Request{}, err
		}
	}
	if f.filePath != "" {
		if err := f.writeFile(w); err != nil {
			return api.Request{}, err
		}
	}
	if err := w.Close(); err != nil {
		return api.Request{}, err
	}

	return api.Request{
		Method:  method,
		Headers: map[string]string{"Content-Type": w.FormDataContentType()},
		Body:    body.Bytes(),
	}, nil
}

func (f *noteForm) writeFile(w *mimemultipart.Writer) error {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	contentType := f.contentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(f.filePath))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filepath.Base(f.filePath))))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// dispatch runs req and prints the JSON body. Non-2xx responses become errors.
func dispatch(cmd *cobra.Command, factory DispatcherFactory, req api.Request) error {
	dispatcher, release, err := factory(cmd)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	if release != nil {
		defer release()
	}

	resp := dispatcher.Handle(cmd.Context(), req)
	if resp.StatusCode >= http.StatusBadRequest {
		if errBody, ok := resp.Body.(api.ErrorResponse); ok {
			return fmt.Errorf("%s (status %d)", errBody.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Body)
}
