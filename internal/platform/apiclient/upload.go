package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
)

// StoredFile describes a file the platform stored for an upload.
type StoredFile struct {
	URL      string `json:"url"`
	FileType string `json:"fileType"`
	Title    string `json:"title"`
}

// FormFile is one file part of a multipart upload.
type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Form is a multipart form submission.
type Form struct {
	Fields map[string]string
	Files  []FormFile
}

// Upload submits form as multipart/form-data. The body is buffered so that
// it can be replayed after a token refresh.
func (c *Client) Upload(ctx context.Context, path string, form Form, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(form.Fields))
	for k := range form.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, form.Fields[k]); err != nil {
			return fmt.Errorf("write form field %s: %w", k, err)
		}
	}

	for _, f := range form.Files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return fmt.Errorf("create form file %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("copy form file %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, w.FormDataContentType(), buf.Bytes(), out)
}
