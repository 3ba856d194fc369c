// Package docmgmt pushes processed receipt files into a
// paperless-ngx-compatible document archive.
package docmgmt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"fhartmann/bonscan/internal/reconerror"
)

var log = logrus.New()

// SetLogger allows setting a configured logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Client uploads documents to a paperless-ngx instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an upload client for the given instance. The token
// is sent as an Authorization header on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadOptions carries the metadata attached to an uploaded document.
type UploadOptions struct {
	Title   string
	Created *time.Time
	Tags    []string
}

// Upload posts the file at path to the archive's consumption endpoint
// and returns the task identifier the server assigned.
func (c *Client) Upload(ctx context.Context, path string, opts UploadOptions) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening document: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("error building upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("error reading document: %w", err)
	}

	if opts.Title != "" {
		if err := writer.WriteField("title", opts.Title); err != nil {
			return "", fmt.Errorf("error building upload form: %w", err)
		}
	}
	if opts.Created != nil {
		if err := writer.WriteField("created", opts.Created.Format("2006-01-02")); err != nil {
			return "", fmt.Errorf("error building upload form: %w", err)
		}
	}
	for _, tag := range opts.Tags {
		if err := writer.WriteField("tags", tag); err != nil {
			return "", fmt.Errorf("error building upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("error building upload form: %w", err)
	}

	url := c.baseURL + "/api/documents/post_document/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("error creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Token "+c.token)

	log.WithFields(logrus.Fields{
		"file":  filepath.Base(path),
		"title": opts.Title,
	}).Info("Uploading document")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &reconerror.UploadError{Document: path, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", &reconerror.UploadError{Document: path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &reconerror.UploadError{Document: path, Status: resp.StatusCode}
	}

	// The consumption endpoint answers with a quoted task UUID.
	taskID := string(bytes.Trim(bytes.TrimSpace(payload), `"`))
	log.WithField("task_id", taskID).Debug("Document accepted")
	return taskID, nil
}
