// Package analyzer talks to the external service that turns a HAR archive into an
// AnalysisResult.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/models"
)

// DefaultEndpoint is where the analyzer listens when nothing else is configured.
const DefaultEndpoint = "http://localhost:8080/api/har/upload"

var (
	// ErrWrongFileType is returned for files without a .har suffix. No request is sent.
	ErrWrongFileType = errors.New("please upload a valid .har file")
	// ErrUploadFailed covers network errors, non-success responses and bodies that
	// are not an analysis result.
	ErrUploadFailed = errors.New("failed to upload file")
)

// Analyzer turns an archive into an analysis result.
type Analyzer interface {
	Analyze(ctx context.Context, fileName string, r io.Reader) (*models.AnalysisResult, error)
}

// Client posts archives to the analyzer endpoint as multipart form data.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for endpoint. A zero timeout leaves requests bounded
// only by their context.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the configured analyzer URL.
func (c *Client) Endpoint() string { return c.endpoint }

// ValidateFileName rejects names that do not end in ".har".
func ValidateFileName(name string) error {
	if !strings.HasSuffix(name, ".har") {
		return fmt.Errorf("%w: %q", ErrWrongFileType, name)
	}
	return nil
}

// Analyze uploads the archive in field "file" and decodes the result.
func (c *Client) Analyze(ctx context.Context, fileName string, r io.Reader) (*models.AnalysisResult, error) {
	if err := ValidateFileName(fileName); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", fileName)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: analyzer returned %d: %s", ErrUploadFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUploadFailed, err)
	}

	logging.L.Info("analyzer finished",
		zap.String("file", fileName),
		zap.Int("requests", result.TotalRequests),
		zap.Duration("elapsed", time.Since(start)))
	return &result, nil
}

// Failure kinds reported to clients.
const (
	KindWrongFileType = "wrong-file-type"
	KindUploadFailed  = "upload-failed"
)

// ErrorKind maps an analysis error onto the two user-facing failure states.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWrongFileType):
		return KindWrongFileType
	}
	return KindUploadFailed
}
