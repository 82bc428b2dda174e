// Package remote holds the HTTP clients of the analyzer and generator services.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/slidewizard/backend/internal/models"
)

// ErrUnreachable wraps transport failures.
var ErrUnreachable = errors.New("service unreachable")

// ServiceError is a failure reported by a remote service.
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
	Details    []models.Detail
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request failed with status %d", e.Service, e.StatusCode)
	}
	return e.Message
}

// FailureDetails returns the partial diagnostics sent with the failure.
func (e *ServiceError) FailureDetails() []models.Detail {
	return e.Details
}

// failureBody is the shape of an error answer from either service.
type failureBody struct {
	Error   string          `json:"error"`
	Details []models.Detail `json:"details,omitempty"`
}

// client is the transport shared by both service clients.
type client struct {
	service string
	baseURL string
	http    *http.Client
}

func newClient(service, baseURL string, timeout time.Duration) client {
	return client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c client) post(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, c.service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.service, err)
	}

	var fail failureBody
	if resp.StatusCode >= http.StatusBadRequest {
		_ = json.Unmarshal(data, &fail)
		return &ServiceError{Service: c.service, StatusCode: resp.StatusCode, Message: fail.Error, Details: fail.Details}
	}
	// Some endpoints answer 200 with an error body.
	if json.Unmarshal(data, &fail) == nil && fail.Error != "" {
		return &ServiceError{Service: c.service, StatusCode: resp.StatusCode, Message: fail.Error, Details: fail.Details}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	return nil
}

// AnalyzerClient calls the template analysis service.
type AnalyzerClient struct {
	client
}

// NewAnalyzerClient creates a client for baseURL. A zero timeout means none.
func NewAnalyzerClient(baseURL string, timeout time.Duration) *AnalyzerClient {
	return &AnalyzerClient{client: newClient("analyzer", baseURL, timeout)}
}

// Analyze uploads a template and returns its detected placeholders.
func (c *AnalyzerClient) Analyze(ctx context.Context, name string, r io.Reader) (*models.Analysis, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("template", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var analysis models.Analysis
	if err := c.post(ctx, "/analyze", mw.FormDataContentType(), &buf, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GeneratorClient calls the batch generation service.
type GeneratorClient struct {
	client
}

// NewGeneratorClient creates a client for baseURL. A zero timeout means none.
func NewGeneratorClient(baseURL string, timeout time.Duration) *GeneratorClient {
	return &GeneratorClient{client: newClient("generator", baseURL, timeout)}
}

// SaveSettings stores cfg in the generator's session for reuse.
func (c *GeneratorClient) SaveSettings(ctx context.Context, cfg *models.Configuration) (*models.SubmitResult, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	var res models.SubmitResult
	if err := c.post(ctx, "/settings", "application/json", bytes.NewReader(data), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Generate streams the batch bundle with its configuration and options.
func (c *GeneratorClient) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error) {
	cfgJSON, err := json.Marshal(req.Config)
	if err != nil {
		return nil, fmt.Errorf("encode configuration: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeGenerateForm(mw, cfgJSON, req))
	}()

	// Unblocks the writer if the service answers before reading the whole form.
	defer pr.Close()

	var res models.GenerateResult
	if err := c.post(ctx, "/generate", mw.FormDataContentType(), pr, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Download opens the generated file artifactID. The caller closes the
// returned Body.
func (c *GeneratorClient) Download(ctx context.Context, artifactID string) (*models.Artifact, error) {
	if artifactID == "" {
		return nil, fmt.Errorf("%s: empty artifact id", c.service)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(artifactID), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.service, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, c.service, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		var fail failureBody
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(data, &fail)
		return nil, &ServiceError{Service: c.service, StatusCode: resp.StatusCode, Message: fail.Error, Details: fail.Details}
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &models.Artifact{
		Name:        artifactName(resp.Header.Get("Content-Disposition"), artifactID),
		ContentType: ct,
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

// artifactName prefers the filename the generator sent.
func artifactName(disposition, artifactID string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := path.Base(params["filename"]); name != "." && name != "/" {
			return name
		}
	}
	return path.Base(artifactID)
}

func writeGenerateForm(mw *multipart.Writer, cfgJSON []byte, req models.GenerateRequest) error {
	if err := mw.WriteField("config", string(cfgJSON)); err != nil {
		return err
	}
	if err := mw.WriteField("imageOrder", req.Options.ImageOrder); err != nil {
		return err
	}
	skip := "false"
	if req.Options.SkipEmptyFolders {
		skip = "true"
	}
	if err := mw.WriteField("skipEmptyFolders", skip); err != nil {
		return err
	}
	if req.Batch != nil {
		part, err := mw.CreateFormFile("batch", req.BatchName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, req.Batch); err != nil {
			return fmt.Errorf("stream batch: %w", err)
		}
	}
	return mw.Close()
}
