// fakes.go - Fake remote collaborators for testing
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/slidewizard/backend/internal/models"
)

// FakeAnalyzer returns a canned analysis.
type FakeAnalyzer struct {
	mu       sync.Mutex
	Result   *models.Analysis
	Err      error
	Calls    int
	LastName string
	LastData []byte
}

func (f *FakeAnalyzer) Analyze(_ context.Context, name string, r io.Reader) (*models.Analysis, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastName = name
	f.LastData = data
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}

// FakeGenerator records generate and session calls. Block, when set, is
// waited on inside Generate so tests can hold a run in flight.
type FakeGenerator struct {
	mu          sync.Mutex
	Result      *models.GenerateResult
	Err         error
	SaveErr     error
	Block       chan struct{}
	Started     chan struct{}
	Requests    []models.GenerateRequest
	Saved       []*models.Configuration
	GenerateHit int
	// Outputs maps artifact ids to the bytes Download serves.
	Outputs     map[string][]byte
	DownloadErr error
}

func (f *FakeGenerator) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error) {
	if req.Batch != nil {
		if _, err := io.Copy(io.Discard, req.Batch); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.GenerateHit++
	f.Requests = append(f.Requests, req)
	block, started := f.Block, f.Started
	res, err := f.Result, f.Err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("no result configured")
	}
	return res, nil
}

func (f *FakeGenerator) Download(_ context.Context, artifactID string) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DownloadErr != nil {
		return nil, f.DownloadErr
	}
	data, ok := f.Outputs[artifactID]
	if !ok {
		return nil, fmt.Errorf("artifact %q not found", artifactID)
	}
	return &models.Artifact{
		Name:        artifactID,
		ContentType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		Size:        int64(len(data)),
		Body:        io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func (f *FakeGenerator) SaveSettings(_ context.Context, cfg *models.Configuration) (*models.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return nil, f.SaveErr
	}
	f.Saved = append(f.Saved, cfg.Clone())
	return &models.SubmitResult{RequestID: "req-test", Redirect: "/process?ready=true"}, nil
}

// SavedCount returns the number of successful session submissions.
func (f *FakeGenerator) SavedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Saved)
}

// DetailedError is a failure carrying generator diagnostics.
type DetailedError struct {
	Msg     string
	Details []models.Detail
}

func (e *DetailedError) Error() string                   { return e.Msg }
func (e *DetailedError) FailureDetails() []models.Detail { return e.Details }

// SampleAnalysis is two image placeholders (10, 11), one text (20) and one title (30).
func SampleAnalysis() *models.Analysis {
	return &models.Analysis{
		ImagePlaceholders: []models.Placeholder{
			{ID: 10, Top: 10, Left: 5, Width: 40, Height: 50},
			{ID: 11, Top: 10, Left: 55, Width: 40, Height: 50},
		},
		TextPlaceholders: []models.Placeholder{
			{ID: 20, Top: 70, Left: 5, Width: 90, Height: 10, CurrentContent: "Caption"},
		},
		TitlePlaceholders: []models.Placeholder{
			{ID: 30, Top: 2, Left: 5, Width: 90, Height: 6, CurrentContent: "Title"},
		},
		Statistics: map[string]int{"imagePlaceholders": 2, "textPlaceholders": 1, "titlePlaceholders": 1},
	}
}

// SampleResult is a successful generation with one warning.
func SampleResult() *models.GenerateResult {
	return &models.GenerateResult{
		OutputArtifactID: "out-1.pptx",
		Stats:            models.GenerateStats{CreatedSlides: 3, ProcessedFolders: 3, TotalImages: 6},
		Details: []models.Detail{
			{Type: models.DetailSuccess, Message: "folder A"},
			{Type: models.DetailWarning, Message: "folder B has one image"},
		},
	}
}
