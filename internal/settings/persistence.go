// Package settings persists the placeholder configuration: the local cache,
// the export/import file and submission to the generator session.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/models"
)

var (
	ErrNothingToExport  = errors.New("no configuration to export")
	ErrInvalidExtension = errors.New("settings file must be a .json file")
)

// SubmissionError carries the message of a failed session submission.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string { return e.Message }
func (e *SubmissionError) Unwrap() error { return e.Err }

// SessionSubmitter is the generator's session settings endpoint.
type SessionSubmitter interface {
	SaveSettings(ctx context.Context, cfg *models.Configuration) (*models.SubmitResult, error)
}

// ExportFile is a downloadable settings artifact.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Persistence ties the cache and the submitter together.
type Persistence struct {
	cache     LocalCache
	submitter SessionSubmitter
	log       *slog.Logger
}

// New creates a Persistence. cache may be nil, in which case caching is a no-op.
func New(cache LocalCache, submitter SessionSubmitter) *Persistence {
	return &Persistence{
		cache:     cache,
		submitter: submitter,
		log:       logging.WithComponent("settings"),
	}
}

// CacheLocally overwrites the cache slot. Failures are logged and dropped;
// the in-memory store stays authoritative.
func (p *Persistence) CacheLocally(cfg *models.Configuration) {
	if p.cache == nil || cfg == nil {
		return
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		p.log.Warn("encode settings for cache", "error", err)
		return
	}
	if err := p.cache.Write(data); err != nil {
		p.log.Warn("cache settings", "error", err)
	}
}

// ReadLocalCache returns the cached configuration, or nil when the cache is
// empty or unreadable.
func (p *Persistence) ReadLocalCache() *models.Configuration {
	if p.cache == nil {
		return nil
	}
	data, err := p.cache.Read()
	if err != nil {
		if !errors.Is(err, ErrCacheEmpty) {
			p.log.Warn("read settings cache", "error", err)
		}
		return nil
	}
	cfg, err := Decode(data)
	if err != nil {
		p.log.Warn("cached settings are corrupt", "error", err)
		return nil
	}
	return cfg
}

// HasCached reports whether a usable cached configuration exists.
func (p *Persistence) HasCached() bool {
	return p.ReadLocalCache() != nil
}

// Export serializes the full configuration to a dated, indented JSON file.
func (p *Persistence) Export(cfg *models.Configuration, now time.Time) (*ExportFile, error) {
	if cfg == nil {
		return nil, ErrNothingToExport
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return &ExportFile{
		Name:        ExportName(now),
		ContentType: "application/json",
		Data:        append(data, '\n'),
	}, nil
}

// ExportName returns the download name for an export made at now.
func ExportName(now time.Time) string {
	return fmt.Sprintf("template_settings_%s.json", now.Format("2006-01-02"))
}

// Import validates an uploaded settings file, caches it and submits it.
// Nothing is written unless the file decodes; a failed submission leaves the
// new cache in place and returns a *SubmissionError.
func (p *Persistence) Import(ctx context.Context, filename string, data []byte) (*models.Configuration, *models.SubmitResult, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".json") {
		return nil, nil, ErrInvalidExtension
	}
	cfg, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}

	p.CacheLocally(cfg)

	res, err := p.Submit(ctx, cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, res, nil
}

// Submit sends cfg to the generator session. Only its response decides success.
func (p *Persistence) Submit(ctx context.Context, cfg *models.Configuration) (*models.SubmitResult, error) {
	if cfg == nil {
		return nil, ErrNothingToExport
	}
	if p.submitter == nil {
		return nil, &SubmissionError{Message: "no generator configured"}
	}
	res, err := p.submitter.SaveSettings(ctx, cfg)
	if err != nil {
		var se *SubmissionError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, &SubmissionError{Message: err.Error(), Err: err}
	}
	p.log.Info("settings submitted", "request", res.RequestID)
	return res, nil
}
