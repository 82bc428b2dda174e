// Package history keeps a DuckDB record of finished generation runs.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"

	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/models"
)

// Run is one generation outcome.
type Run struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	TemplateName     string    `json:"templateName"`
	BatchName        string    `json:"batchName"`
	OutputArtifactID string    `json:"outputArtifactId,omitempty"`
	CreatedSlides    int       `json:"createdSlides"`
	ProcessedFolders int       `json:"processedFolders"`
	TotalImages      int       `json:"totalImages"`
	Warnings         int       `json:"warnings"`
	Errors           int       `json:"errors"`
	SkippedConfigure bool      `json:"skippedConfigure"`
	Failed           bool      `json:"failed"`
	Message          string    `json:"message,omitempty"`
	FinishedAt       time.Time `json:"finishedAt"`
}

// CountDetails fills the warning and error counters from a details list.
func (r *Run) CountDetails(details []models.Detail) {
	r.Warnings, r.Errors = 0, 0
	for _, d := range details {
		switch d.Type {
		case models.DetailWarning:
			r.Warnings++
		case models.DetailError:
			r.Errors++
		}
	}
}

// Store is a DuckDB-backed run log.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
	log    *slog.Logger
}

// Open creates or opens the run database at dbPath.
func Open(dbPath string) (*Store, error) {
	log := logging.WithComponent("history")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id                VARCHAR PRIMARY KEY,
			session_id        VARCHAR NOT NULL,
			template_name     VARCHAR,
			batch_name        VARCHAR,
			output_artifact   VARCHAR,
			created_slides    INTEGER NOT NULL,
			processed_folders INTEGER NOT NULL,
			total_images      INTEGER NOT NULL,
			warnings          INTEGER NOT NULL,
			errors            INTEGER NOT NULL,
			skipped_configure BOOLEAN NOT NULL,
			failed            BOOLEAN NOT NULL,
			message           VARCHAR,
			finished_at       TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	log.Info("run history opened", "path", dbPath)
	return &Store{db: db, dbPath: dbPath, log: log}, nil
}

// Record stores a run, assigning an id and finish time when missing.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.TemplateName, run.BatchName, run.OutputArtifactID,
		run.CreatedSlides, run.ProcessedFolders, run.TotalImages, run.Warnings, run.Errors,
		run.SkippedConfigure, run.Failed, run.Message, run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	s.log.Debug("run recorded", "id", run.ID, "session", run.SessionID, "failed", run.Failed)
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, template_name, batch_name, output_artifact,
		       created_slides, processed_folders, total_images, warnings, errors,
		       skipped_configure, failed, message, finished_at
		FROM runs
		ORDER BY finished_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var r Run
		var template, batch, artifact, message sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &template, &batch, &artifact,
			&r.CreatedSlides, &r.ProcessedFolders, &r.TotalImages, &r.Warnings, &r.Errors,
			&r.SkippedConfigure, &r.Failed, &message, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.TemplateName = template.String
		r.BatchName = batch.String
		r.OutputArtifactID = artifact.String
		r.Message = message.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
