package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidewizard/backend/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "runs.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		run := &Run{
			SessionID:        "s1",
			TemplateName:     "deck.pptx",
			BatchName:        "folders.zip",
			OutputArtifactID: "out.pptx",
			CreatedSlides:    i + 1,
			FinishedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Record(ctx, run))
		assert.NotEmpty(t, run.ID)
	}

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].CreatedSlides)
	assert.Equal(t, 2, runs[1].CreatedSlides)
	assert.Equal(t, "deck.pptx", runs[0].TemplateName)
}

func TestRecordFailedRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &Run{SessionID: "s2", Failed: true, Message: "no folders found", SkippedConfigure: true}
	run.CountDetails([]models.Detail{
		{Type: models.DetailWarning, Message: "empty folder"},
		{Type: models.DetailError, Message: "bad image"},
		{Type: models.DetailError, Message: "bad image"},
		{Type: models.DetailInfo, Message: "done"},
	})
	require.NoError(t, s.Record(ctx, run))

	runs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Failed)
	assert.True(t, runs[0].SkippedConfigure)
	assert.Equal(t, 1, runs[0].Warnings)
	assert.Equal(t, 2, runs[0].Errors)
	assert.Equal(t, "", runs[0].OutputArtifactID)
}
