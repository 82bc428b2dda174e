// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/history"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionHandler handles wizard session lifecycle and step navigation
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleUploadTemplate(c echo.Context) error
	HandleSetStep(c echo.Context) error
	HandleConfirm(c echo.Context) error
	HandleUsePreviousSettings(c echo.Context) error
	HandleRestart(c echo.Context) error
}

// ConfigureHandler handles the canvas, panel and modal surfaces
type ConfigureHandler interface {
	HandleGetCanvas(c echo.Context) error
	HandleGetPanel(c echo.Context) error
	HandleGetModal(c echo.Context) error
	HandleSelect(c echo.Context) error
	HandleEditModal(c echo.Context) error
	HandleCloseModal(c echo.Context) error
	HandleEditPanel(c echo.Context) error
	HandleGetSummary(c echo.Context) error
	HandleGetConfig(c echo.Context) error
	HandleGetConfigMsgpack(c echo.Context) error
}

// ProcessHandler handles batch generation and its results
type ProcessHandler interface {
	HandleProcess(c echo.Context) error
	HandleGetJob(c echo.Context) error
	HandleGetResults(c echo.Context) error
	HandleDownloadResult(c echo.Context) error
	HandleGetRuns(c echo.Context) error
}

// UploadHandler handles chunked uploads of large batch bundles
type UploadHandler interface {
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
}

// SettingsHandler handles settings export, import and the local cache
type SettingsHandler interface {
	HandleExportSettings(c echo.Context) error
	HandleImportSettings(c echo.Context) error
	HandleCachedSettings(c echo.Context) error
}

// SlideshowHandler handles result slide navigation
type SlideshowHandler interface {
	HandleGetSlideshow(c echo.Context) error
	HandleSlideshowNext(c echo.Context) error
	HandleSlideshowPrevious(c echo.Context) error
	HandleSlideshowFullscreen(c echo.Context) error
	HandleSlideshowExitFullscreen(c echo.Context) error
}

// EventsHandler streams session events
type EventsHandler interface {
	HandleEvents(c echo.Context) error
}

// RunHistory records finished generation runs.
// This allows mocking in tests
type RunHistory interface {
	Record(ctx context.Context, run *history.Run) error
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}
