// handlers_settings.go - Settings export, import and cache handlers
package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/settings"
)

// maxSettingsFileSize bounds an imported settings file.
const maxSettingsFileSize = 1 << 20

// SettingsHandlerImpl implements the SettingsHandler interface
type SettingsHandlerImpl struct {
	sessions *session.Manager
	caches   session.CacheProvider
	now      func() time.Time
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(sessions *session.Manager, caches session.CacheProvider, now func() time.Time) SettingsHandler {
	return &SettingsHandlerImpl{
		sessions: sessions,
		caches:   caches,
		now:      now,
	}
}

// HandleExportSettings downloads the current configuration as a JSON file
func (h *SettingsHandlerImpl) HandleExportSettings(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	file, err := ws.Settings.Export(ws.Controller.Configuration(), h.now())
	if err != nil {
		return FromError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.Blob(http.StatusOK, file.ContentType, file.Data)
}

type importResponse struct {
	Config *models.Configuration `json:"config"`
	Result *models.SubmitResult  `json:"result,omitempty"`
}

// HandleImportSettings validates, caches and submits an uploaded settings
// file (multipart field "settings"). Wizard state changes only when the
// submission succeeds.
func (h *SettingsHandlerImpl) HandleImportSettings(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("settings")
	if err != nil {
		return NewValidationError("settings")
	}
	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSettingsFileSize+1))
	if err != nil {
		return NewInternalError("failed to read uploaded file", err)
	}
	if len(data) > maxSettingsFileSize {
		return &APIError{Status: http.StatusRequestEntityTooLarge, Code: CodeValidation, Message: "settings file is too large"}
	}

	cfg, res, err := ws.Settings.Import(c.Request().Context(), file.Filename, data)
	if err != nil {
		return FromError(err)
	}

	ws.Controller.AcceptImported(cfg)
	return c.JSON(http.StatusOK, importResponse{Config: cfg, Result: res})
}

// HandleCachedSettings reports whether the calling client has previous
// settings to reuse
func (h *SettingsHandlerImpl) HandleCachedSettings(c echo.Context) error {
	var cache settings.LocalCache
	if h.caches != nil {
		cc, err := h.caches.For(clientID(c))
		if err != nil {
			return FromError(err)
		}
		cache = cc
	}
	return c.JSON(http.StatusOK, map[string]bool{
		"available": settings.New(cache, nil).HasCached(),
	})
}
