// handlers_session.go - Wizard session and step navigation handlers
package api

import (
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/storage"
	"github.com/slidewizard/backend/internal/wizard"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions *session.Manager
	store    storage.Store
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager, store storage.Store) SessionHandler {
	return &SessionHandlerImpl{
		sessions: sessions,
		store:    store,
	}
}

// lookupWorkspace resolves the :id path parameter.
func lookupWorkspace(sessions *session.Manager, c echo.Context) (*session.Workspace, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	ws, err := sessions.Get(id)
	if err != nil {
		return nil, NewNotFoundError("session", id)
	}
	return ws, nil
}

// stepResponse is the wizard state plus the one-time notice, if any.
type stepResponse struct {
	wizard.State
	Notice *models.Notification `json:"notice,omitempty"`
}

func respondState(c echo.Context, ws *session.Workspace) error {
	resp := stepResponse{State: ws.Controller.State()}
	if n, ok := ws.Controller.TakeNotice(); ok {
		resp.Notice = &n
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleCreateSession starts a new wizard on the upload step for the
// calling browser client
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	ws, err := h.sessions.Create(clientID(c))
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusCreated, ws.Info())
}

// HandleGetSession returns the session and its wizard state
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws.Info())
}

// HandleDeleteSession drops a session
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessions.Delete(id); err != nil {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleUploadTemplate analyzes a template (multipart field "template")
func (h *SessionHandlerImpl) HandleUploadTemplate(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	file, err := c.FormFile("template")
	if err != nil {
		// Still goes through the controller so the upload step shows the error
		return FromError(ws.Controller.UploadTemplate(ctx, "", 0, nil))
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	if err := ws.Controller.UploadTemplate(ctx, file.Filename, file.Size, src); err != nil {
		return FromError(err)
	}

	h.keepTemplate(ws.ID, file)
	return respondState(c, ws)
}

// keepTemplate stores an analyzed template. Failures are logged only.
func (h *SessionHandlerImpl) keepTemplate(sessionID string, file *multipart.FileHeader) {
	if h.store == nil {
		return
	}
	log := logging.WithComponent("api")

	src, err := file.Open()
	if err != nil {
		log.Warn("reopen template", "session", sessionID, "error", err)
		return
	}
	defer src.Close()

	info, err := h.store.Save(models.FileKindTemplate, file.Filename, src)
	if err != nil {
		log.Warn("store template", "session", sessionID, "error", err)
		return
	}
	_ = h.store.SetStatus(info.ID, models.FileStatusAnalyzed)
}

type setStepRequest struct {
	Step int `json:"step"`
}

// HandleSetStep navigates to a step
func (h *SessionHandlerImpl) HandleSetStep(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	var req setStepRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := ws.Controller.GoTo(wizard.Step(req.Step)); err != nil {
		return FromError(err)
	}
	return respondState(c, ws)
}

// HandleConfirm submits the configuration and enters the process step
func (h *SessionHandlerImpl) HandleConfirm(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	if err := ws.Controller.Confirm(c.Request().Context()); err != nil {
		return FromError(err)
	}
	return respondState(c, ws)
}

// HandleUsePreviousSettings applies the cached settings and skips configure
func (h *SessionHandlerImpl) HandleUsePreviousSettings(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	if err := ws.Controller.UsePreviousSettings(c.Request().Context()); err != nil {
		return FromError(err)
	}
	return respondState(c, ws)
}

// HandleRestart returns the wizard to an empty upload step
func (h *SessionHandlerImpl) HandleRestart(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	ws.Controller.Restart()
	return respondState(c, ws)
}
