// handlers_configure.go - Canvas, panel, modal and summary handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/slidewizard/backend/internal/binder"
	"github.com/slidewizard/backend/internal/placeholder"
	"github.com/slidewizard/backend/internal/session"
)

// ConfigureHandlerImpl implements the ConfigureHandler interface
type ConfigureHandlerImpl struct {
	sessions *session.Manager
}

// NewConfigureHandler creates a new configure handler
func NewConfigureHandler(sessions *session.Manager) ConfigureHandler {
	return &ConfigureHandlerImpl{sessions: sessions}
}

// HandleGetCanvas returns the clickable regions over the template preview
func (h *ConfigureHandlerImpl) HandleGetCanvas(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"regions": ws.Binder.Canvas(),
	})
}

// HandleGetPanel returns the side panel cards
func (h *ConfigureHandlerImpl) HandleGetPanel(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cards": ws.Binder.Panel(),
	})
}

// HandleGetModal returns the modal dialog state
func (h *ConfigureHandlerImpl) HandleGetModal(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws.Binder.Modal())
}

type selectRequest struct {
	ID *int `json:"id"`
}

func (r *selectRequest) validate() error {
	if r.ID == nil {
		return NewValidationError("id")
	}
	return nil
}

// HandleSelect selects a placeholder and opens the modal on it
func (h *ConfigureHandlerImpl) HandleSelect(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	modal, err := ws.Binder.Select(*req.ID)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, modal)
}

type editRequest struct {
	Control string      `json:"control"`
	Value   interface{} `json:"value"`
}

func (r *editRequest) validate() error {
	if r.Control == "" {
		return NewValidationError("control")
	}
	return nil
}

// HandleEditModal applies an edit made in the modal
func (h *ConfigureHandlerImpl) HandleEditModal(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	var req editRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	if err := ws.Binder.EditModal(binder.Control(req.Control), req.Value); err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, ws.Binder.Modal())
}

type closeModalRequest struct {
	Reason string `json:"reason"`
}

// HandleCloseModal dismisses the modal
func (h *ConfigureHandlerImpl) HandleCloseModal(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	var req closeModalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	reason, err := binder.ParseCloseReason(req.Reason)
	if err != nil {
		return FromError(err)
	}
	if err := ws.Binder.CloseModal(reason); err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, ws.Binder.Modal())
}

// HandleEditPanel applies an edit made on a panel card
func (h *ConfigureHandlerImpl) HandleEditPanel(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("placeholderId"))
	if err != nil {
		return NewValidationError("placeholderId")
	}

	var req editRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	if err := ws.Binder.EditPanel(id, binder.Control(req.Control), req.Value); err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cards": ws.Binder.Panel(),
	})
}

type summaryResponse struct {
	placeholder.Summary
	Rendered     string `json:"text"`
	RenderedHTML string `json:"html"`
}

// HandleGetSummary returns the configuration summary as lines and text
func (h *ConfigureHandlerImpl) HandleGetSummary(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	sum := ws.Store.Summarize()
	return c.JSON(http.StatusOK, summaryResponse{Summary: sum, Rendered: sum.Text(), RenderedHTML: sum.HTML()})
}

// HandleGetConfig returns the current configuration
func (h *ConfigureHandlerImpl) HandleGetConfig(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	cfg := ws.Controller.Configuration()
	if cfg == nil {
		return NewConflictError("no configuration yet: upload a template first")
	}
	return c.JSON(http.StatusOK, cfg)
}

// HandleGetConfigMsgpack returns the current configuration in MessagePack format
func (h *ConfigureHandlerImpl) HandleGetConfigMsgpack(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	cfg := ws.Controller.Configuration()
	if cfg == nil {
		return NewConflictError("no configuration yet: upload a template first")
	}

	data, err := msgpack.Marshal(cfg)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}
