package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/slidewizard/backend/internal/binder"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/placeholder"
	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/settings"
	"github.com/slidewizard/backend/internal/testutil"
	"github.com/slidewizard/backend/internal/wizard"
)

func TestFromError(t *testing.T) {
	remote := &testutil.DetailedError{Msg: "boom", Details: []models.Detail{{Type: models.DetailError, Message: "x"}}}

	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		diagnostics int
	}{
		{"validation step", &wizard.StepError{Kind: wizard.KindValidation, Message: "bad", Err: wizard.ErrWrongExtension}, http.StatusBadRequest, CodeValidation, 0},
		{"prerequisite step", &wizard.StepError{Kind: wizard.KindPrerequisite, Message: "no", Err: wizard.ErrNotConfigured}, http.StatusConflict, CodeConflict, 0},
		{"busy step", &wizard.StepError{Kind: wizard.KindBusy, Message: "busy", Err: wizard.ErrBusy}, http.StatusConflict, CodeBusy, 0},
		{"remote step", &wizard.StepError{Kind: wizard.KindRemote, Message: "boom", Err: remote}, http.StatusBadGateway, CodeRemote, 1},
		{"malformed settings", fmt.Errorf("%w: texts missing", settings.ErrMalformedSettings), http.StatusBadRequest, CodeMalformedSettings, 0},
		{"submission", &settings.SubmissionError{Message: "nope"}, http.StatusBadGateway, CodeRemote, 0},
		{"missing session", session.ErrNotFound, http.StatusNotFound, CodeNotFound, 0},
		{"invalid client", fmt.Errorf("%w: \"x\"", settings.ErrInvalidClient), http.StatusBadRequest, CodeValidation, 0},
		{"modal closed", binder.ErrModalClosed, http.StatusConflict, CodeConflict, 0},
		{"bad order", fmt.Errorf("order: %w", placeholder.ErrInvalidOrder), http.StatusBadRequest, CodeValidation, 0},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
			assert.Len(t, got.Diagnostics, tt.diagnostics)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ErrorHandler(NewNotFoundError("session", "abc"), e.NewContext(req, rec))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)

	rec = httptest.NewRecorder()
	ErrorHandler(echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), e.NewContext(req, rec))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)
}
