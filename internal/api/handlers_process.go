// handlers_process.go - Batch generation, job polling and results handlers
package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/history"
	"github.com/slidewizard/backend/internal/jobs"
	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/slideshow"
	"github.com/slidewizard/backend/internal/storage"
	"github.com/slidewizard/backend/internal/wizard"
)

// ProcessHandlerImpl implements the ProcessHandler interface
type ProcessHandlerImpl struct {
	sessions  *session.Manager
	store     storage.Store
	jobs      *jobs.Manager
	history   RunHistory
	defaults  models.GenerateOptions
	maxUpload int64
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(sessions *session.Manager, store storage.Store, jobMgr *jobs.Manager, runs RunHistory, defaults models.GenerateOptions, maxUpload int64) ProcessHandler {
	return &ProcessHandlerImpl{
		sessions:  sessions,
		store:     store,
		jobs:      jobMgr,
		history:   runs,
		defaults:  defaults,
		maxUpload: maxUpload,
	}
}

// parseGenerateOptions reads imageOrder and skipEmptyFolders form values.
func parseGenerateOptions(c echo.Context, opts models.GenerateOptions) (models.GenerateOptions, error) {
	if v := c.FormValue("imageOrder"); v != "" {
		opts.ImageOrder = v
	}
	if v := c.FormValue("skipEmptyFolders"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, NewValidationError("skipEmptyFolders")
		}
		opts.SkipEmptyFolders = b
	}
	return opts, nil
}

// HandleProcess starts a generation job. The batch comes either as the
// multipart field "batch" or as "batchFileId", a finished chunked upload.
func (h *ProcessHandlerImpl) HandleProcess(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	opts, err := parseGenerateOptions(c, h.defaults)
	if err != nil {
		return err
	}

	var (
		name   string
		size   int64
		fileID = c.FormValue("batchFileId")
		header *multipart.FileHeader
	)
	if fileID != "" {
		info, err := h.store.Get(fileID)
		if err != nil {
			return NewNotFoundError("file", fileID)
		}
		name, size = info.Name, info.Size
	} else if fh, err := c.FormFile("batch"); err == nil {
		header = fh
		name, size = fh.Filename, fh.Size
	}
	if h.maxUpload > 0 && size > h.maxUpload {
		return &APIError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    CodeValidation,
			Message: fmt.Sprintf("batch is larger than the %d byte limit", h.maxUpload),
		}
	}

	run, err := ws.Controller.BeginProcess(name, size, opts)
	if err != nil {
		return FromError(err)
	}

	if header != nil {
		info, err := saveUpload(h.store, models.FileKindBatch, header)
		if err != nil {
			run.Abort()
			return NewInternalError("failed to save batch", err)
		}
		fileID = info.ID
	}

	state := ws.Controller.State()
	job := h.jobs.StartJob(ws.ID, jobs.KindGenerate, name, func(ctx context.Context, report jobs.Reporter) (any, error) {
		src, _, err := h.store.Open(fileID)
		if err != nil {
			run.Abort()
			return nil, err
		}
		defer src.Close()

		report(jobs.StatusGenerating, "generating", 0, 10)
		res, runErr := run.Run(ctx, src)

		status := models.FileStatusProcessed
		if runErr != nil {
			status = models.FileStatusError
		}
		_ = h.store.SetStatus(fileID, status)
		h.record(ctx, ws.ID, state, name, res, runErr)

		if runErr != nil {
			return nil, runErr
		}
		return res, nil
	})

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// record adds a run to the history. Failures are logged only.
func (h *ProcessHandlerImpl) record(ctx context.Context, sessionID string, state wizard.State, batch string, res *models.GenerateResult, runErr error) {
	if h.history == nil {
		return
	}
	run := &history.Run{
		SessionID:        sessionID,
		TemplateName:     state.TemplateName,
		BatchName:        batch,
		SkippedConfigure: state.SkipConfigure,
	}
	if res != nil {
		run.OutputArtifactID = res.OutputArtifactID
		run.CreatedSlides = res.Stats.CreatedSlides
		run.ProcessedFolders = res.Stats.ProcessedFolders
		run.TotalImages = res.Stats.TotalImages
		run.CountDetails(res.Details)
	}
	if runErr != nil {
		run.Failed = true
		run.Message = runErr.Error()
		var se *wizard.StepError
		if errors.As(runErr, &se) {
			run.Message = se.Message
		}
		var d interface{ FailureDetails() []models.Detail }
		if errors.As(runErr, &d) {
			run.CountDetails(d.FailureDetails())
		}
	}
	if err := h.history.Record(ctx, run); err != nil {
		logging.WithComponent("api").Warn("record run", "session", sessionID, "error", err)
	}
}

// HandleGetJob returns the state of a job
func (h *ProcessHandlerImpl) HandleGetJob(c echo.Context) error {
	id := c.Param("jobId")
	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}
	return c.JSON(http.StatusOK, job)
}

type resultsResponse struct {
	Results        *models.GenerateResult `json:"results,omitempty"`
	FailureDetails []models.Detail        `json:"failureDetails,omitempty"`
	ShowDetails    bool                   `json:"showDetails"`
	Processing     bool                   `json:"processing"`
	Error          *wizard.StepError      `json:"error,omitempty"`
	Slideshow      slideshow.State        `json:"slideshow"`
}

// HandleGetResults returns the latest run's results and diagnostics
func (h *ProcessHandlerImpl) HandleGetResults(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	st := ws.Controller.State()
	return c.JSON(http.StatusOK, resultsResponse{
		Results:        st.Results,
		FailureDetails: st.FailureDetails,
		ShowDetails:    st.ShowDetails,
		Processing:     st.Processing,
		Error:          st.Error,
		Slideshow:      currentSlideshow(ws.Navigator),
	})
}

// HandleDownloadResult streams the generated file of the last run as an attachment
func (h *ProcessHandlerImpl) HandleDownloadResult(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	a, err := ws.Controller.Download(c.Request().Context())
	if err != nil {
		return FromError(err)
	}
	defer a.Body.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", a.Name))
	if a.Size >= 0 {
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(a.Size, 10))
	}
	return c.Stream(http.StatusOK, a.ContentType, a.Body)
}

// HandleGetRuns returns recent generation runs
func (h *ProcessHandlerImpl) HandleGetRuns(c echo.Context) error {
	if h.history == nil {
		return c.JSON(http.StatusOK, []history.Run{})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list runs", err)
	}
	return c.JSON(http.StatusOK, runs)
}

// saveUpload copies a multipart file into the store.
func saveUpload(store storage.Store, kind string, fh *multipart.FileHeader) (*models.FileInfo, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return store.Save(kind, fh.Filename, src)
}
