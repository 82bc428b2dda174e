// handlers_upload.go - Chunked upload handlers for large batch bundles
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/jobs"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/storage"
)

// gzipDecompressor is implemented by stores that can inflate a gzip upload in place.
type gzipDecompressor interface {
	DecompressGzip(id string, expectedSize int64, progress func(float64)) error
}

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store storage.Store
	jobs  *jobs.Manager
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, jobMgr *jobs.Manager) UploadHandler {
	return &UploadHandlerImpl{
		store: store,
		jobs:  jobMgr,
	}
}

// HandleUploadChunk accepts one chunk (multipart field "file" with
// uploadId and chunkIndex form values)
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	uploadID := c.FormValue("uploadId")
	if uploadID == "" {
		return NewValidationError("uploadId")
	}
	index, err := strconv.Atoi(c.FormValue("chunkIndex"))
	if err != nil || index < 0 {
		return NewValidationError("chunkIndex")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no chunk provided", err)
	}
	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open chunk", err)
	}
	defer src.Close()

	if err := h.store.SaveChunk(uploadID, index, src); err != nil {
		return NewBadRequestError("failed to save chunk", err)
	}
	return c.NoContent(http.StatusAccepted)
}

type completeUploadRequest struct {
	UploadID     string `json:"uploadId"`
	Name         string `json:"name"`
	TotalChunks  int    `json:"totalChunks"`
	OriginalSize int64  `json:"originalSize"`
	Encoding     string `json:"encoding"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewValidationError("totalChunks")
	}
	if r.Encoding != "" && r.Encoding != "gzip" && r.Encoding != "none" {
		return NewValidationError("encoding")
	}
	return nil
}

// HandleCompleteUpload assembles the chunks in the background. The job's
// result is the stored file, usable as batchFileId.
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	job := h.jobs.StartJob("", jobs.KindAssemble, req.Name, func(ctx context.Context, report jobs.Reporter) (any, error) {
		report(jobs.StatusAssembling, "assembling", 0, 5)
		info, err := h.store.CompleteChunkedUpload(req.UploadID, models.FileKindBatch, req.Name, req.TotalChunks)
		if err != nil {
			return nil, err
		}
		report(jobs.StatusAssembling, "assembling", 100, 50)

		if req.Encoding == "gzip" {
			d, ok := h.store.(gzipDecompressor)
			if ok {
				report(jobs.StatusDecompressing, "decompressing", 0, 50)
				err := d.DecompressGzip(info.ID, req.OriginalSize, func(p float64) {
					report(jobs.StatusDecompressing, "decompressing", p, 50+p/2)
				})
				if err != nil {
					_ = h.store.SetStatus(info.ID, models.FileStatusError)
					return nil, err
				}
				if fresh, err := h.store.Get(info.ID); err == nil {
					info = fresh
				}
			}
		}
		return info, nil
	})

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}
