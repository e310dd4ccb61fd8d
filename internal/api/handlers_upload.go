// handlers_upload.go - Archive upload and analysis job handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/analyzer"
	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/models"
	"github.com/har-viewer/backend/internal/storage"
)

// jobStreamTimeout bounds a single SSE job stream.
const jobStreamTimeout = 5 * time.Minute

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store    storage.Store
	sessions SessionManager
	jobs     JobManager
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, sessions SessionManager, jobs JobManager) UploadHandler {
	return &UploadHandlerImpl{
		store:    store,
		sessions: sessions,
		jobs:     jobs,
	}
}

type uploadResponse struct {
	Job     *models.AnalysisJob `json:"job"`
	Session *models.ViewSession `json:"session"`
}

// HandleUpload spools a multipart "file", analyzes it and returns the new session.
func (h *UploadHandlerImpl) HandleUpload(c echo.Context) error {
	info, err := h.spool(c)
	if err != nil {
		return err
	}

	job, err := h.jobs.Run(c.Request().Context(), info)
	if err != nil {
		return analysisError(err)
	}

	sess, err := h.sessions.Get(job.SessionID)
	if err != nil {
		return NewInternalError("session missing after analysis", err)
	}
	return c.JSON(http.StatusCreated, uploadResponse{Job: job, Session: sess})
}

// HandleUploadAsync spools a multipart "file" and starts its analysis in the background.
func (h *UploadHandlerImpl) HandleUploadAsync(c echo.Context) error {
	info, err := h.spool(c)
	if err != nil {
		return err
	}

	job := h.jobs.StartJob(info)
	return c.JSON(http.StatusAccepted, job)
}

// spool validates the upload name and saves the archive to the upload store.
func (h *UploadHandlerImpl) spool(c echo.Context) (*models.FileInfo, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, NewBadRequestError("no file provided", err)
	}
	if err := analyzer.ValidateFileName(file.Filename); err != nil {
		return nil, NewWrongFileTypeError(err)
	}

	src, err := file.Open()
	if err != nil {
		return nil, NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return nil, NewInternalError("failed to save file", err)
	}
	logging.L.Info("archive spooled",
		zap.String("file", info.Name),
		zap.String("id", logging.ShortID(info.ID)),
		zap.Int64("size", info.Size))
	return info, nil
}

// HandleGetJob returns the state of an analysis job
func (h *UploadHandlerImpl) HandleGetJob(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleRetryJob re-runs a job whose archive never reached the analyzer
func (h *UploadHandlerImpl) HandleRetryJob(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	job, err := h.jobs.Retry(id)
	if err != nil {
		return sessionError(err, id)
	}
	return c.JSON(http.StatusAccepted, job)
}

// HandleJobStream streams job status via SSE until the job resolves
func (h *UploadHandlerImpl) HandleJobStream(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	job, ok := h.jobs.GetJob(id)
	if !ok {
		sendSSEError(c, "job not found")
		return nil
	}
	sendSSEData(c, job)
	if job.Status != models.JobStatusPending {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(jobStreamTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			job, ok := h.jobs.GetJob(id)
			if !ok {
				sendSSEError(c, "job not found")
				return nil
			}

			sendSSEData(c, job)

			if job.Status != models.JobStatusPending {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
