package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/dcm-services/job-processor/internal/pkg/errors"
	"github.com/dcm-services/job-processor/internal/http/response"
	"github.com/dcm-services/job-processor/internal/jobs/orchestrator"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
)

// ReportHandler implements GET /report: it prefers a live in-process
// Report snapshot (updated continuously while a worker drives the job)
// and falls back to the durable row once the job has been finalized or
// picked up by a different worker process.
type ReportHandler struct {
	Jobs *repos.JobRepo
	Live *orchestrator.LiveJobs
	Log  *logger.Logger
}

func NewReportHandler(jobs *repos.JobRepo, live *orchestrator.LiveJobs, log *logger.Logger) *ReportHandler {
	return &ReportHandler{Jobs: jobs, Live: live, Log: log.With("handler", "Report")}
}

func (h *ReportHandler) Get(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_token", nil)
		return
	}

	if jc, ok := h.Live.Get(token); ok {
		response.RespondOK(c, jc.Report.Snapshot())
		return
	}

	row, err := h.Jobs.GetByToken(c.Request.Context(), token)
	if err != nil {
		if err == apperrors.ErrNotFound {
			response.RespondError(c, http.StatusNotFound, "unknown_token", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}

	if len(row.Report) == 0 {
		response.RespondError(c, http.StatusServiceUnavailable, "report_not_ready", nil)
		return
	}

	var payload any
	if err := json.Unmarshal(row.Report, &payload); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "report_unmarshal_failed", err)
		return
	}
	response.RespondOK(c, payload)
}
