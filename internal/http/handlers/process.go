// Package handlers implements the job-processor HTTP surface: POST
// /process, GET /report, and DELETE /process, per spec §6.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/http/response"
	"github.com/dcm-services/job-processor/internal/jobs/orchestrator"
	apperrors "github.com/dcm-services/job-processor/internal/pkg/errors"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
)

// processField mirrors the `process` object of POST /process's body: `id`
// names the job config this run executes against.
type processField struct {
	ID       string `json:"id" binding:"required"`
	TestMode bool   `json:"testMode"`
	Resume   bool   `json:"resume"`
}

type contextField struct {
	JobConfigID       string `json:"jobConfigId"`
	UserTriggered     string `json:"userTriggered"`
	DatetimeTriggered string `json:"datetimeTriggered"`
	TriggerType       string `json:"triggerType"`
	ArtifactsTTL      int    `json:"artifactsTTL"`
}

type processRequest struct {
	Process     processField  `json:"process"`
	Context     *contextField `json:"context"`
	Token       string        `json:"token"`
	CallbackURL string        `json:"callbackUrl"`
}

type tokenResponse struct {
	Value string `json:"value"`
}

// ProcessHandler implements POST /process and DELETE /process. Job
// execution itself is asynchronous (handed to the background worker loop
// via the `jobs` table's queued status); only abort is synchronous w.r.t.
// database finalization, per spec §6.
type ProcessHandler struct {
	Jobs       *repos.JobRepo
	JobConfigs *repos.JobConfigRepo
	AbortHook  *orchestrator.AbortHook
	Log        *logger.Logger
}

func NewProcessHandler(jobs *repos.JobRepo, jobConfigs *repos.JobConfigRepo, abort *orchestrator.AbortHook, log *logger.Logger) *ProcessHandler {
	return &ProcessHandler{Jobs: jobs, JobConfigs: jobConfigs, AbortHook: abort, Log: log.With("handler", "Process")}
}

// Create handles POST /process: it writes a queued job row (acknowledging
// without re-enqueuing if the supplied token already exists) and lets the
// background worker loop pick it up.
func (h *ProcessHandler) Create(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	token := req.Token
	if token == "" {
		token = uuid.New().String()
	}

	if _, err := h.Jobs.GetByToken(c.Request.Context(), token); err == nil {
		c.JSON(http.StatusCreated, tokenResponse{Value: token})
		return
	} else if err != apperrors.ErrNotFound {
		response.RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}

	jobConfigID := req.Process.ID
	if req.Context != nil && req.Context.JobConfigID != "" {
		jobConfigID = req.Context.JobConfigID
	}
	if _, err := h.JobConfigs.LoadTemplateAndJobConfig(c.Request.Context(), jobConfigID); err != nil {
		if err == apperrors.ErrNotFound {
			response.RespondError(c, http.StatusBadRequest, "unknown_job_config", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "job_config_lookup_failed", err)
		return
	}

	var (
		userTriggered     string
		datetimeTriggered time.Time
		triggerType       jobproc.TriggerType
	)
	if req.Context != nil {
		userTriggered = req.Context.UserTriggered
		if req.Context.DatetimeTriggered != "" {
			if t, err := time.Parse(time.RFC3339, req.Context.DatetimeTriggered); err == nil {
				datetimeTriggered = t
			}
		}
		triggerType = jobproc.TriggerType(req.Context.TriggerType)
	}
	if triggerType == "" {
		triggerType = jobproc.TriggerManual
	}
	if req.Process.TestMode {
		triggerType = jobproc.TriggerTest
	}

	row := &jobproc.JobRow{
		Token:             token,
		Status:            jobproc.JobQueued,
		JobConfigID:       jobConfigID,
		UserTriggered:     userTriggered,
		DatetimeTriggered: datetimeTriggered,
		TriggerType:       triggerType,
		CallbackURL:       req.CallbackURL,
	}
	if err := h.Jobs.Insert(c.Request.Context(), row); err != nil {
		response.RespondError(c, http.StatusBadGateway, "submission_rejected", err)
		return
	}

	c.JSON(http.StatusCreated, tokenResponse{Value: token})
}

type abortRequest struct {
	Origin string `json:"origin"`
	Reason string `json:"reason"`
}

// Abort handles DELETE /process: synchronous w.r.t. database finalization
// (spec §6), fanning abort out to any live job or synthesizing a final
// aborted report for one that never ran in this process.
func (h *ProcessHandler) Abort(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.String(http.StatusBadRequest, "missing token")
		return
	}
	var req abortRequest
	_ = c.ShouldBindJSON(&req)

	msg, err := h.AbortHook.Abort(c.Request.Context(), token, req.Reason, req.Origin)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.String(http.StatusNotFound, "unknown token")
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.String(http.StatusOK, msg)
}
