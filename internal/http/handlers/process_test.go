package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/jobs/orchestrator"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&jobproc.JobRow{},
		&jobproc.RecordRow{},
		&jobproc.ArtifactRow{},
		&jobproc.TemplateRow{},
		&jobproc.JobConfigRow{},
	))
	return db
}

func newTestProcessHandler(t *testing.T) (*ProcessHandler, *repos.JobRepo, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	log, err := logger.New("test")
	require.NoError(t, err)

	jobs := repos.NewJobRepo(db)
	jobConfigs := repos.NewJobConfigRepo(db)
	live := orchestrator.NewLiveJobs()
	abort := orchestrator.NewAbortHook(live, jobs, log)

	require.NoError(t, db.Create(&jobproc.TemplateRow{ID: "tmpl-1", Type: jobproc.TemplatePlugin}).Error)
	require.NoError(t, db.Create(&jobproc.JobConfigRow{ID: "jc-1", TemplateID: "tmpl-1"}).Error)

	return NewProcessHandler(jobs, jobConfigs, abort, log), jobs, db
}

func doRequest(h *ProcessHandler, method, target string, body any) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	switch method {
	case http.MethodPost:
		h.Create(c)
	case http.MethodDelete:
		h.Abort(c)
	}
	return w
}

func TestProcessCreate_UnknownJobConfigIsRejected(t *testing.T) {
	h, _, _ := newTestProcessHandler(t)

	w := doRequest(h, http.MethodPost, "/process", map[string]any{
		"process": map[string]any{"id": "does-not-exist"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessCreate_InsertsQueuedJobAndReturnsToken(t *testing.T) {
	h, jobs, _ := newTestProcessHandler(t)

	w := doRequest(h, http.MethodPost, "/process", map[string]any{
		"process": map[string]any{"id": "jc-1"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Value)

	row, err := jobs.GetByToken(context.Background(), resp.Value)
	require.NoError(t, err)
	require.Equal(t, jobproc.JobQueued, row.Status)
	require.Equal(t, "jc-1", row.JobConfigID)
}

func TestProcessCreate_ExistingTokenIsAcknowledgedWithoutReinserting(t *testing.T) {
	h, jobs, _ := newTestProcessHandler(t)

	w := doRequest(h, http.MethodPost, "/process", map[string]any{
		"process": map[string]any{"id": "jc-1"},
		"token":   "tok-fixed",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w2 := doRequest(h, http.MethodPost, "/process", map[string]any{
		"process": map[string]any{"id": "jc-1"},
		"token":   "tok-fixed",
	})
	require.Equal(t, http.StatusCreated, w2.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	require.Equal(t, "tok-fixed", resp.Value)

	row, err := jobs.GetByToken(context.Background(), "tok-fixed")
	require.NoError(t, err)
	require.Equal(t, "tok-fixed", row.Token)
}

func TestProcessAbort_MissingTokenIsRejected(t *testing.T) {
	h, _, _ := newTestProcessHandler(t)
	w := doRequest(h, http.MethodDelete, "/process", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessAbort_UnknownTokenIs404(t *testing.T) {
	h, _, _ := newTestProcessHandler(t)
	w := doRequest(h, http.MethodDelete, "/process?token=nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessAbort_NeverRunningJobSynthesizesAbortedReport(t *testing.T) {
	h, jobs, _ := newTestProcessHandler(t)

	row := &jobproc.JobRow{Token: "tok-abort", Status: jobproc.JobQueued, JobConfigID: "jc-1"}
	require.NoError(t, jobs.Insert(context.Background(), row))

	w := doRequest(h, http.MethodDelete, "/process?token=tok-abort", map[string]any{"reason": "operator request"})
	require.Equal(t, http.StatusOK, w.Code)

	updated, err := jobs.GetByToken(context.Background(), "tok-abort")
	require.NoError(t, err)
	require.Equal(t, jobproc.JobAborted, updated.Status)
}
