package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/jobs/orchestrator"
	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
)

func newTestReportHandler(t *testing.T) (*ReportHandler, *repos.JobRepo, *orchestrator.LiveJobs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	log, err := logger.New("test")
	require.NoError(t, err)

	jobs := repos.NewJobRepo(db)
	live := orchestrator.NewLiveJobs()
	return NewReportHandler(jobs, live, log), jobs, live
}

func doGetReport(h *ReportHandler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	h.Get(c)
	return w
}

func TestReportGet_MissingTokenIsRejected(t *testing.T) {
	h, _, _ := newTestReportHandler(t)
	w := doGetReport(h, "/report")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportGet_UnknownTokenIs404(t *testing.T) {
	h, _, _ := newTestReportHandler(t)
	w := doGetReport(h, "/report?token=nope")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportGet_NotYetProducedIs503(t *testing.T) {
	h, jobs, _ := newTestReportHandler(t)
	require.NoError(t, jobs.Insert(context.Background(), &jobproc.JobRow{Token: "tok-1", Status: jobproc.JobRunning}))

	w := doGetReport(h, "/report?token=tok-1")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReportGet_PrefersLiveSnapshotOverDurableRow(t *testing.T) {
	h, jobs, live := newTestReportHandler(t)
	require.NoError(t, jobs.Insert(context.Background(), &jobproc.JobRow{
		Token:  "tok-2",
		Status: jobproc.JobRunning,
		Report: datatypes.JSON(`{"progress":{"status":"aborted"}}`),
	}))

	report := jobproc.NewReport("tok-2")
	report.SetProgress(jobproc.Progress{Status: jobproc.ProgressRunning, Numeric: 42})
	jc := jobrt.New(context.Background(), "tok-2", &jobproc.JobConfig{}, jobproc.JobContext{}, report)
	live.Register("tok-2", jc)
	defer live.Unregister("tok-2")

	w := doGetReport(h, "/report?token=tok-2")
	require.Equal(t, http.StatusOK, w.Code)

	var payload jobproc.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, jobproc.ProgressRunning, payload.Progress.Status)
	require.Equal(t, 42, payload.Progress.Numeric)
}

func TestReportGet_FallsBackToDurableRowWhenNotLive(t *testing.T) {
	h, jobs, _ := newTestReportHandler(t)
	require.NoError(t, jobs.Insert(context.Background(), &jobproc.JobRow{
		Token:  "tok-3",
		Status: jobproc.JobCompleted,
		Report: datatypes.JSON(`{"progress":{"status":"completed"}}`),
	}))

	w := doGetReport(h, "/report?token=tok-3")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "completed")
}
