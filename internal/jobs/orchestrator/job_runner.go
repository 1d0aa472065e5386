package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
	"github.com/dcm-services/job-processor/internal/lock"
	"github.com/dcm-services/job-processor/internal/notify"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
)

// JobRunner is the top-level per-job loop described in spec §4.8: collect
// the initial record set, drive every record to completion bounded by
// PROCESS_RECORD_CONCURRENCY in flight, aggregate the final status, and
// finalize the job row.
type JobRunner struct {
	Collector       *JobCollector
	RecordRunner    *RecordRunner
	Jobs            *repos.JobRepo
	Live            *LiveJobs
	Lock            *lock.JobLock
	Notifier        *notify.Notifier
	Concurrency     int64
	ProcessInterval time.Duration
	CallbackClient  *http.Client
	Log             *logger.Logger
}

func NewJobRunner(collector *JobCollector, recordRunner *RecordRunner, jobs *repos.JobRepo, live *LiveJobs, jobLock *lock.JobLock, notifier *notify.Notifier, concurrency int, processInterval time.Duration, log *logger.Logger) *JobRunner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if processInterval <= 0 {
		processInterval = 200 * time.Millisecond
	}
	return &JobRunner{
		Collector:       collector,
		RecordRunner:    recordRunner,
		Jobs:            jobs,
		Live:            live,
		Lock:            jobLock,
		Notifier:        notifier,
		Concurrency:     int64(concurrency),
		ProcessInterval: processInterval,
		CallbackClient:  &http.Client{Timeout: 30 * time.Second},
		Log:             log,
	}
}

// recordTask tracks one in-flight Record Runner goroutine.
type recordTask struct {
	rec  *jobproc.Record
	done chan struct{}
}

// Run drives jc's job from collection through finalization. Any panic or
// error escaping the main loop is captured into the report rather than
// propagated — the job row is always finalized, per spec §7's top-level
// error handling policy.
func (jr *JobRunner) Run(jc *jobrt.Context, callbackURL string) {
	if jr.Lock != nil {
		acquired, err := jr.Lock.Acquire(context.Background(), jc.JobToken)
		if err != nil {
			jr.Log.Warn("job lock acquire failed, proceeding without exclusivity", "token", jc.JobToken, "error", err)
		} else if !acquired {
			jr.Log.Info("another worker already holds this job's lock; skipping", "token", jc.JobToken)
			return
		} else {
			defer jr.Lock.Release(context.Background(), jc.JobToken)
		}
	}

	if jr.Live != nil {
		jr.Live.Register(jc.JobToken, jc)
		defer jr.Live.Unregister(jc.JobToken)
	}

	if jr.Notifier != nil {
		watchCtx, cancelWatch := context.WithCancel(jc.Ctx())
		defer cancelWatch()
		go jr.Notifier.WatchReport(watchCtx, jc.JobToken, jc.Report, jr.ProcessInterval)
	}

	defer func() {
		if r := recover(); r != nil {
			jc.Report.MarkFailed(fmt.Sprintf("job runner panic: %v", r))
			jr.finalize(jc, callbackURL)
		}
	}()

	jc.Report.SetProgress(jobproc.Progress{Status: jobproc.ProgressRunning})

	all, err := jr.Collector.Collect(jc)
	if err != nil {
		jc.Report.MarkFailed(fmt.Sprintf("job collector failed: %s", err))
		jr.finalize(jc, callbackURL)
		return
	}

	var queued, completed []*jobproc.Record
	for _, rec := range all {
		if rec.Completed || rec.Status.IsTerminal() {
			completed = append(completed, rec)
		} else {
			queued = append(queued, rec)
		}
	}
	for _, rec := range completed {
		jc.Report.SetRecord(*rec)
	}

	sem := semaphore.NewWeighted(jr.Concurrency)
	var mu sync.Mutex
	processing := map[string]*recordTask{}

	launch := func(rec *jobproc.Record) {
		task := &recordTask{rec: rec, done: make(chan struct{})}
		mu.Lock()
		processing[rec.ID] = task
		mu.Unlock()
		go func() {
			defer close(task.done)
			defer sem.Release(1)
			jr.RecordRunner.Run(jc, rec)
		}()
	}

	for len(queued) > 0 || len(processing) > 0 {
		if jc.Canceled() {
			break
		}

		mu.Lock()
		for id, task := range processing {
			select {
			case <-task.done:
				delete(processing, id)
				completed = append(completed, task.rec)
			default:
			}
		}
		mu.Unlock()

		for len(queued) > 0 && sem.TryAcquire(1) {
			rec := queued[0]
			queued = queued[1:]
			launch(rec)
		}

		time.Sleep(jr.ProcessInterval)
	}

	// Drain any tasks still in flight (including ones left running by a
	// cancellation break above) before computing the final tally.
	mu.Lock()
	stragglers := make([]*recordTask, 0, len(processing))
	for _, task := range processing {
		stragglers = append(stragglers, task)
	}
	mu.Unlock()
	for _, task := range stragglers {
		<-task.done
		completed = append(completed, task.rec)
	}

	nSuccess, nFail := 0, 0
	for _, rec := range completed {
		if rec.Status == jobproc.StatusComplete {
			nSuccess++
		} else {
			nFail++
		}
	}
	jc.Report.AppendLog(fmt.Sprintf("Processed %d record(s) (%d successful, %d failed).", len(completed), nSuccess, nFail))
	jc.Report.SetProgress(jobproc.Progress{Status: jobproc.ProgressCompleted, Numeric: 100})
	if nFail > 0 {
		jc.Report.MarkFailed("")
	}

	jr.finalize(jc, callbackURL)
}

// finalize computes the snapshot report, writes it and the job's terminal
// status to the database, and fires the completion callback if configured.
// This always runs, even when the job collector or main loop failed.
func (jr *JobRunner) finalize(jc *jobrt.Context, callbackURL string) {
	report := jc.Report.Finalize()
	now := time.Now()
	blob, err := json.Marshal(report)
	if err != nil {
		jr.Log.Error("failed to marshal final report", "token", jc.JobToken, "error", err)
		blob = []byte(`{}`)
	}

	status := jobproc.JobCompleted
	if jc.Canceled() {
		status = jobproc.JobAborted
	}

	if err := jr.Jobs.UpdateFields(context.Background(), jc.JobToken, map[string]any{
		"status":         status,
		"success":        report.Data.Success,
		"datetime_ended": &now,
		"report":         datatypes.JSON(blob),
	}); err != nil {
		jr.Log.Error("failed to finalize job row", "token", jc.JobToken, "error", err)
	}

	if jr.Notifier != nil {
		jr.Notifier.Publish(context.Background(), jc.JobToken, report.Progress)
	}

	if callbackURL != "" {
		jr.invokeCallback(callbackURL, report)
	}
}

// invokeCallback best-effort delivers the final report to a caller-supplied
// callback URL. Delivery failure is logged, never retried, and never
// affects the already-finalized job row.
func (jr *JobRunner) invokeCallback(url string, report *jobproc.Report) {
	blob, err := json.Marshal(report)
	if err != nil {
		jr.Log.Warn("failed to marshal callback payload", "url", url, "error", err)
		return
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(blob))
	if err != nil {
		jr.Log.Warn("failed to build callback request", "url", url, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := jr.CallbackClient.Do(req)
	if err != nil {
		jr.Log.Warn("callback delivery failed", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()
}
