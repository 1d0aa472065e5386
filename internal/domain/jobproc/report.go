package jobproc

import (
	"encoding/json"
	"sync"
)

// Progress is the lightweight, frequently-overwritten status summary a
// caller polling GET /report mostly cares about.
type Progress struct {
	Status  ProgressStatus `json:"status"`
	Verbose string         `json:"verbose,omitempty"`
	Numeric int            `json:"numeric"`
}

// JobResult is the structured outcome payload for a completed (or
// in-progress) job: whether every record finished COMPLETE, any
// orchestrator-level issues, and each record's current view.
type JobResult struct {
	Success bool              `json:"success"`
	Issues  []string          `json:"issues,omitempty"`
	Records map[string]Record `json:"records"`
}

// Report is the shared, lock-protected tree describing a job's (or a
// downstream stage call's) live state. The core orchestrator is the only
// writer; callers only ever see a push()ed snapshot.
type Report struct {
	mu sync.RWMutex

	Host     string          `json:"host,omitempty"`
	Token    string          `json:"token"`
	Args     map[string]any  `json:"args,omitempty"`
	Progress Progress        `json:"progress"`
	Log      []string        `json:"log,omitempty"`
	Data     JobResult       `json:"data"`
	Children map[string]json.RawMessage `json:"children,omitempty"`
}

// NewReport builds an empty Report ready for in-process mutation.
func NewReport(token string) *Report {
	return &Report{
		Token:    token,
		Progress: Progress{Status: ProgressQueued},
		Data:     JobResult{Records: map[string]Record{}},
		Children: map[string]json.RawMessage{},
	}
}

// push is the single synchronization point through which every mutation of
// a Report must flow, matching the spec's "push() writes are serialized"
// ordering guarantee. fn runs under the write lock.
func (r *Report) push(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// AppendLog adds one line to the job log, used both for adapter-error
// propagation ("Running stage '...' for record '...' caused an error: ...")
// and for Job Runner summary lines.
func (r *Report) AppendLog(line string) {
	r.push(func() {
		r.Log = append(r.Log, line)
	})
}

// SetProgress overwrites the progress summary.
func (r *Report) SetProgress(p Progress) {
	r.push(func() {
		r.Progress = p
	})
}

// SetRecord writes (or overwrites) one record's current view.
func (r *Report) SetRecord(rec Record) {
	r.push(func() {
		if r.Data.Records == nil {
			r.Data.Records = map[string]Record{}
		}
		r.Data.Records[rec.ID] = rec
	})
}

// SetChild registers a raw child (stage-call) report blob keyed by log id.
func (r *Report) SetChild(logID string, blob json.RawMessage) {
	r.push(func() {
		if r.Children == nil {
			r.Children = map[string]json.RawMessage{}
		}
		r.Children[logID] = blob
	})
}

// MarkFailed forces Data.Success to false and optionally appends an issue,
// used by the Job Runner's top-level error handling when an exception
// escapes the main run (spec §7's "fatal orchestrator errors" path).
func (r *Report) MarkFailed(issue string) {
	r.push(func() {
		r.Data.Success = false
		if issue != "" {
			r.Data.Issues = append(r.Data.Issues, issue)
		}
	})
}

// Finalize computes Data.Success/Issues from the current record set and
// returns a snapshot taken under the lock. Only Log is copied; Data
// (including its Records map) and Children are shared with the live Report.
func (r *Report) Finalize() *Report {
	var snap Report
	r.push(func() {
		success := true
		var issues []string
		for id, rec := range r.Data.Records {
			if rec.Status != StatusComplete {
				success = false
				issues = append(issues, id+": "+string(rec.Status))
			}
		}
		r.Data.Success = success
		r.Data.Issues = issues
		snap = Report{
			Host:     r.Host,
			Token:    r.Token,
			Args:     r.Args,
			Progress: r.Progress,
			Log:      append([]string(nil), r.Log...),
			Data:     r.Data,
			Children: r.Children,
		}
	})
	return &snap
}

// Snapshot returns a read-locked shallow copy suitable for JSON marshaling
// (e.g. for GET /report), without recomputing Success/Issues.
func (r *Report) Snapshot() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Report{
		Host:     r.Host,
		Token:    r.Token,
		Args:     r.Args,
		Progress: r.Progress,
		Log:      append([]string(nil), r.Log...),
		Data:     r.Data,
		Children: r.Children,
	}
}

// reportView mirrors Report's exported fields without its mutex or
// MarshalJSON method, so MarshalJSON below can serialize a snapshot without
// recursing into itself.
type reportView struct {
	Host     string                     `json:"host,omitempty"`
	Token    string                     `json:"token"`
	Args     map[string]any             `json:"args,omitempty"`
	Progress Progress                   `json:"progress"`
	Log      []string                   `json:"log,omitempty"`
	Data     JobResult                  `json:"data"`
	Children map[string]json.RawMessage `json:"children,omitempty"`
}

// MarshalJSON lets a *Report serialize directly (e.g. stored into
// jobs.report) by delegating to an unlocked snapshot.
func (r *Report) MarshalJSON() ([]byte, error) {
	s := r.Snapshot()
	return json.Marshal(reportView{
		Host:     s.Host,
		Token:    s.Token,
		Args:     s.Args,
		Progress: s.Progress,
		Log:      s.Log,
		Data:     s.Data,
		Children: s.Children,
	})
}
