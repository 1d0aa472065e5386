package orchestrator

import (
	"sync"

	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
)

// LiveJobs is the process-local registry of jobs a worker is currently
// driving: the Abort Hook looks a token up here to find the runtime
// Context whose Abort() fans out to every in-flight stage call. A worker
// runs at most one job to completion at a time (spec §5's worker layer),
// but the registry is a map rather than a single slot so the same process
// can also serve the HTTP surface concurrently with the worker loop.
type LiveJobs struct {
	mu   sync.Mutex
	jobs map[string]*jobrt.Context
}

func NewLiveJobs() *LiveJobs {
	return &LiveJobs{jobs: map[string]*jobrt.Context{}}
}

// Register records a job as currently running. Callers must Unregister
// once the Job Runner returns, successfully or not.
func (l *LiveJobs) Register(token string, jc *jobrt.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs[token] = jc
}

func (l *LiveJobs) Unregister(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.jobs, token)
}

// Get returns the live Context for a token, if this process is currently
// driving it.
func (l *LiveJobs) Get(token string) (*jobrt.Context, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jc, ok := l.jobs[token]
	return jc, ok
}
