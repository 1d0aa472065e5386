package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
)

func TestLiveJobs_RegisterGetUnregister(t *testing.T) {
	live := NewLiveJobs()

	_, ok := live.Get("tok-1")
	require.False(t, ok)

	report := jobproc.NewReport("tok-1")
	jc := jobrt.New(context.Background(), "tok-1", &jobproc.JobConfig{}, jobproc.JobContext{}, report)
	live.Register("tok-1", jc)

	got, ok := live.Get("tok-1")
	require.True(t, ok)
	require.Same(t, jc, got)

	live.Unregister("tok-1")
	_, ok = live.Get("tok-1")
	require.False(t, ok)
}

func TestLiveJobs_DistinctTokensDoNotCollide(t *testing.T) {
	live := NewLiveJobs()

	jc1 := jobrt.New(context.Background(), "a", &jobproc.JobConfig{}, jobproc.JobContext{}, jobproc.NewReport("a"))
	jc2 := jobrt.New(context.Background(), "b", &jobproc.JobConfig{}, jobproc.JobContext{}, jobproc.NewReport("b"))
	live.Register("a", jc1)
	live.Register("b", jc2)

	got1, ok := live.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", got1.JobToken)

	got2, ok := live.Get("b")
	require.True(t, ok)
	require.Equal(t, "b", got2.JobToken)
}
