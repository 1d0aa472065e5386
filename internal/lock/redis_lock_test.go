package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dcm-services/job-processor/internal/pkg/logger"
)

func newTestLock(t *testing.T, ttl time.Duration) (*JobLock, *miniredis.Miniredis) {
	t.Helper()
	t.Setenv("REDIS_ADDR", "")
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log, err := logger.New("test")
	require.NoError(t, err)

	jl, err := NewJobLock(log, mr.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jl.Close() })

	return jl, mr
}

func TestJobLock_AcquireThenBlocksSecondHolder(t *testing.T) {
	jl, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	acquired, err := jl.Acquire(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = jl.Acquire(ctx, "tok-1")
	require.NoError(t, err)
	require.False(t, acquired)
}

func TestJobLock_ReleaseFreesTheLock(t *testing.T) {
	jl, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	acquired, err := jl.Acquire(ctx, "tok-2")
	require.NoError(t, err)
	require.True(t, acquired)

	jl.Release(ctx, "tok-2")

	acquired, err = jl.Acquire(ctx, "tok-2")
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestJobLock_RefreshExtendsExpiredOnlyIfHeld(t *testing.T) {
	jl, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	err := jl.Refresh(ctx, "tok-never-held")
	require.Error(t, err)

	_, err = jl.Acquire(ctx, "tok-3")
	require.NoError(t, err)
	require.NoError(t, jl.Refresh(ctx, "tok-3"))
}

func TestJobLock_DifferentTokensDoNotCollide(t *testing.T) {
	jl, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	a, err := jl.Acquire(ctx, "tok-a")
	require.NoError(t, err)
	require.True(t, a)

	b, err := jl.Acquire(ctx, "tok-b")
	require.NoError(t, err)
	require.True(t, b)
}
