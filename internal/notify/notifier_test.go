package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
)

func newTestNotifier(t *testing.T) (*Notifier, *miniredis.Miniredis) {
	t.Helper()
	t.Setenv("REDIS_ADDR", "")
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log, err := logger.New("test")
	require.NoError(t, err)

	n, err := NewNotifierFromAddr(log, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	return n, mr
}

func TestNotifier_PublishThenSubscribeDelivers(t *testing.T) {
	n, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan jobproc.Progress, 1)
	err := n.Subscribe(ctx, "tok-1", func(p jobproc.Progress) {
		received <- p
	})
	require.NoError(t, err)

	n.Publish(ctx, "tok-1", jobproc.Progress{Status: jobproc.ProgressRunning})

	select {
	case p := <-received:
		require.Equal(t, jobproc.ProgressRunning, p.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress notification")
	}
}

func TestNotifier_WatchReportRepublishesOnInterval(t *testing.T) {
	n, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report := jobproc.NewReport("tok-2")

	received := make(chan jobproc.Progress, 4)
	err := n.Subscribe(ctx, "tok-2", func(p jobproc.Progress) {
		received <- p
	})
	require.NoError(t, err)

	go n.WatchReport(ctx, "tok-2", report, 20*time.Millisecond)

	select {
	case p := <-received:
		require.Equal(t, jobproc.ProgressQueued, p.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watched report update")
	}
}

func TestNotifier_PublishWithoutSubscriberNeverErrors(t *testing.T) {
	n, _ := newTestNotifier(t)
	ctx := context.Background()
	n.Publish(ctx, "tok-no-subscriber", jobproc.Progress{Status: jobproc.ProgressCompleted})
}
