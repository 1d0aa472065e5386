// Package notify publishes job/record progress to Redis pub/sub, additive
// to the durable GET /report surface (spec §4.13): a caller that wants to
// watch a job live subscribes to its channel instead of polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
)

const channelPrefix = "job-processor:progress:"

// Notifier publishes report snapshots for one job token at a time to its
// own Redis channel, mirroring the donor's redis-backed SSE bus.
type Notifier struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewNotifier(log *logger.Logger, rdb *goredis.Client) *Notifier {
	return &Notifier{log: log.With("service", "ProgressNotifier"), rdb: rdb}
}

// NewNotifierFromAddr dials Redis using REDIS_ADDR (falling back to addr)
// and verifies connectivity with a ping, the same construction idiom the
// donor's redis SSE bus uses.
func NewNotifierFromAddr(log *logger.Logger, addr string) (*Notifier, error) {
	if a := strings.TrimSpace(os.Getenv("REDIS_ADDR")); a != "" {
		addr = a
	}
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewNotifier(log, rdb), nil
}

// Close releases the underlying Redis client, if this Notifier dialed one.
func (n *Notifier) Close() error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Close()
}

func channel(token string) string { return channelPrefix + token }

// Publish fires a best-effort progress update for a job token; delivery
// failure is logged, never returned, since GET /report remains the
// authoritative source of truth.
func (n *Notifier) Publish(ctx context.Context, token string, progress jobproc.Progress) {
	if n == nil || n.rdb == nil {
		return
	}
	raw, err := json.Marshal(progress)
	if err != nil {
		n.log.Warn("failed to marshal progress notification", "token", token, "error", err)
		return
	}
	if err := n.rdb.Publish(ctx, channel(token), raw).Err(); err != nil {
		n.log.Warn("failed to publish progress notification", "token", token, "error", err)
	}
}

// Subscribe streams progress updates for one job token until ctx is
// canceled or the channel closes.
func (n *Notifier) Subscribe(ctx context.Context, token string, onUpdate func(jobproc.Progress)) error {
	if n == nil || n.rdb == nil {
		return fmt.Errorf("progress notifier not initialized")
	}
	sub := n.rdb.Subscribe(ctx, channel(token))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to progress channel: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var p jobproc.Progress
				if err := json.Unmarshal([]byte(m.Payload), &p); err != nil {
					n.log.Warn("bad progress notification payload", "token", token, "error", err)
					continue
				}
				onUpdate(p)
			}
		}
	}()
	return nil
}

// WatchReport periodically republishes a live Report's progress until ctx
// is canceled, giving a Job Runner a single call to wire into its loop
// instead of hand-publishing at every state change.
func (n *Notifier) WatchReport(ctx context.Context, token string, report *jobproc.Report, interval time.Duration) {
	if n == nil || n.rdb == nil || report == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Publish(ctx, token, report.Snapshot().Progress)
		}
	}
}
