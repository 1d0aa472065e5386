package adapters

import (
	"context"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
)

// Base embeds Transport and supplies the defaults most stage adapters share:
// success() reads data.success, eval() is a no-op unless overridden. Each
// concrete adapter embeds Base and overrides BuildRequestBody/Eval/Success
// as needed, mirroring the donor's "shared helper defaults, one impl per
// capability" pattern used throughout internal/jobs/orchestrator.
type Base struct {
	*Transport
	stage jobproc.Stage
}

func NewBase(stage jobproc.Stage, cfg Config) Base {
	return Base{Transport: NewTransport(cfg), stage: stage}
}

func (b Base) Stage() jobproc.Stage { return b.stage }

func (b Base) Submit(ctx context.Context, body map[string]any) (string, error) {
	return b.Transport.Submit(ctx, body)
}

func (b Base) Poll(ctx context.Context, token string, hook UpdateHook) (*Report, error) {
	return b.Transport.Poll(ctx, token, hook)
}

func (b Base) Abort(ctx context.Context, token, reason, origin string) error {
	return b.Transport.Abort(ctx, token, reason, origin)
}

// Success is the default capability: most stages report outcome as
// data.success. Validation stages (see validation.go) override this to
// read data.valid instead.
func (b Base) Success(report *Report) bool {
	return boolField(report.Data, "success")
}

func boolField(data map[string]any, key string) bool {
	if data == nil {
		return false
	}
	v, ok := data[key].(bool)
	return ok && v
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	v, _ := data[key].(string)
	return v
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// nestedMap descends one level into a map[string]any-shaped field, returning
// nil when the key is absent or holds something else.
func nestedMap(data map[string]any, key string) map[string]any {
	if data == nil {
		return nil
	}
	v, _ := data[key].(map[string]any)
	return v
}

// nestedStringField walks a chain of map[string]any keys and returns the
// string at the end, or "" if any segment along the way is missing or not a
// map/string. Used to pull archive identifiers out of a nested report.data
// shape, e.g. nestedStringField(data, "details", "deposit", "sip_id").
func nestedStringField(data map[string]any, path ...string) string {
	cur := data
	for i, key := range path {
		if cur == nil {
			return ""
		}
		if i == len(path)-1 {
			return stringField(cur, key)
		}
		cur = nestedMap(cur, key)
	}
	return ""
}

// resumeToken returns the downstream token already recorded for this stage,
// if the record has one (i.e. this stage was submitted in a prior run and
// the job is now resuming it rather than starting fresh).
func resumeToken(rec *jobproc.Record, stage jobproc.Stage) string {
	if rec == nil {
		return ""
	}
	si, ok := rec.Stages[stage]
	if !ok || si == nil {
		return ""
	}
	return si.Token
}
