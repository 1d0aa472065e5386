// Package ctxutil carries request-scoped tracing data through context.Context.
package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies a single inbound HTTP request for logging/tracing correlation.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}
