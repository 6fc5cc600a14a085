package audit

import "context"

// Trace identifies the request a journal entry came from.
type Trace struct {
	ID string
	IP string
}

type traceKey struct{}

// WithTrace returns ctx carrying tr.
func WithTrace(ctx context.Context, tr Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, tr)
}

// TraceFrom returns the trace in ctx. Background work gets a "system" trace.
func TraceFrom(ctx context.Context) Trace {
	if ctx != nil {
		if tr, ok := ctx.Value(traceKey{}).(Trace); ok {
			return tr
		}
	}
	return Trace{ID: "system"}
}
