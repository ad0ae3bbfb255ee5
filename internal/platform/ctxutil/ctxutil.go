package ctxutil

import "context"

type traceDataKey struct{}

// TraceData carries correlation identifiers threaded through a single
// video's indexing run for logging purposes.
type TraceData struct {
	VideoID    int64
	FolderPath string
	JobID      string
}

func WithTraceData(ctx context.Context, td TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) (TraceData, bool) {
	td, ok := ctx.Value(traceDataKey{}).(TraceData)
	return td, ok
}

// Default returns ctx unchanged, or a fresh background context when ctx is
// nil. Several callers receive an optional context from the CLI/GUI shell.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
