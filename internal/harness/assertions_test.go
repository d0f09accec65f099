package harness

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clusteval/internal/entity"
	"github.com/roach88/clusteval/internal/repository"
)

func line(typ, op string) TraceEvent {
	return TraceEvent{Type: typ, Op: op}
}

func sampleTrace() []TraceEvent {
	trace := []TraceEvent{
		line(TraceInvocation, OpRemove),
		line(TraceMirror, "unregister"),
		line(TraceNotify, "remove"),
		line(TraceMirror, "unregister"),
		line(TraceNotify, "remove"),
		line(TraceCompletion, OpRemove),
	}
	for i := range trace {
		trace[i].Seq = int64(i + 1)
	}
	return trace
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Trace: TraceNotify, Op: "remove", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Trace: TraceNotify, Op: "replace", Count: 0}))

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Trace: TraceMirror, Op: "unregister", Count: 1})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceCount, ae.Type)
	assert.Equal(t, "2 lines", ae.Actual)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name  string
		lines []string
		ok    bool
	}{
		{"in order", []string{"invocation:remove", "event:remove", "completion:remove"}, true},
		{"repeated lines", []string{"mirror:unregister", "event:remove", "mirror:unregister", "event:remove"}, true},
		{"out of order", []string{"completion:remove", "invocation:remove"}, false},
		{"too many repeats", []string{"event:remove", "event:remove", "event:remove"}, false},
		{"absent", []string{"invocation:remove", "event:move"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Lines: tt.lines})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEvaluateTraceAssertions_IgnoresStateAssertions(t *testing.T) {
	errs := EvaluateTraceAssertions(sampleTrace(), []Assertion{
		{Type: AssertRegistered, Path: "anything"},
		{Type: AssertTraceCount, Trace: TraceNotify, Op: "remove", Count: 1},
		{Type: AssertTraceOrder, Lines: []string{"completion:remove", "invocation:remove"}},
	})
	assert.Len(t, errs, 2)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 event lines with op remove",
		Actual:   "2 lines",
		Trace:    []TraceEvent{{Type: TraceNotify, Seq: 3, Op: "remove", Repo: "main", Path: "a.txt"}},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 1 event lines with op remove")
	assert.Contains(t, msg, "Actual: 2 lines")
	assert.Contains(t, msg, "[3] event:remove main a.txt")
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", errorCode(nil))
	assert.Equal(t, "register_error:replace",
		errorCode(fmt.Errorf("wrapped: %w", &entity.RegisterError{Op: "replace", Path: "/a", Err: errors.New("x")})))
	assert.Equal(t, "unmanaged_kind", errorCode(fmt.Errorf("%w: Clustering", repository.ErrUnmanagedKind)))
	assert.Equal(t, "closed", errorCode(repository.ErrClosed))
	assert.Equal(t, "error", errorCode(errors.New("other")))
}
