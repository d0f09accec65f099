package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/clusteval/internal/object"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Seq, event.Key(), event.Repo, event.Path)
		}
	}

	return buf.String()
}

// EvaluateTraceAssertions checks the trace-only assertions against trace
// and ignores the rest.
func EvaluateTraceAssertions(trace []TraceEvent, assertions []Assertion) []error {
	var errs []error
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, a)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// evaluateAssertions checks every assertion against the final trace and
// the repositories of the run.
func (r *runner) evaluateAssertions(assertions []Assertion) []error {
	trace := r.result.Trace

	var errs []error
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, a)
		case AssertRegistered:
			err = r.assertRegistered(a)
		case AssertFind:
			err = r.assertFind(a)
		case AssertClassRegistered:
			err = r.assertClassRegistered(a)
		case AssertMissing:
			err = r.assertMissing(a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// assertTraceCount checks that exactly Count lines of the given type and
// op were recorded.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == a.Trace && event.Op == a.Op {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s lines with op %s", a.Count, a.Trace, a.Op),
			Actual:   fmt.Sprintf("%d lines", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that lines matching a.Lines appear in that order.
// Lines don't need to be consecutive; each match must come after the
// previous one.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, want := range a.Lines {
		found := false
		for pos < len(trace) {
			key := trace[pos].Key()
			pos++
			if key == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("lines in order: %v", a.Lines),
				Actual:   fmt.Sprintf("%s not found after the preceding lines", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

func (r *runner) assertRegistered(a Assertion) error {
	repo := r.repo(a.Repo)
	obj := repo.ObjectAt(r.abs(repo, a.Path))

	if a.Absent {
		if obj != nil {
			return &AssertionError{
				Type:     AssertRegistered,
				Expected: fmt.Sprintf("nothing registered at %s", a.Path),
				Actual:   fmt.Sprint(obj),
			}
		}
		return nil
	}

	if obj == nil {
		return &AssertionError{
			Type:     AssertRegistered,
			Expected: fmt.Sprintf("an object at %s", a.Path),
			Actual:   "nothing registered",
		}
	}
	if a.Kind != "" && obj.Kind().Name() != a.Kind {
		return &AssertionError{
			Type:     AssertRegistered,
			Expected: fmt.Sprintf("kind %s at %s", a.Kind, a.Path),
			Actual:   "kind " + obj.Kind().Name(),
		}
	}
	if a.ChangeDate != 0 && int64(obj.ChangeDate()) != a.ChangeDate {
		return &AssertionError{
			Type:     AssertRegistered,
			Expected: fmt.Sprintf("change date %d at %s", a.ChangeDate, a.Path),
			Actual:   fmt.Sprintf("change date %d", obj.ChangeDate()),
		}
	}
	return nil
}

func (r *runner) assertFind(a Assertion) error {
	kind, _ := object.LookupKind(a.Kind)
	obj := r.repo(a.Repo).Find(kind, a.Name)

	switch {
	case a.Absent && obj != nil:
		return &AssertionError{
			Type:     AssertFind,
			Expected: fmt.Sprintf("no %s named %s", a.Kind, a.Name),
			Actual:   fmt.Sprint(obj),
		}
	case !a.Absent && obj == nil:
		return &AssertionError{
			Type:     AssertFind,
			Expected: fmt.Sprintf("a %s named %s", a.Kind, a.Name),
			Actual:   "not found",
		}
	case obj != nil && a.Path != "" && rel(obj.Path()) != a.Path:
		return &AssertionError{
			Type:     AssertFind,
			Expected: fmt.Sprintf("%s %s at %s", a.Kind, a.Name, a.Path),
			Actual:   rel(obj.Path()),
		}
	}
	return nil
}

func (r *runner) assertClassRegistered(a Assertion) error {
	kind, _ := object.LookupKind(a.Kind)
	got := r.repo(a.Repo).ClassRegistered(kind, a.Class)
	if got == a.Absent {
		return &AssertionError{
			Type:     AssertClassRegistered,
			Expected: fmt.Sprintf("class %s registered: %v", a.Class, !a.Absent),
			Actual:   fmt.Sprintf("registered: %v", got),
		}
	}
	return nil
}

func (r *runner) assertMissing(a Assertion) error {
	var got []string
	for _, m := range r.repo(a.Repo).MissingDependencies() {
		if !slices.Contains(got, m.Library) {
			got = append(got, m.Library)
		}
	}
	slices.Sort(got)

	want := slices.Clone(a.Libraries)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertMissing,
			Expected: fmt.Sprintf("missing libraries %v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}
