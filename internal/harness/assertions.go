package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
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
			fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, event.Type, event.Name, event.Fields)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertRequestCount:
			err = assertRequestCount(result, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertTraceContains checks for a ledger event with the given name whose
// fields include assertion.Fields.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == EntryEvent && event.Name == assertion.Event && matchFields(event.Fields, assertion.Fields) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s with fields %v", assertion.Event, assertion.Fields),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events first appear in the given order.
// Other events may appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EntryEvent {
			continue
		}
		if _, seen := positions[event.Name]; !seen {
			positions[event.Name] = i + 1
		}
	}

	for _, name := range assertion.Events {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", assertion.Events),
				Actual:   fmt.Sprintf("missing event: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev := assertion.Events[i-1]
		curr := assertion.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the event appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EntryEvent && event.Name == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

func assertRequestCount(result *Result, assertion Assertion) error {
	if result.Requests != assertion.Count {
		return &AssertionError{
			Type:     AssertRequestCount,
			Expected: fmt.Sprintf("%d remote requests", assertion.Count),
			Actual:   fmt.Sprintf("%d remote requests", result.Requests),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState compares expected keys against the flattened state.
// An expected null asserts the key is absent.
func assertFinalState(state map[string]any, assertion Assertion) error {
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		actual, exists := state[key]

		if expected == nil {
			if exists {
				return &AssertionError{
					Type:     AssertFinalState,
					Expected: fmt.Sprintf("%q to be absent", key),
					Actual:   fmt.Sprintf("%q = %v", key, actual),
				}
			}
			continue
		}

		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%q = %v", key, expected),
				Actual:   fmt.Sprintf("%q not present", key),
			}
		}

		if !valuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("%q = %v (type %T)", key, actual, actual),
			}
		}
	}

	return nil
}

// matchFields reports whether actual contains every key of expected with
// an equal value.
func matchFields(actual, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !valuesEqual(want, got) {
			return false
		}
	}
	return true
}

// valuesEqual compares YAML-parsed expectations with Go values; numbers
// compare by integer value.
func valuesEqual(expected, actual any) bool {
	if e, ok := asInt(expected); ok {
		a, ok := asInt(actual)
		return ok && a == e
	}
	return reflect.DeepEqual(expected, actual)
}
