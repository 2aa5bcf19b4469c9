package harness

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/chord/internal/store"
)

// validIdentifier matches SQL identifiers (table/column names). Identifiers
// cannot be bound as parameters, so only these are interpolated.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface. The full trace is appended so a
// failure can be debugged from the message alone.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Key(), event.Status)
		}
	}
	return buf.String()
}

// assertTraceContains checks that a run of the target exists, optionally
// with a given status.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Key() == a.Target && (a.Status == "" || event.Status == a.Status) {
			return nil
		}
	}

	expected := a.Target
	if a.Status != "" {
		expected += " with status " + a.Status
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first run of each target appears in the
// given order. Other runs may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		key := event.Key()
		if _, seen := positions[key]; !seen {
			positions[key] = i + 1
		}
	}

	for _, target := range a.Targets {
		if positions[target] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all targets present: %v", a.Targets),
				Actual:   fmt.Sprintf("missing target: %s", target),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Targets); i++ {
		prev, curr := a.Targets[i-1], a.Targets[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("targets in order: %v", a.Targets),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the target ran exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Key() == a.Target {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d runs of %s", a.Count, a.Target),
			Actual:   fmt.Sprintf("%d runs", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState queries one row of a run log table and checks the
// expected columns (subset semantics). The where clause must match exactly
// one row.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", a.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.DB().QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := a.Expect[key]
		got, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q to exist", key),
				Actual:   fmt.Sprintf("columns: %v", columns),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("column %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

// assertRunLogIntact recomputes every stored result hash.
func assertRunLogIntact(ctx context.Context, st *store.Store, trace []TraceEvent) error {
	bad, err := st.VerifyRuns(ctx)
	if err != nil {
		return err
	}
	if len(bad) > 0 {
		ids := make([]string, len(bad))
		for i, m := range bad {
			ids[i] = m.RunID
		}
		return &AssertionError{
			Type:     AssertRunLogIntact,
			Expected: "every result matches its result_hash",
			Actual:   fmt.Sprintf("mismatched runs: %v", ids),
			Trace:    trace,
		}
	}
	return nil
}

// buildWhereClause builds a parameterized WHERE clause with keys in sorted
// order, so the generated SQL is deterministic.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, toSQLValue(where[key]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool, float64:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause describes where conditions for error messages.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares a YAML-decoded expectation with a value scanned
// from SQLite, which returns TEXT as string or []byte and INTEGER as int64.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		got, ok := actual.(string)
		return ok && exp == got
	case int:
		got, ok := actual.(int64)
		return ok && int64(exp) == got
	case int64:
		got, ok := actual.(int64)
		return ok && exp == got
	case bool:
		switch got := actual.(type) {
		case bool:
			return exp == got
		case int64:
			return exp == (got != 0)
		}
		return false
	case float64:
		got, ok := actual.(float64)
		return ok && exp == got
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

// AssertionContext provides run log access for assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState, AssertRunLogIntact:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a run log", i, a.Type)
			} else if a.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx.Store, a)
			} else {
				err = assertRunLogIntact(actx.Ctx, actx.Store, result.Trace)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
