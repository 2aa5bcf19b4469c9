package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/store"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Kind: ir.RunView, Target: "hello", Status: ir.RunStatusOK},
		{Seq: 2, Kind: ir.RunTask, Target: "greet", Status: ir.RunStatusNoViews},
		{Seq: 3, Kind: ir.RunView, Target: "hello", Status: ir.RunStatusError},
		{Seq: 4, Kind: ir.RunFlow, Target: "release", Status: ir.RunStatusOK},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Target: "task:greet"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Target: "view:hello", Status: ir.RunStatusError}))

	err := assertTraceContains(trace, Assertion{Target: "flow:release", Status: ir.RunStatusError})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "flow:release with status error", ae.Expected)
	assert.Contains(t, err.Error(), "[2] task:greet no_views")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Targets: []string{"view:hello", "task:greet", "flow:release"}}))
	// Only the first run of a target counts.
	assert.NoError(t, assertTraceOrder(trace, Assertion{Targets: []string{"view:hello", "flow:release"}}))

	err := assertTraceOrder(trace, Assertion{Targets: []string{"flow:release", "task:greet"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow:release (pos 4) should be before task:greet (pos 2)")

	err = assertTraceOrder(trace, Assertion{Targets: []string{"view:hello", "view:gone"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing target: view:gone")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Target: "view:hello", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Target: "view:other", Count: 0}))

	err := assertTraceCount(trace, Assertion{Target: "flow:release", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: 1 runs")
}

func newAssertionStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for i, target := range []string{"hello", "greet"} {
		result := ir.Object{{"n", ir.Int(int64(i))}}
		hash, err := ir.ResultHash(result)
		require.NoError(t, err)
		require.NoError(t, st.WriteRun(context.Background(), ir.RunRecord{
			ID:         "run-" + target,
			Seq:        int64(i + 1),
			Kind:       ir.RunView,
			Target:     target,
			Status:     ir.RunStatusOK,
			Result:     result,
			ResultHash: hash,
		}))
	}
	return st
}

func TestAssertFinalState(t *testing.T) {
	st := newAssertionStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{
			name: "match",
			a: Assertion{Table: "runs", Where: map[string]any{"target": "greet"},
				Expect: map[string]any{"seq": 2, "status": "ok", "kind": "view"}},
		},
		{
			name: "wrong value",
			a: Assertion{Table: "runs", Where: map[string]any{"target": "greet"},
				Expect: map[string]any{"seq": 1}},
			wantErr: `column "seq" = 1`,
		},
		{
			name: "unknown column",
			a: Assertion{Table: "runs", Where: map[string]any{"target": "greet"},
				Expect: map[string]any{"missing": "x"}},
			wantErr: `column "missing" to exist`,
		},
		{
			name: "no row",
			a: Assertion{Table: "runs", Where: map[string]any{"target": "nobody"},
				Expect: map[string]any{"seq": 1}},
			wantErr: "row not found",
		},
		{
			name: "ambiguous",
			a: Assertion{Table: "runs", Where: map[string]any{"kind": "view"},
				Expect: map[string]any{"status": "ok"}},
			wantErr: "multiple rows matched",
		},
		{
			name: "bad table",
			a: Assertion{Table: "runs; DROP TABLE runs", Expect: map[string]any{"seq": 1}},
			wantErr: "invalid table name",
		},
		{
			name: "bad column",
			a: Assertion{Table: "runs", Where: map[string]any{"1=1 OR target": "x"},
				Expect: map[string]any{"seq": 1}},
			wantErr: "invalid column name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertRunLogIntact(t *testing.T) {
	st := newAssertionStore(t)
	ctx := context.Background()

	require.NoError(t, assertRunLogIntact(ctx, st, nil))

	_, err := st.DB().ExecContext(ctx, `UPDATE runs SET result = '"edited"' WHERE id = 'run-greet'`)
	require.NoError(t, err)

	err = assertRunLogIntact(ctx, st, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatched runs: [run-greet]")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Target: "view:hello"},
		{Type: AssertTraceCount, Target: "view:hello", Count: 5},
		{Type: AssertFinalState, Table: "runs", Expect: map[string]any{"seq": 1}},
		{Type: "vibes"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "5 runs of view:hello")
	assert.Contains(t, errs[1], "final_state requires a run log")
	assert.Contains(t, errs[2], `unknown assertion type "vibes"`)
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"string", "ok", "ok", true},
		{"bytes", "ok", []byte("ok"), true},
		{"int", 2, int64(2), true},
		{"int mismatch", 2, int64(3), false},
		{"bool from int", true, int64(1), true},
		{"bool false", false, int64(0), true},
		{"float", 1.5, 1.5, true},
		{"nil pair", nil, nil, true},
		{"nil one side", nil, "x", false},
		{"type mismatch", "2", int64(2), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}
