package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/chord/internal/ir"
)

func TestQueryCompile(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no filter",
			query:   Query{},
			wantSQL: `SELECT ` + runColumns + ` FROM runs ORDER BY seq ASC, id COLLATE BINARY ASC`,
		},
		{
			name:     "equals",
			query:    Query{Filter: Equals{Field: "status", Value: "error"}},
			wantSQL:  `SELECT ` + runColumns + ` FROM runs WHERE status = ? ORDER BY seq ASC, id COLLATE BINARY ASC`,
			wantArgs: []any{"error"},
		},
		{
			name:     "and with limit",
			query:    Query{Filter: ByTarget(ir.RunView, "greet"), Limit: 3},
			wantSQL:  `SELECT ` + runColumns + ` FROM (SELECT ` + runColumns + ` FROM runs WHERE kind = ? AND target = ? ORDER BY seq DESC, id COLLATE BINARY DESC LIMIT ?) ORDER BY seq ASC, id COLLATE BINARY ASC`,
			wantArgs: []any{"view", "greet", 3},
		},
		{
			name:    "empty and",
			query:   Query{Filter: And{}},
			wantSQL: `SELECT ` + runColumns + ` FROM runs ORDER BY seq ASC, id COLLATE BINARY ASC`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.query.Compile()
			if err != nil {
				t.Fatalf("Compile() failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("Compile() sql\n got: %s\nwant: %s", sql, tt.wantSQL)
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("Compile() args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryCompile_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		filter  Predicate
		wantErr string
	}{
		{"unknown column", Equals{Field: "result", Value: "x"}, `cannot filter on "result"`},
		{"injection", Equals{Field: "status; DROP TABLE runs", Value: "x"}, "cannot filter on"},
		{"value type", Equals{Field: "seq", Value: 1.5}, "unsupported value type float64"},
		{"nested", And{Predicates: []Predicate{Equals{Field: "kind", Value: "view"}, Equals{Field: "bogus", Value: "x"}}}, `"bogus"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Query{Filter: tt.filter}.Compile()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Compile() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestQueryRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	failed := createTestRun(t, "r3", 3, ir.RunView, "missing", ir.Null{})
	failed.Status = ir.RunStatusError
	failed.Error = "VIEW_NOT_FOUND: view not found: missing (target=missing)"
	for _, rec := range []ir.RunRecord{
		createTestRun(t, "r1", 1, ir.RunView, "greet", ir.Int(1)),
		createTestRun(t, "r2", 2, ir.RunFlow, "release", ir.Int(2)),
		failed,
		createTestRun(t, "r4", 4, ir.RunView, "greet", ir.Int(4)),
	} {
		if err := s.WriteRun(ctx, rec); err != nil {
			t.Fatalf("WriteRun(%s) failed: %v", rec.ID, err)
		}
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"by status", Query{Filter: Equals{Field: "status", Value: ir.RunStatusError}}, []string{"r3"}},
		{"by kind", Query{Filter: Equals{Field: "kind", Value: "view"}}, []string{"r1", "r3", "r4"}},
		{"by seq", Query{Filter: Equals{Field: "seq", Value: int64(2)}}, []string{"r2"}},
		{"latest of kind", Query{Filter: Equals{Field: "kind", Value: "view"}, Limit: 2}, []string{"r3", "r4"}},
		{"no match", Query{Filter: ByTarget(ir.RunTask, "greet")}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryRuns(ctx, tt.query)
			if err != nil {
				t.Fatalf("QueryRuns() failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, runIDs(got)); diff != "" {
				t.Errorf("QueryRuns() (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := s.QueryRuns(ctx, Query{Filter: Equals{Field: "result", Value: "x"}}); err == nil {
		t.Error("QueryRuns() with unknown column succeeded, want error")
	}
}
