package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/chord/internal/ir"
)

// Predicate filters rows of the run log.
//
// This is a sealed interface: only Equals and And implement it, so the
// compiler below can switch over every case.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose Field equals Value.
type Equals struct {
	Field string
	Value any // string or int64
}

func (Equals) predicateNode() {}

// And matches rows that satisfy every predicate. An empty And matches
// every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Query selects runs from the log.
//
// Results are always ordered seq ASC, id ASC COLLATE BINARY. With Limit > 0
// only the latest Limit matching runs are returned, still oldest first.
type Query struct {
	Filter Predicate // nil matches every run
	Limit  int
}

// filterable lists the run columns a Predicate may name.
var filterable = []string{"id", "seq", "kind", "target", "ir_hash", "status"}

// ByTarget matches the runs of one kind and target.
func ByTarget(kind ir.RunKind, target string) Predicate {
	return And{Predicates: []Predicate{
		Equals{Field: "kind", Value: string(kind)},
		Equals{Field: "target", Value: target},
	}}
}

// Compile turns q into parameterized SQL over the runs table. Values are
// never interpolated.
func (q Query) Compile() (string, []any, error) {
	where, args, err := compilePredicate(q.Filter)
	if err != nil {
		return "", nil, err
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if where != "" {
		query += ` WHERE ` + where
	}
	if q.Limit <= 0 {
		return query + ` ORDER BY seq ASC, id COLLATE BINARY ASC`, args, nil
	}
	query = `SELECT ` + runColumns + ` FROM (` + query +
		` ORDER BY seq DESC, id COLLATE BINARY DESC LIMIT ?) ORDER BY seq ASC, id COLLATE BINARY ASC`
	return query, append(args, q.Limit), nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, nil
	case Equals:
		if !slices.Contains(filterable, pred.Field) {
			return "", nil, fmt.Errorf("cannot filter on %q: must be one of %v", pred.Field, filterable)
		}
		switch pred.Value.(type) {
		case string, int64:
		default:
			return "", nil, fmt.Errorf("filter %s: unsupported value type %T", pred.Field, pred.Value)
		}
		return pred.Field + " = ?", []any{pred.Value}, nil
	case And:
		var parts []string
		var args []any
		for _, sub := range pred.Predicates {
			sql, subArgs, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			if sql == "" {
				continue
			}
			parts = append(parts, sql)
			args = append(args, subArgs...)
		}
		return strings.Join(parts, " AND "), args, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// QueryRuns returns the runs selected by q.
func (s *Store) QueryRuns(ctx context.Context, q Query) ([]ir.RunRecord, error) {
	query, args, err := q.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile run query: %w", err)
	}
	return s.queryRuns(ctx, query, args...)
}
