// Package strategy generates the SQL scalar expressions that pull (name,
// value) pairs out of a JSON blob, one prioritized heuristic per real-world
// layout. Strategies are combined, never substituted outright: the final
// expression for a slot is a COALESCE fallback chain, evaluated per row, so
// differing JSON shapes in different rows of the same column are all handled
// by one generated expression without per-row branching.
package strategy

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/unnest/internal/shape"
)

// Context carries the per-invocation inputs every strategy needs.
type Context struct {
	// JSONColumn is the SQL expression for the jsonb column, used verbatim
	// in generated expressions (never in aliases).
	JSONColumn string

	NameKey  string
	ValueKey string

	// NameSynonyms and ValueSynonyms tolerate inconsistent producer schemas
	// within the same array (e.g. "answer" vs "value_text").
	NameSynonyms  []string
	ValueSynonyms []string

	// Patterns maps a shape name (matched against ValueKey, e.g. "email")
	// to a POSIX regex recognizing values of that shape.
	Patterns map[string]string
}

// Strategy is one heuristic for extracting a scalar from a JSON blob.
// NameExpr and ValueExpr return a SQL expression for the given 1-based slot,
// or "" when the strategy has nothing to contribute for that slot.
type Strategy interface {
	Name() string
	Priority() int // lower = tried first
	Applicable(kind shape.Kind) bool
	NameExpr(ctx *Context, slot int) string
	ValueExpr(ctx *Context, slot int) string
}

// quoteLiteral renders a string as a SQL literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// fieldAccess renders obj->>'key' text extraction.
func fieldAccess(obj, key string) string {
	return fmt.Sprintf("%s->>%s", obj, quoteLiteral(key))
}

// objGuard yields the expression itself when it is a JSON object and an
// empty object otherwise, so set-returning functions never error on
// heterogeneous rows.
func objGuard(expr string) string {
	return fmt.Sprintf("CASE WHEN jsonb_typeof(%s) = 'object' THEN %s ELSE '{}'::jsonb END", expr, expr)
}

// arrGuard yields the expression when it is an array, its "list" sub-array
// when producers wrap the array in an envelope object, and an empty array
// otherwise.
func arrGuard(expr string) string {
	return fmt.Sprintf(
		"CASE WHEN jsonb_typeof(%s) = 'array' THEN %s WHEN jsonb_typeof(%s->'list') = 'array' THEN %s->'list' ELSE '[]'::jsonb END",
		expr, expr, expr, expr)
}

// nullif treats empty string as "no match" so the next strategy in the chain
// gets a chance. A present-but-empty field is rarely the intended value.
func nullif(expr string) string {
	return fmt.Sprintf("NULLIF(%s, '')", expr)
}

// entryAt returns a scalar subquery selecting the key or value of the i-th
// entry (1-based) of a JSON object, ordered by key name so iteration over
// the unordered object is deterministic.
func entryAt(objExpr string, slot int, wantKey bool) string {
	col := "value"
	if wantKey {
		col = "key"
	}
	return fmt.Sprintf("(SELECT %s FROM jsonb_each_text(%s) ORDER BY key OFFSET %d LIMIT 1)",
		col, objGuard(objExpr), slot-1)
}

// coalesce folds the non-empty expressions into a COALESCE chain. A single
// expression is returned as-is.
func coalesce(exprs ...string) string {
	var kept []string
	for _, e := range exprs {
		if e != "" {
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return kept[0]
	default:
		return "COALESCE(" + strings.Join(kept, ", ") + ")"
	}
}

// dedup returns keys with duplicates removed, preserving order.
func dedup(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var out []string
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
