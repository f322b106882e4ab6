// Package rewrite assembles the generated column expressions for each
// template invocation and splices them back into the residual SQL. It never
// touches SQL outside a placeholder span: the blast radius of a rewrite is
// bounded to exactly the templated regions.
package rewrite

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/unnest/internal/shape"
	"github.com/leapstack-labs/unnest/internal/strategy"
	"github.com/leapstack-labs/unnest/internal/template"
)

// Column is one generated output column: a SQL expression and its alias.
type Column struct {
	Expr  string
	Alias string
}

// ColumnSet is the ordered column list generated for one invocation:
// 2*MaxPairs expressions, interleaved name/value per slot, ascending index.
type ColumnSet struct {
	Columns []Column
}

// SanitizeIdentifier rewrites a column expression into a legal alias base:
// any rune illegal in an identifier (e.g. a qualifier dot) becomes an
// underscore. The expression itself is never sanitized.
func SanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// BuildColumnSet generates the aliased expressions for one invocation using
// the probed profile and the strategy chain. Aliases follow the compatibility
// contract <sanitized_json_column>_<key>_<index>, 1-based; the used map keeps
// aliases unique across the whole statement.
func BuildColumnSet(inv *template.Invocation, profile *shape.Profile, chain *strategy.Chain,
	sctx *strategy.Context, used map[string]int) *ColumnSet {

	base := SanitizeIdentifier(inv.JSONColumn)
	cs := &ColumnSet{}

	for slot := 1; slot <= profile.MaxPairs; slot++ {
		nameExpr, valueExpr := chain.Build(profile.Kind, sctx, slot)
		cs.Columns = append(cs.Columns,
			Column{Expr: nameExpr, Alias: uniqueAlias(fmt.Sprintf("%s_%s_%d", base, inv.NameKey, slot), used)},
			Column{Expr: valueExpr, Alias: uniqueAlias(fmt.Sprintf("%s_%s_%d", base, inv.ValueKey, slot), used)},
		)
	}
	return cs
}

// uniqueAlias disambiguates duplicate aliases, which can only arise when the
// same column/key pair is unnested twice in one statement.
func uniqueAlias(alias string, used map[string]int) string {
	n := used[alias]
	used[alias]++
	if n == 0 {
		return alias
	}
	return fmt.Sprintf("%s_%d", alias, n+1)
}

// SQL renders the comma-separated aliased column list. Empty for MaxPairs 0.
func (cs *ColumnSet) SQL() string {
	parts := make([]string, len(cs.Columns))
	for i, c := range cs.Columns {
		parts[i] = fmt.Sprintf("%s AS %s", c.Expr, c.Alias)
	}
	return strings.Join(parts, ", ")
}

// Splice replaces the placeholder with the generated column list. When the
// list is empty the placeholder is removed and the dangling comma it leaves
// behind is cleaned up, so a zero-cardinality invocation keeps the rest of
// the SELECT list valid.
func Splice(residual, placeholder, columns string) string {
	idx := strings.Index(residual, placeholder)
	if idx < 0 {
		return residual
	}
	before := residual[:idx]
	after := residual[idx+len(placeholder):]

	if columns != "" {
		return before + columns + after
	}

	trimmedBefore := strings.TrimRight(before, " \t\r\n")
	if strings.HasSuffix(trimmedBefore, ",") {
		return strings.TrimSuffix(trimmedBefore, ",") + after
	}
	trimmedAfter := strings.TrimLeft(after, " \t\r\n")
	if strings.HasPrefix(trimmedAfter, ",") {
		return before + strings.TrimLeft(strings.TrimPrefix(trimmedAfter, ","), " \t")
	}
	return before + after
}
