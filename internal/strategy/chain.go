package strategy

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/unnest/internal/shape"
)

// Chain holds the ordered strategy list and folds applicable strategies into
// one fallback expression per slot. The fold is pure: for a fixed profile,
// context and slot, the output is always byte-identical.
type Chain struct {
	strategies []Strategy
}

// NewChain returns the default chain: hidden-object, direct-field,
// nested-array, pattern-match, wildcard, in ascending priority.
func NewChain() *Chain {
	c := &Chain{strategies: []Strategy{
		hiddenObject{},
		directField{},
		nestedArray{},
		patternMatch{},
		wildcard{},
	}}
	sort.SliceStable(c.strategies, func(i, j int) bool {
		return c.strategies[i].Priority() < c.strategies[j].Priority()
	})
	return c
}

// Strategies returns the names of the chain's strategies in priority order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Build produces the name and value expressions for one slot (1-based).
// Each applicable strategy contributes one member; members are combined with
// COALESCE over NULLIF so an empty string means "try the next strategy".
func (c *Chain) Build(kind shape.Kind, ctx *Context, slot int) (nameExpr, valueExpr string) {
	var names, values []string
	for _, s := range c.strategies {
		if !s.Applicable(kind) {
			continue
		}
		if e := s.NameExpr(ctx, slot); e != "" {
			names = append(names, nullif(e))
		}
		if e := s.ValueExpr(ctx, slot); e != "" {
			values = append(values, nullif(e))
		}
	}

	if kind == shape.ScalarOrUnknown {
		// Degenerate single-slot behavior: the scalar itself is the value
		// and the column name stands in as the label.
		values = append(values, scalarText(ctx.JSONColumn))
		names = append(names, quoteLiteral(ctx.JSONColumn))
	}

	nameExpr = coalesce(names...)
	valueExpr = coalesce(values...)
	if nameExpr == "" {
		nameExpr = "NULL"
	}
	if valueExpr == "" {
		valueExpr = "NULL"
	}
	return nameExpr, valueExpr
}

// scalarText extracts a bare JSON scalar as text.
func scalarText(col string) string {
	return fmt.Sprintf("CASE WHEN jsonb_typeof(%s) NOT IN ('object', 'array', 'null') THEN %s #>> '{}' END",
		col, col)
}
