package strategy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/unnest/internal/shape"
)

// hiddenObject extracts from a top-level "hidden" sub-object, common in form
// responses where pre-filled data is stored under {"hidden": {...}}. Slot 1
// prefers direct hidden[name_key]/hidden[value_key] access, then falls back
// to the i-th entry of the hidden object.
type hiddenObject struct{}

func (hiddenObject) Name() string { return "hidden_object" }
func (hiddenObject) Priority() int { return 1 }
func (hiddenObject) Applicable(k shape.Kind) bool { return k == shape.HiddenObject }

func (hiddenObject) NameExpr(ctx *Context, slot int) string {
	hidden := ctx.JSONColumn + "->'hidden'"
	if slot == 1 {
		return coalesce(nullif(fieldAccess(hidden, ctx.NameKey)), entryAt(hidden, slot, true))
	}
	return entryAt(hidden, slot, true)
}

func (hiddenObject) ValueExpr(ctx *Context, slot int) string {
	hidden := ctx.JSONColumn + "->'hidden'"
	if slot == 1 {
		return coalesce(nullif(fieldAccess(hidden, ctx.ValueKey)), entryAt(hidden, slot, false))
	}
	return entryAt(hidden, slot, false)
}

// directField reads json_column[name_key]/json_column[value_key] directly.
// Cheap and safe under every kind: the ->> operator returns NULL rather than
// erroring when the blob is not an object. Slots past the first enumerate the
// object's entries in key order.
type directField struct{}

func (directField) Name() string { return "direct_field" }
func (directField) Priority() int { return 2 }
func (directField) Applicable(shape.Kind) bool { return true }

func (directField) NameExpr(ctx *Context, slot int) string {
	if slot == 1 {
		return fieldAccess(ctx.JSONColumn, ctx.NameKey)
	}
	return entryAt(ctx.JSONColumn, slot, true)
}

func (directField) ValueExpr(ctx *Context, slot int) string {
	if slot == 1 {
		return fieldAccess(ctx.JSONColumn, ctx.ValueKey)
	}
	return entryAt(ctx.JSONColumn, slot, false)
}

// nestedArray indexes into a JSON array (or an enveloped "list" sub-array)
// and reads the slot's element by position. Key synonyms tolerate elements
// whose producer used "answer" or "text" instead of the requested key. A
// bare string element contributes itself as the value.
type nestedArray struct{}

func (nestedArray) Name() string { return "nested_array" }
func (nestedArray) Priority() int { return 3 }
func (nestedArray) Applicable(k shape.Kind) bool { return k == shape.ArrayOfObjects }

func (nestedArray) NameExpr(ctx *Context, slot int) string {
	elem := fmt.Sprintf("(%s)->%d", arrGuard(ctx.JSONColumn), slot-1)
	keys := dedup(append([]string{ctx.NameKey}, ctx.NameSynonyms...))
	exprs := make([]string, 0, len(keys))
	for _, k := range keys {
		exprs = append(exprs, nullif(fieldAccess(elem, k)))
	}
	return coalesce(exprs...)
}

func (nestedArray) ValueExpr(ctx *Context, slot int) string {
	elem := fmt.Sprintf("(%s)->%d", arrGuard(ctx.JSONColumn), slot-1)
	keys := dedup(append([]string{ctx.ValueKey}, ctx.ValueSynonyms...))
	exprs := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		exprs = append(exprs, nullif(fieldAccess(elem, k)))
	}
	// Arrays of bare scalars: the element itself is the value.
	exprs = append(exprs, fmt.Sprintf(
		"CASE WHEN jsonb_typeof(%s) NOT IN ('object', 'array', 'null') THEN %s #>> '{}' END", elem, elem))
	return coalesce(exprs...)
}

// patternMatch scans every scalar leaf for a value of a recognized shape,
// for value extraction only. It engages when the requested value key names a
// configured pattern (e.g. an "email"-ish key still yields a result even if
// no element's key literally says "email").
type patternMatch struct{}

func (patternMatch) Name() string { return "pattern_match" }
func (patternMatch) Priority() int { return 4 }
func (patternMatch) Applicable(shape.Kind) bool { return true }

func (patternMatch) NameExpr(*Context, int) string { return "" }

func (patternMatch) ValueExpr(ctx *Context, _ int) string {
	// Pattern names are visited in sorted order: map iteration order must
	// never leak into the generated SQL.
	names := make([]string, 0, len(ctx.Patterns))
	for name := range ctx.Patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	regex := ""
	lower := strings.ToLower(ctx.ValueKey)
	for _, name := range names {
		if strings.Contains(lower, strings.ToLower(name)) {
			regex = ctx.Patterns[name]
			break
		}
	}
	if regex == "" {
		return ""
	}
	return leafSearch(ctx.JSONColumn, fmt.Sprintf("~ %s", quoteLiteral(regex)), matchValue)
}

// wildcard is the final fallback: one level of flattening over every
// key/value pair anywhere in the blob, returning the first value whose key
// case-insensitively contains the requested key text.
type wildcard struct{}

func (wildcard) Name() string { return "wildcard" }
func (wildcard) Priority() int { return 5 }
func (wildcard) Applicable(shape.Kind) bool { return true }

func (wildcard) NameExpr(ctx *Context, _ int) string {
	return leafSearch(ctx.JSONColumn, containsCondition(ctx.NameKey), matchKey)
}

func (wildcard) ValueExpr(ctx *Context, _ int) string {
	return leafSearch(ctx.JSONColumn, containsCondition(ctx.ValueKey), matchKey)
}

func containsCondition(key string) string {
	needle := strings.ToLower(key)
	return fmt.Sprintf("LIKE %s", quoteLiteral("%"+needle+"%"))
}

// leafSearch target: which side of each flattened (key, value) pair the
// condition applies to.
type leafTarget int

const (
	matchKey   leafTarget = iota // condition on lower(key), returns value
	matchValue                   // condition on value, returns value
)

// leafSearch builds a deterministic first-match search over one level of
// flattening: the blob's own entries when it is an object, and each array
// element's entries when it is an array. Ordering is by key name (and array
// position) so repeated runs resolve identically.
func leafSearch(col, condition string, target leafTarget) string {
	topSubject := "t.value"
	elemSubject := "e.value"
	if target == matchKey {
		topSubject = "lower(t.key)"
		elemSubject = "lower(e.key)"
	}

	top := fmt.Sprintf(
		"(SELECT t.value FROM jsonb_each_text(%s) AS t WHERE %s %s ORDER BY t.key LIMIT 1)",
		objGuard(col), topSubject, condition)

	elems := fmt.Sprintf(
		"(SELECT e.value FROM jsonb_array_elements(%s) WITH ORDINALITY AS a(elem, ord), "+
			"jsonb_each_text(CASE WHEN jsonb_typeof(a.elem) = 'object' THEN a.elem ELSE '{}'::jsonb END) AS e "+
			"WHERE %s %s ORDER BY a.ord, e.key LIMIT 1)",
		arrGuard(col), elemSubject, condition)

	return coalesce(top, elems)
}
