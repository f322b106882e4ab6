// Package shape discovers, from the queried data itself, how many flattened
// columns a JSON column needs and which structural kind it holds.
package shape

import "fmt"

// Kind classifies the JSON layout of a column across the probed row set.
type Kind int

// Kind values, in ascending order of probe priority on ties.
const (
	ScalarOrUnknown Kind = iota // bare scalar, null, or nothing recognizable
	KeyedObject                 // a plain JSON object; pairs are its entries
	HiddenObject                // an object with a "hidden" sub-object holding the pairs
	ArrayOfObjects              // a JSON array; pairs are its elements
)

func (k Kind) String() string {
	switch k {
	case ArrayOfObjects:
		return "array_of_objects"
	case KeyedObject:
		return "keyed_object"
	case HiddenObject:
		return "hidden_object"
	case ScalarOrUnknown:
		return "scalar_or_unknown"
	default:
		return "unknown"
	}
}

// Profile is the discovered cardinality and kind for one JSON column.
// It is computed once per invocation per query execution and never cached
// across queries, since the data changes between calls.
type Profile struct {
	// MaxPairs is the largest number of extractable (name, value) pairs
	// found in any single row, capped at the configured safety ceiling.
	// Zero is a valid, non-error outcome.
	MaxPairs int

	// Kind is the interpretation that produced MaxPairs.
	Kind Kind
}

// ProbeError reports a failed probing query, naming the offending column.
// It is fatal for the containing invocation but independent of any other
// invocation in the same statement.
type ProbeError struct {
	Column string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("shape probe failed for column %q: %v", e.Column, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
