package shape

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/unnest/internal/testutil"
)

// stubQueryer records the probe SQL and returns a canned single-row answer.
type stubQueryer struct {
	lastSQL string
	counts  []any
	err     error
}

func (s *stubQueryer) Query(_ context.Context, sql string) ([]string, [][]any, error) {
	s.lastSQL = sql
	if s.err != nil {
		return nil, nil, s.err
	}
	return []string{"array_pairs", "hidden_pairs", "object_pairs", "scalar_pairs"},
		[][]any{s.counts}, nil
}

func TestProbe_ArrayOfObjects(t *testing.T) {
	db := &stubQueryer{counts: []any{int64(2), int64(0), int64(0), int64(0)}}
	p := NewProber(db, 200, 10000, testutil.NewTestLogger(t))

	profile, err := p.Probe(context.Background(), "answers", "SELECT id, __unnest_cols_1__ FROM t")
	require.NoError(t, err, "unexpected error")

	assert.Equal(t, 2, profile.MaxPairs)
	assert.Equal(t, ArrayOfObjects, profile.Kind)
}

func TestProbe_TieBreakPriority(t *testing.T) {
	// Array and hidden interpretations tie: array wins, then hidden over keyed.
	db := &stubQueryer{counts: []any{int64(3), int64(3), int64(3), int64(1)}}
	p := NewProber(db, 200, 10000, nil)

	profile, err := p.Probe(context.Background(), "data", "SELECT x FROM t WHERE x > 1")
	require.NoError(t, err)

	assert.Equal(t, ArrayOfObjects, profile.Kind)
	assert.Equal(t, 3, profile.MaxPairs)
}

func TestProbe_HiddenBeatsKeyed(t *testing.T) {
	db := &stubQueryer{counts: []any{int64(0), int64(4), int64(4), int64(0)}}
	p := NewProber(db, 200, 10000, nil)

	profile, err := p.Probe(context.Background(), "data", "SELECT x FROM t")
	require.NoError(t, err)

	assert.Equal(t, HiddenObject, profile.Kind)
}

func TestProbe_ScalarDegenerate(t *testing.T) {
	db := &stubQueryer{counts: []any{int64(0), int64(0), int64(0), int64(1)}}
	p := NewProber(db, 200, 10000, nil)

	profile, err := p.Probe(context.Background(), "note", "SELECT note FROM t")
	require.NoError(t, err)

	assert.Equal(t, ScalarOrUnknown, profile.Kind)
	assert.Equal(t, 1, profile.MaxPairs)
}

func TestProbe_ZeroPairsIsValid(t *testing.T) {
	db := &stubQueryer{counts: []any{int64(0), int64(0), int64(0), int64(0)}}
	p := NewProber(db, 200, 10000, nil)

	profile, err := p.Probe(context.Background(), "empty", "SELECT x FROM t")
	require.NoError(t, err, "max_pairs = 0 is not an error")

	assert.Equal(t, 0, profile.MaxPairs)
	assert.Equal(t, ScalarOrUnknown, profile.Kind)
}

func TestProbe_SafetyCeiling(t *testing.T) {
	db := &stubQueryer{counts: []any{int64(99999), int64(0), int64(0), int64(0)}}
	p := NewProber(db, 200, 10000, testutil.NewTestLogger(t))

	profile, err := p.Probe(context.Background(), "big", "SELECT x FROM t")
	require.NoError(t, err)

	assert.Equal(t, 200, profile.MaxPairs, "pathological rows are truncated, not rejected")
}

func TestProbe_QueryFailure(t *testing.T) {
	db := &stubQueryer{err: errors.New("column does not exist")}
	p := NewProber(db, 200, 10000, nil)

	_, err := p.Probe(context.Background(), "bad_col", "SELECT x FROM t")
	require.Error(t, err)

	var perr *ProbeError
	require.ErrorAs(t, err, &perr, "expected *ProbeError")
	assert.Equal(t, "bad_col", perr.Column, "error must name the offending column")
}

func TestProbe_NoFromClause(t *testing.T) {
	db := &stubQueryer{counts: []any{int64(0), int64(0), int64(0), int64(0)}}
	p := NewProber(db, 200, 10000, nil)

	_, err := p.Probe(context.Background(), "x", "SELECT 1")

	var perr *ProbeError
	require.ErrorAs(t, err, &perr)
}

func TestBuildProbeSQL_ReusesFromAndWhere(t *testing.T) {
	db := &stubQueryer{counts: []any{int64(1), int64(0), int64(0), int64(0)}}
	p := NewProber(db, 200, 5000, nil)

	_, err := p.Probe(context.Background(), "c.prefs",
		"SELECT c.id, __unnest_cols_1__ FROM customers c JOIN orders o ON o.cid = c.id WHERE c.active ORDER BY c.id LIMIT 10")
	require.NoError(t, err)

	assert.Contains(t, db.lastSQL, "FROM customers c JOIN orders o ON o.cid = c.id WHERE c.active", "FROM/WHERE reused verbatim")
	assert.NotContains(t, db.lastSQL, "ORDER BY c.id", "trailing clauses must be cut")
	assert.Contains(t, db.lastSQL, "(c.prefs)::jsonb", "probed column expression")
	assert.Contains(t, db.lastSQL, "LIMIT 5000", "probe is bounded")
	assert.True(t, strings.HasPrefix(db.lastSQL, "SELECT"), "probe is a plain SELECT")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "array_of_objects", ArrayOfObjects.String())
	assert.Equal(t, "keyed_object", KeyedObject.String())
	assert.Equal(t, "hidden_object", HiddenObject.String())
	assert.Equal(t, "scalar_or_unknown", ScalarOrUnknown.String())
}
