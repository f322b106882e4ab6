package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/unnest/internal/config"
	"github.com/leapstack-labs/unnest/internal/shape"
	"github.com/leapstack-labs/unnest/internal/testutil"
)

// stubDB answers probe queries from a per-column count table and export
// queries from canned rows.
type stubDB struct {
	probes     map[string][]int64 // column substring -> [array, hidden, object, scalar]
	probeErr   error
	exportCols []string
	exportRows [][]any
	exportErr  error
	queries    []string
}

func (s *stubDB) Query(_ context.Context, sql string) ([]string, [][]any, error) {
	s.queries = append(s.queries, sql)
	if strings.Contains(sql, "AS probe_rows") {
		if s.probeErr != nil {
			return nil, nil, s.probeErr
		}
		for col, counts := range s.probes {
			if strings.Contains(sql, fmt.Sprintf("(%s)::jsonb", col)) {
				row := make([]any, len(counts))
				for i, c := range counts {
					row[i] = c
				}
				return []string{"array_pairs", "hidden_pairs", "object_pairs", "scalar_pairs"},
					[][]any{row}, nil
			}
		}
		return nil, nil, fmt.Errorf("unexpected probe: %s", sql)
	}
	return s.exportCols, s.exportRows, s.exportErr
}

func newTestEngine(t *testing.T, db *stubDB) *Engine {
	t.Helper()
	return New(Config{DB: db, Logger: testutil.NewTestLogger(t)})
}

func TestRewrite_NoInvocationsPassthrough(t *testing.T) {
	db := &stubDB{}
	e := newTestEngine(t, db)

	sql := "SELECT id, name FROM users WHERE id = 1"
	out, err := e.Rewrite(context.Background(), sql)

	require.NoError(t, err)
	assert.Equal(t, sql, out)
	assert.Empty(t, db.queries, "no probe may run for template-free SQL")
}

func TestRewrite_ArrayInvocation(t *testing.T) {
	db := &stubDB{probes: map[string][]int64{"answers": {2, 0, 0, 0}}}
	e := newTestEngine(t, db)

	out, err := e.Rewrite(context.Background(),
		"SELECT id, {{all_fields_as_columns_from(answers, q, a)}} FROM responses")
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		assert.Contains(t, out, fmt.Sprintf("AS answers_q_%d", i))
		assert.Contains(t, out, fmt.Sprintf("AS answers_a_%d", i))
	}
	assert.NotContains(t, out, "{{")
	assert.NotContains(t, out, "__unnest_cols_")
	// Interleaved ordering: name before value, slot 1 before slot 2.
	q1 := strings.Index(out, "AS answers_q_1")
	a1 := strings.Index(out, "AS answers_a_1")
	q2 := strings.Index(out, "AS answers_q_2")
	assert.True(t, q1 < a1 && a1 < q2, "columns must interleave name/value in slot order")
}

func TestRewrite_Deterministic(t *testing.T) {
	db := &stubDB{probes: map[string][]int64{"answers": {3, 0, 1, 0}}}
	e := newTestEngine(t, db)
	sql := "SELECT {{all_fields_as_columns_from(answers, q, a)}} FROM responses"

	first, err := e.Rewrite(context.Background(), sql)
	require.NoError(t, err)
	second, err := e.Rewrite(context.Background(), sql)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical input and shape must produce identical SQL")
}

func TestRewrite_ZeroPairsCollapses(t *testing.T) {
	db := &stubDB{probes: map[string][]int64{"empty_col": {0, 0, 0, 0}}}
	e := newTestEngine(t, db)

	out, err := e.Rewrite(context.Background(),
		"SELECT id, {{all_fields_as_columns_from(empty_col, n, v)}} FROM t")
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM t", out)
}

func TestRewrite_MultipleInvocations(t *testing.T) {
	db := &stubDB{probes: map[string][]int64{
		"answers": {1, 0, 0, 0},
		"meta":    {0, 0, 1, 0},
	}}
	e := newTestEngine(t, db)

	out, err := e.Rewrite(context.Background(),
		"SELECT {{all_fields_as_columns_from(answers, q, a)}}, "+
			"{{all_fields_as_columns_from(meta, n, v)}} FROM t")
	require.NoError(t, err)

	assert.Contains(t, out, "AS answers_q_1")
	assert.Contains(t, out, "AS meta_n_1")
	assert.Contains(t, out, "AS meta_v_1")
}

func TestRewrite_ProbeErrorNamesColumn(t *testing.T) {
	db := &stubDB{probeErr: errors.New("relation does not exist")}
	e := newTestEngine(t, db)

	_, err := e.Rewrite(context.Background(),
		"SELECT {{all_fields_as_columns_from(answers, q, a)}} FROM missing")

	require.Error(t, err)
	var perr *shape.ProbeError
	assert.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), "answers")
}

func TestRewrite_ProbeFailureIsIndependentPerInvocation(t *testing.T) {
	// Only answers is probeable; the stub rejects any other column.
	db := &stubDB{probes: map[string][]int64{"answers": {1, 0, 0, 0}}}
	e := newTestEngine(t, db)

	_, err := e.Rewrite(context.Background(),
		"SELECT {{all_fields_as_columns_from(answers, q, a)}}, "+
			"{{all_fields_as_columns_from(bogus, n, v)}} FROM t")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bogus"`)
	assert.NotContains(t, err.Error(), `"answers"`, "the healthy invocation must not be implicated")
	// Both invocations were still probed.
	assert.Len(t, db.queries, 2)
}

func TestRewrite_SyntaxErrorShortCircuits(t *testing.T) {
	db := &stubDB{}
	e := newTestEngine(t, db)

	_, err := e.Rewrite(context.Background(),
		"SELECT {{all_fields_as_columns_from(answers, q)}} FROM t")

	require.Error(t, err)
	assert.Empty(t, db.queries, "malformed templates must fail before any database call")
}

func TestRewrite_MaxPairsCeiling(t *testing.T) {
	db := &stubDB{probes: map[string][]int64{"answers": {500, 0, 0, 0}}}
	e := New(Config{
		DB:     db,
		Engine: config.EngineConfig{MaxPairs: 3},
		Logger: testutil.NewTestLogger(t),
	})

	out, err := e.Rewrite(context.Background(),
		"SELECT {{all_fields_as_columns_from(answers, q, a)}} FROM t")
	require.NoError(t, err)

	assert.Contains(t, out, "AS answers_a_3")
	assert.NotContains(t, out, "AS answers_a_4", "fan-out must stop at the configured ceiling")
}

func TestExport(t *testing.T) {
	db := &stubDB{
		probes:     map[string][]int64{"answers": {1, 0, 0, 0}},
		exportCols: []string{"id", "answers_q_1", "answers_a_1"},
		exportRows: [][]any{{int64(1), "age", "34"}},
	}
	e := newTestEngine(t, db)

	grid, err := e.Export(context.Background(),
		"SELECT id, {{all_fields_as_columns_from(answers, q, a)}} FROM responses")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "answers_q_1", "answers_a_1"}, grid.Columns)
	require.Len(t, grid.Rows, 1)
	assert.Equal(t, []string{"1", "age", "34"}, grid.Rows[0])

	// One probe plus the final execution.
	require.Len(t, db.queries, 2)
	assert.NotContains(t, db.queries[1], "{{")
}

func TestExport_ExecutionErrorPropagates(t *testing.T) {
	db := &stubDB{
		probes:    map[string][]int64{"answers": {1, 0, 0, 0}},
		exportErr: errors.New("boom"),
	}
	e := newTestEngine(t, db)

	_, err := e.Export(context.Background(),
		"SELECT {{all_fields_as_columns_from(answers, q, a)}} FROM t")
	assert.ErrorContains(t, err, "boom")
}
