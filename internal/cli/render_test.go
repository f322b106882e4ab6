package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/unnest/internal/sheet"
)

func sampleGrid() *sheet.Grid {
	return &sheet.Grid{
		Columns: []string{"id", "answers_q_1", "answers_a_1"},
		Rows: [][]string{
			{"1", "age", "34"},
			{"2", "city, state", `said "hi"`},
		},
	}
}

func TestRenderJSON(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderGrid(&buf, sampleGrid(), "json"))

	assert.Contains(t, buf.String(), `"columns"`)
	assert.Contains(t, buf.String(), `"answers_q_1"`)
}

func TestRenderCSV(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderGrid(&buf, sampleGrid(), "csv"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,answers_q_1,answers_a_1", lines[0])
	assert.Equal(t, `2,"city, state","said ""hi"""`, lines[2])
}

func TestRenderTable(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderGrid(&buf, sampleGrid(), "table"))

	out := buf.String()
	assert.Contains(t, out, "answers_q_1")
	assert.Contains(t, out, "(2 rows)")
}

func TestRenderTable_Empty(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderGrid(&buf, &sheet.Grid{Columns: []string{"a"}}, "table"))

	assert.Equal(t, "(0 rows)\n", buf.String())
}
