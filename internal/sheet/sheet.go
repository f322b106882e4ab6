// Package sheet turns raw query results into a rectangular, serializable
// grid suitable for spreadsheet-style consumers.
package sheet

import (
	"fmt"
	"strconv"
	"time"
)

// Grid is a rectangular result: a header row plus data rows, every cell
// rendered as text. NULLs render as empty strings.
type Grid struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Assemble builds a Grid from scanned query output. Cell rendering is
// deterministic: the same value always yields the same text.
func Assemble(columns []string, rows [][]any) *Grid {
	g := &Grid{Columns: columns, Rows: make([][]string, len(rows))}
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = renderCell(v)
		}
		g.Rows[i] = cells
	}
	return g
}

func renderCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
