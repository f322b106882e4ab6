package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/unnest/internal/sheet"
)

// renderGrid writes the grid in the requested format.
func renderGrid(w io.Writer, grid *sheet.Grid, format string) error {
	switch format {
	case "json":
		return renderJSON(w, grid)
	case "csv":
		return renderCSV(w, grid)
	default:
		return renderTable(w, grid)
	}
}

func renderJSON(w io.Writer, grid *sheet.Grid) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(grid)
}

func renderCSV(w io.Writer, grid *sheet.Grid) error {
	writeLine := func(cells []string) error {
		escaped := make([]string, len(cells))
		for i, c := range cells {
			escaped[i] = escapeCSV(c)
		}
		_, err := fmt.Fprintln(w, strings.Join(escaped, ","))
		return err
	}

	if err := writeLine(grid.Columns); err != nil {
		return err
	}
	for _, row := range grid.Rows {
		if err := writeLine(row); err != nil {
			return err
		}
	}
	return nil
}

func renderTable(w io.Writer, grid *sheet.Grid) error {
	if len(grid.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(grid.Columns))
	for i, col := range grid.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, row := range grid.Rows {
		cells := make(table.Row, len(row))
		for i, c := range row {
			cells[i] = c
		}
		t.AppendRow(cells)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(grid.Rows))
	return nil
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
