// Package template finds and parses the embedded unnesting micro-syntax
// inside otherwise ordinary SQL text.
//
// The wire contract with end users is bit-exact:
//
//	{{all_fields_as_columns_from(<json_column>, <name_key>, <value_key>)}}
//
// The scanner is not a SQL parser. It treats {{...}} as an opaque, removable
// token and preserves exact byte spans so the rewriter can splice generated
// columns back without corrupting the surrounding SQL.
package template

import (
	"fmt"
	"strings"
)

// FuncName is the literal, case-sensitive function name of the micro-syntax.
const FuncName = "all_fields_as_columns_from"

// Span is a half-open byte range [Start, End) in the original SQL text.
type Span struct {
	Start int
	End   int
}

// Invocation is one parsed occurrence of the micro-syntax.
type Invocation struct {
	JSONColumn  string // column expression, may be qualified (e.g. "c.preferences")
	NameKey     string
	ValueKey    string
	Span        Span
	Placeholder string // unique token standing in for this invocation in the residual SQL
	Pos         Position
}

// ScanResult holds the parsed invocations, in left-to-right order, and the
// residual SQL with each invocation's span replaced by its placeholder.
type ScanResult struct {
	Invocations []*Invocation
	Residual    string
}

// Scan walks the raw SQL and extracts every template invocation. SQL without
// any {{...}} occurrence is returned untouched as the residual. Any {{...}}
// block that is not a well-formed invocation is a *SyntaxError.
func Scan(sql string) (*ScanResult, error) {
	res := &ScanResult{}
	var out strings.Builder

	pos := 0
	line, col := 1, 1
	for {
		rel := strings.Index(sql[pos:], "{{")
		if rel < 0 {
			break
		}

		// Advance line/column bookkeeping over the skipped text.
		line, col = advance(sql[pos:pos+rel], line, col)
		out.WriteString(sql[pos : pos+rel])
		start := pos + rel
		startPos := Position{Offset: start, Line: line, Column: col}

		end := strings.Index(sql[start+2:], "}}")
		if end < 0 {
			return nil, NewSyntaxError(startPos, "unbalanced braces: missing closing '}}'")
		}
		end = start + 2 + end + 2 // past the closing }}

		inv, err := parseInvocation(sql[start+2:end-2], startPos)
		if err != nil {
			return nil, err
		}

		inv.Span = Span{Start: start, End: end}
		inv.Placeholder = fmt.Sprintf("__unnest_cols_%d__", len(res.Invocations)+1)
		res.Invocations = append(res.Invocations, inv)
		out.WriteString(inv.Placeholder)

		line, col = advance(sql[start:end], line, col)
		pos = end
	}

	out.WriteString(sql[pos:])
	res.Residual = out.String()
	return res, nil
}

// parseInvocation parses the content between the braces: the literal function
// name followed by exactly three comma-separated arguments.
func parseInvocation(body string, pos Position) (*Invocation, error) {
	inner := strings.TrimSpace(body)

	if !strings.HasPrefix(inner, FuncName) {
		return nil, NewSyntaxErrorf(pos, "expected %s(...), got %q", FuncName, truncate(inner, 40))
	}
	rest := strings.TrimSpace(inner[len(FuncName):])

	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return nil, NewSyntaxErrorf(pos, "%s requires a parenthesized argument list", FuncName)
	}
	argList := rest[1 : len(rest)-1]

	args := strings.Split(argList, ",")
	if len(args) != 3 {
		return nil, NewSyntaxErrorf(pos, "%s takes exactly 3 arguments (json_column, name_key, value_key), got %d", FuncName, len(args))
	}
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
		if args[i] == "" {
			return nil, NewSyntaxErrorf(pos, "%s: argument %d is empty", FuncName, i+1)
		}
	}

	return &Invocation{
		JSONColumn: args[0],
		NameKey:    args[1],
		ValueKey:   args[2],
		Pos:        pos,
	}, nil
}

// advance updates line/column counters over a chunk of text.
func advance(s string, line, col int) (int, int) {
	for _, r := range s {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
