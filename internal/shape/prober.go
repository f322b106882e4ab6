package shape

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/leapstack-labs/unnest/internal/executor"
)

// fromTailRe captures everything from the FROM keyword to the end of the
// statement, so the probe sees the same row set as the final query. This is
// deliberately not a SQL parser: the scanner already removed the template
// spans, and the probe only needs the FROM/WHERE portion verbatim.
//
// Known limitation: the match anchors on the first FROM, so a scalar
// subquery in the SELECT list (SELECT (SELECT max(x) FROM y), ... FROM t)
// garbles the probe and the statement fails with a ProbeError.
var fromTailRe = regexp.MustCompile(`(?is)\bFROM\b(.*)$`)

// tailCutRe marks clauses that cannot follow an aggregate-only projection.
var tailCutRe = regexp.MustCompile(`(?i)\b(GROUP\s+BY|ORDER\s+BY|HAVING|LIMIT|OFFSET|FOR\s+UPDATE|FOR\s+SHARE)\b`)

// Prober runs a bounded, read-only probe against the data to build a Profile.
type Prober struct {
	db      executor.Queryer
	ceiling int // safety cap on MaxPairs
	limit   int // bound on probed rows
	logger  *slog.Logger
}

// NewProber creates a prober. ceiling caps MaxPairs so one pathological row
// cannot explode the generated column count; limit bounds the probed sample.
func NewProber(db executor.Queryer, ceiling, limit int, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if ceiling <= 0 {
		ceiling = 200
	}
	if limit <= 0 {
		limit = 10000
	}
	return &Prober{db: db, ceiling: ceiling, limit: limit, logger: logger}
}

// Probe computes the Profile for one JSON column, reusing the residual
// query's FROM and WHERE clauses so the probe reflects the actual row set
// being exported. Rows where the column is null contribute zero and do not
// abort the probe.
func (p *Prober) Probe(ctx context.Context, column, residual string) (*Profile, error) {
	probeSQL, err := buildProbeSQL(column, residual, p.limit)
	if err != nil {
		return nil, &ProbeError{Column: column, Err: err}
	}

	p.logger.Debug("running shape probe", "column", column)

	_, rows, err := p.db.Query(ctx, probeSQL)
	if err != nil {
		return nil, &ProbeError{Column: column, Err: err}
	}
	if len(rows) != 1 || len(rows[0]) != 4 {
		return nil, &ProbeError{Column: column, Err: fmt.Errorf("probe returned unexpected shape (%d rows)", len(rows))}
	}

	counts := make([]int, 4)
	for i, v := range rows[0] {
		n, err := toInt(v)
		if err != nil {
			return nil, &ProbeError{Column: column, Err: err}
		}
		counts[i] = n
	}

	// Interpretations in tie-break priority order, matching the probe's
	// projection order: array, hidden object, keyed object, scalar.
	kinds := []Kind{ArrayOfObjects, HiddenObject, KeyedObject, ScalarOrUnknown}
	profile := &Profile{MaxPairs: 0, Kind: ScalarOrUnknown}
	for i, kind := range kinds {
		if counts[i] > profile.MaxPairs {
			profile.MaxPairs = counts[i]
			profile.Kind = kind
		}
	}

	if profile.MaxPairs > p.ceiling {
		p.logger.Warn("probed pair count exceeds safety ceiling, truncating",
			"column", column, "pairs", profile.MaxPairs, "ceiling", p.ceiling)
		profile.MaxPairs = p.ceiling
	}

	p.logger.Debug("shape probe complete",
		"column", column, "kind", profile.Kind.String(), "max_pairs", profile.MaxPairs)

	return profile, nil
}

// buildProbeSQL produces an aggregate statement computing, per interpretation,
// the maximum pair count across the probed rows:
//
//	array length | key count of the "hidden" sub-object | key count of the
//	object itself | scalar presence
//
// The column is cast to jsonb so json columns probe identically.
func buildProbeSQL(column, residual string, limit int) (string, error) {
	m := fromTailRe.FindStringSubmatch(residual)
	if m == nil {
		return "", fmt.Errorf("no FROM clause found to probe against")
	}
	tail := m[1]
	if loc := tailCutRe.FindStringIndex(tail); loc != nil {
		tail = tail[:loc[0]]
	}
	tail = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(tail), ";"))
	if tail == "" {
		return "", fmt.Errorf("empty FROM clause")
	}

	v := "(" + column + ")::jsonb"
	probe := fmt.Sprintf(`SELECT
  COALESCE(MAX(CASE WHEN jsonb_typeof(probe_val) = 'array' THEN jsonb_array_length(probe_val) END), 0) AS array_pairs,
  COALESCE(MAX(CASE WHEN jsonb_typeof(probe_val->'hidden') = 'object' THEN (SELECT count(*) FROM jsonb_object_keys(probe_val->'hidden')) END), 0) AS hidden_pairs,
  COALESCE(MAX(CASE WHEN jsonb_typeof(probe_val) = 'object' AND jsonb_typeof(probe_val->'hidden') IS DISTINCT FROM 'object' THEN (SELECT count(*) FROM jsonb_object_keys(probe_val)) END), 0) AS object_pairs,
  COALESCE(MAX(CASE WHEN jsonb_typeof(probe_val) NOT IN ('array', 'object', 'null') THEN 1 END), 0) AS scalar_pairs
FROM (SELECT %s AS probe_val FROM %s LIMIT %d) AS probe_rows`, v, tail, limit)

	return probe, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case []byte:
		var out int
		if _, err := fmt.Sscan(string(n), &out); err != nil {
			return 0, fmt.Errorf("non-numeric probe count %q", n)
		}
		return out, nil
	case string:
		var out int
		if _, err := fmt.Sscan(n, &out); err != nil {
			return 0, fmt.Errorf("non-numeric probe count %q", n)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("unexpected probe count type %T", v)
	}
}
