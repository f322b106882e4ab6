// Package engine orchestrates the rewrite pipeline: scan the template
// invocations out of the SQL, probe each JSON column's shape, build the
// fallback extraction columns, and splice them back in. Export additionally
// runs the rewritten SQL and shapes the result into a grid.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/unnest/internal/config"
	"github.com/leapstack-labs/unnest/internal/executor"
	"github.com/leapstack-labs/unnest/internal/rewrite"
	"github.com/leapstack-labs/unnest/internal/shape"
	"github.com/leapstack-labs/unnest/internal/sheet"
	"github.com/leapstack-labs/unnest/internal/strategy"
	"github.com/leapstack-labs/unnest/internal/template"
)

// Engine drives template rewriting and export against one database.
type Engine struct {
	db     executor.Queryer
	prober *shape.Prober
	chain  *strategy.Chain
	cfg    config.EngineConfig
	logger *slog.Logger
}

// Config holds engine construction options.
type Config struct {
	// DB executes probe and export queries.
	DB executor.Queryer
	// Engine carries tuning knobs and synonym lists.
	Engine config.EngineConfig
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. Zero-valued tuning knobs fall back to defaults.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ec := cfg.Engine
	if ec.MaxPairs <= 0 {
		ec.MaxPairs = config.DefaultMaxPairs
	}
	if ec.ProbeRowLimit <= 0 {
		ec.ProbeRowLimit = config.DefaultProbeRowLimit
	}
	if ec.NameSynonyms == nil {
		ec.NameSynonyms = config.DefaultNameSynonyms()
	}
	if ec.ValueSynonyms == nil {
		ec.ValueSynonyms = config.DefaultValueSynonyms()
	}
	if ec.Patterns == nil {
		ec.Patterns = config.DefaultPatterns()
	}

	return &Engine{
		db:     cfg.DB,
		prober: shape.NewProber(cfg.DB, ec.MaxPairs, ec.ProbeRowLimit, logger),
		chain:  strategy.NewChain(),
		cfg:    ec,
		logger: logger,
	}
}

// Rewrite expands every template invocation in the statement into generated
// extraction columns. SQL without invocations passes through byte-identical.
// When some invocations fail to probe, the others are still probed so the
// returned error names every failing column, but no partial SQL is returned.
func (e *Engine) Rewrite(ctx context.Context, sql string) (string, error) {
	scanned, err := template.Scan(sql)
	if err != nil {
		return "", err
	}
	if len(scanned.Invocations) == 0 {
		return sql, nil
	}

	profiles := make([]*shape.Profile, len(scanned.Invocations))
	var probeErrs []error
	for i, inv := range scanned.Invocations {
		profile, err := e.prober.Probe(ctx, inv.JSONColumn, scanned.Residual)
		if err != nil {
			probeErrs = append(probeErrs, err)
			continue
		}
		profiles[i] = profile
	}
	if len(probeErrs) > 0 {
		return "", fmt.Errorf("shape probe failed: %w", errors.Join(probeErrs...))
	}

	out := scanned.Residual
	used := map[string]int{}
	for i, inv := range scanned.Invocations {
		profile := profiles[i]
		e.logger.Debug("expanding invocation",
			"column", inv.JSONColumn, "kind", profile.Kind.String(), "max_pairs", profile.MaxPairs)
		if profile.Kind == shape.ScalarOrUnknown {
			e.logger.Warn("json column has no recognized structure, generating degenerate columns",
				"column", inv.JSONColumn)
		}

		sctx := &strategy.Context{
			JSONColumn:    inv.JSONColumn,
			NameKey:       inv.NameKey,
			ValueKey:      inv.ValueKey,
			NameSynonyms:  e.cfg.NameSynonyms,
			ValueSynonyms: e.cfg.ValueSynonyms,
			Patterns:      e.cfg.Patterns,
		}
		cols := rewrite.BuildColumnSet(inv, profile, e.chain, sctx, used)
		out = rewrite.Splice(out, inv.Placeholder, cols.SQL())
	}
	return out, nil
}

// Export rewrites the statement, executes it read-only, and assembles the
// result into a grid.
func (e *Engine) Export(ctx context.Context, sql string) (*sheet.Grid, error) {
	rewritten, err := e.Rewrite(ctx, sql)
	if err != nil {
		return nil, err
	}
	columns, rows, err := e.db.Query(ctx, rewritten)
	if err != nil {
		return nil, err
	}
	e.logger.Info("export complete", "columns", len(columns), "rows", len(rows))
	return sheet.Assemble(columns, rows), nil
}
