package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/unnest/internal/engine"
	"github.com/leapstack-labs/unnest/internal/executor"
)

func newRewriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite [sql]",
		Short: "Rewrite templated SQL into plain SQL",
		Long: `Rewrite expands every {{all_fields_as_columns_from(...)}} invocation in
the given SQL and prints the resulting statement. The SQL is read from the
argument, or from stdin when no argument is given.

The database is contacted only to probe data shape; nothing is executed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlText, err := readSQL(cmd, args)
			if err != nil {
				return err
			}

			eng, closeDB, err := newEngine()
			if err != nil {
				return err
			}
			defer closeDB()

			rewritten, err := eng.Rewrite(cmd.Context(), sqlText)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rewritten)
			return nil
		},
	}
}

// readSQL returns the statement from the first argument or from stdin.
func readSQL(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read SQL from stdin: %w", err)
	}
	sqlText := strings.TrimSpace(string(data))
	if sqlText == "" {
		return "", errors.New("no SQL provided: pass it as an argument or on stdin")
	}
	return sqlText, nil
}

// newEngine connects to the configured database and builds the engine.
// The returned func closes the connection pool.
func newEngine() (*engine.Engine, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("database.url is not configured (set it in unnest.yaml or UNNEST_DATABASE__URL)")
	}

	db, err := executor.Open(cfg.Database.URL, executor.Config{
		RowCap:                  cfg.Engine.RowCap,
		StatementTimeoutSeconds: cfg.Database.StatementTimeoutSeconds,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(engine.Config{
		DB:     db,
		Engine: cfg.Engine,
		Logger: logger,
	})
	return eng, func() { _ = db.Close() }, nil
}
