package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Rewrite and execute templated SQL",
		Long: `Query rewrites the given SQL, runs it read-only against the configured
database, and renders the result. The SQL is read from the argument, or from
stdin when no argument is given.`,
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

			grid, err := eng.Export(cmd.Context(), sqlText)
			if err != nil {
				return err
			}
			return renderGrid(cmd.OutOrStdout(), grid, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json|csv)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Serve starts the HTTP API. POST /v1/rewrite returns rewritten SQL,
POST /v1/export runs it and returns the result grid.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "unnest %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		},
	}
}
