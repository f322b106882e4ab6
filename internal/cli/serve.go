package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/unnest/internal/server"
)

func runServe(cmd *cobra.Command) error {
	eng, closeDB, err := newEngine()
	if err != nil {
		return err
	}
	defer closeDB()

	srv := server.New(server.Config{
		Engine: eng,
		Addr:   cfg.HTTP.Addr,
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
