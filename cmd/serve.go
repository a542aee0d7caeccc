package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/genomehub/metareg/pkg/server"
	"github.com/genomehub/metareg/pkg/store/sql"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.Launch(ctx, log, loadConfig())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the registry schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sql.NewSQLStore(log, loadConfig())
		if err != nil {
			return err
		}

		return store.Migrate()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
