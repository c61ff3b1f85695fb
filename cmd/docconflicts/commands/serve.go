package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/api"
	"github.com/todmy/doc-conflicts/internal/storage"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored conflict reports over HTTP",
		Long: `Start the read-only report API backed by the runs stored with
analyze --persist. Requests need a bearer token when DOCCONFLICTS_JWT_SECRET is set.

Examples:
  docconflicts serve
  docconflicts serve --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if cfg.JWTSecret == "" {
				logger.Warn("DOCCONFLICTS_JWT_SECRET not set, API is unauthenticated")
			}

			server := api.NewServer(api.ServerConfig{
				Runs:      storage.NewPostgresRunRepository(db),
				JWTSecret: cfg.JWTSecret,
				Corpus:    cfg.Corpus,
				Logger:    logger,
			})

			return server.Run(ctx, ":"+cfg.Port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from config)")

	return cmd
}
