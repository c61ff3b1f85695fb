package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/auth"
)

// NewTokenCmd creates the token command
func NewTokenCmd() *cobra.Command {
	var (
		subject string
		corpus  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the report API",
		Long: `Sign a token with DOCCONFLICTS_JWT_SECRET. A token issued with --corpus can only read
runs of that corpus.

Examples:
  docconflicts token --subject reviewer
  docconflicts token --subject hr-bot --corpus hr-policies --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("DOCCONFLICTS_JWT_SECRET is not set")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			svc := auth.NewJWTService(auth.Config{SecretKey: cfg.JWTSecret, TokenDuration: ttl})
			token, err := svc.GenerateToken(subject, corpus)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "docconflicts", "Token subject")
	cmd.Flags().StringVar(&corpus, "corpus", "", "Restrict the token to one corpus")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultConfig().TokenDuration, "Token lifetime")

	return cmd
}
