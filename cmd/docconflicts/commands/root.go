package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/config"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

var globals globalOptions

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docconflicts",
		Short: "Find conflicting statements across a document corpus",
		Long: `docconflicts compares precomputed sentence embeddings of a corpus,
groups similar sentences into document-pair conflicts and recommends
which outdated or duplicated documents to remove.

Typical flow:
  docconflicts match       # embeddings -> sentence matches
  docconflicts conflicts   # sentence matches -> conflict report
  docconflicts analyze     # both stages in one run`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&globals.configPath, "config", "", "Path to a .toml or .yaml config file")
	cmd.PersistentFlags().StringVar(&globals.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&globals.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(
		NewMatchCmd(),
		NewConflictsCmd(),
		NewAnalyzeCmd(),
		NewSimilarCmd(),
		NewImportCmd(),
		NewServeCmd(),
		NewTokenCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads .env, the configuration and the logger for a command run
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(globals.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), globals.logLevel, globals.logFormat)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}

// newLogger builds the structured logger used by the pipeline and server
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
