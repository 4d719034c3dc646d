package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/auctiondraft/go/internal/config"
	"github.com/mcdev12/auctiondraft/go/internal/draft/backend"
)

// RootOptions holds the global flags.
type RootOptions struct {
	Verbose    bool
	Format     string
	DraftsFile string
	Store      string
	SQLitePath string
}

var validFormats = []string{"text", "json"}

const (
	exitMismatch     = 1
	exitCommandError = 2
)

// mismatchError reports a check that ran but failed.
type mismatchError struct{ msg string }

func (e *mismatchError) Error() string { return e.msg }

func exitCode(err error) int {
	var m *mismatchError
	if errors.As(err, &m) {
		return exitMismatch
	}
	return exitCommandError
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "draftctl",
		Short: "Operate live auction drafts",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			setupLogging(opts.Verbose)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DraftsFile, "drafts", config.GetEnv("DRAFTS_FILE", "configs/drafts.yaml"), "drafts file")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", config.GetEnv("STORE", string(backend.KindSQLite)), "store backend (postgres|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "db", config.GetEnv("SQLITE_PATH", "auctiondraft.db"), "path to SQLite database")

	cmd.AddCommand(newReplayCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newMaxBidCommand(opts))
	cmd.AddCommand(newDraftsCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

func setupLogging(verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(config.GetEnv("LOG_LEVEL", "warn"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}
