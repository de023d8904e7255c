// Command mkbd extracts MKBD workbooks from the command line.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gunturawaludins/mkbd-new/internal/config"
	"github.com/gunturawaludins/mkbd-new/internal/infrastructure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "mkbd",
		Short:        "Extract and normalise MKBD broker-dealer capital workbooks",
		Version:      config.AppVersion,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.logger = infrastructure.NewLogger(cmd.ErrOrStderr(), c.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newExtractCmd(c),
		newMasterCmd(c),
		newFixtureCmd(c),
		newFormulaCmd(c),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
