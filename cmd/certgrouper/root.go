package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"certgrouper/internal/config"
	"certgrouper/internal/logging"
)

type cliContext struct {
	logLevel string
	cfg      *config.AppConfig
}

func (c *cliContext) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), c.logLevel, c.cfg.Location())
}

func newRootCommand() *cobra.Command {
	ctx := &cliContext{cfg: config.Load()}

	rootCmd := &cobra.Command{
		Use:           "certgrouper",
		Short:         "Group iHasco certificates into one folder per course",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", ctx.cfg.LogLevel, "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newGroupCommand(ctx))
	rootCmd.AddCommand(newParseCommand())

	return rootCmd
}
