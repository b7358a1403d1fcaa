package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the routined command tree. Running it without a
// subcommand starts the service.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "routined",
		Short:         "Gray Logic routine scheduler",
		Long:          "Runs scheduled device routines and manages their routines, credential sources and check interval.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"config file (default $GRAYLOGIC_CONFIG or "+defaultConfigPath+")")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRoutineCommand(opts))
	cmd.AddCommand(NewSourceCommand(opts))
	cmd.AddCommand(NewIntervalCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the scheduler and HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func (o *RootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath(o.ConfigPath))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
