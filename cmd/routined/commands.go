package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-routines/internal/auth"
	"github.com/nerrad567/gray-logic-routines/internal/routine"
	"github.com/nerrad567/gray-logic-routines/internal/settings"
	"github.com/nerrad567/gray-logic-routines/internal/source"
)

// NewRoutineCommand creates the routine command group.
func NewRoutineCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routine",
		Short: "Inspect and run routines",
	}
	cmd.AddCommand(newRoutineListCommand(opts))
	cmd.AddCommand(newRoutineRunCommand(opts))
	return cmd
}

func newRoutineListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List stored routines",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			registry := routine.NewRegistry(cfg.Data.RoutinesFile)
			if err := registry.Load(cmd.Context()); err != nil {
				return fmt.Errorf("loading routines: %w", err)
			}
			return printRoutines(cmd.OutOrStdout(), registry.List(cmd.Context()))
		},
	}
}

func printRoutines(out io.Writer, routines []routine.Routine) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tTRIGGER\tACTIONS\tLAST RUN")
	for _, rt := range routines {
		last := "-"
		if rt.LastRunAt != nil {
			last = rt.LastRunAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d\t%s\n",
			rt.ID, rt.Name, rt.Enabled, describeTrigger(rt.Trigger), len(rt.Actions), last)
	}
	return tw.Flush()
}

func describeTrigger(t routine.Trigger) string {
	if t.Type == routine.TriggerInterval {
		return fmt.Sprintf("every %dm", t.IntervalMinutes())
	}
	if len(t.Weekdays) == 0 {
		return "daily " + t.Time
	}
	days := make([]string, len(t.Weekdays))
	for i, d := range t.Weekdays {
		days[i] = time.Weekday(d).String()[:3]
	}
	return fmt.Sprintf("%s %v", t.Time, days)
}

func newRoutineRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "run <id>",
		Short:        "Run a routine now and print each action result",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			log := cliLogger(cfg)

			db, repo, err := openActivity(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // CLI exit

			st, err := buildStack(ctx, cfg, log)
			if err != nil {
				return err
			}

			results, err := st.newScheduler(repo).RunNow(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"results": results})
		},
	}
}

// NewSourceCommand creates the source command group.
func NewSourceCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage device-control credential sources",
	}
	cmd.AddCommand(newSourceListCommand(opts))
	cmd.AddCommand(newSourceSetCommand(opts))
	return cmd
}

func newSourceListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List sources with masked tokens",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := buildStack(cmd.Context(), cfg, cliLogger(cfg))
			if err != nil {
				return err
			}
			views, err := st.sources.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tENABLED\tTOKEN")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", v.ID, v.Label, v.Enabled, v.TokenHint)
			}
			return tw.Flush()
		},
	}
}

// sourceSetOptions holds flags for source set.
type sourceSetOptions struct {
	ID      string
	Label   string
	Token   string
	Enabled bool
}

func newSourceSetCommand(opts *RootOptions) *cobra.Command {
	so := &sourceSetOptions{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a source",
		Long: `Create or update a credential source. Only flags that are given are changed.

Examples:
  routined source set --label "Main hub" --token "$TOKEN"
  routined source set --id 3f1c... --enabled=false`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := buildStack(cmd.Context(), cfg, cliLogger(cfg))
			if err != nil {
				return err
			}

			req := source.Upsert{ID: so.ID}
			flags := cmd.Flags()
			if flags.Changed("label") {
				req.Label = &so.Label
			}
			if flags.Changed("token") {
				req.Token = &so.Token
			}
			if flags.Changed("enabled") {
				req.Enabled = &so.Enabled
			}

			view, err := st.sources.Upsert(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&so.ID, "id", "", "source id (empty creates a new source)")
	cmd.Flags().StringVar(&so.Label, "label", "", "display label")
	cmd.Flags().StringVar(&so.Token, "token", "", "device api token")
	cmd.Flags().BoolVar(&so.Enabled, "enabled", true, "whether the source may be used")

	return cmd
}

// NewIntervalCommand creates the interval command group. A running service
// picks up changes through its settings file watcher.
func NewIntervalCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interval",
		Short: "Show or change the routine check interval",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "get",
		Short:        "Print the check interval in milliseconds",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.IntervalMS())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "set <ms>",
		Short:        "Set the check interval; out-of-range values are clamped",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("interval must be an integer number of milliseconds: %w", err)
			}
			store, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			applied, err := store.SetInterval(ms)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), applied)
			return nil
		},
	})

	return cmd
}

func (o *RootOptions) settings(cmd *cobra.Command) (*settings.Store, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	store := settings.NewStore(cfg.Data.SettingsFile, cfg.Scheduler.CheckIntervalMS)
	if err := store.Load(cmd.Context()); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return store, nil
}

// tokenOptions holds flags for the token command.
type tokenOptions struct {
	Subject string
	Role    string
	TTL     time.Duration
}

// NewTokenCommand creates the token command, which mints an API bearer token.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	to := &tokenOptions{}

	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Mint an API bearer token",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			tok, err := auth.IssueToken(to.Subject, auth.Role(to.Role), cfg.Security.JWT.Secret, to.TTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&to.Subject, "subject", "operator", "token subject")
	cmd.Flags().StringVar(&to.Role, "role", string(auth.RoleOwner), "owner or viewer")
	cmd.Flags().DurationVar(&to.TTL, "ttl", auth.DefaultTTL, "token lifetime")

	return cmd
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
