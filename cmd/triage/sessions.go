package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/triage/core/config"
	"github.com/dmitrymomot/triage/internal/aggregator"
)

func newSessionsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "s"},
		Short:   "Inspect and manage stored sessions",
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return a.withEngine(cmd.Context(), func(ctx context.Context, e *aggregator.Engine) error {
				sessions, err := e.List(ctx, limit)
				if err != nil {
					return err
				}
				return renderSummaries(cmd.OutOrStdout(), output, sessions)
			})
		},
	}
	list.Flags().Int("limit", 0, "Maximum number of sessions (0 uses the configured default)")

	get := &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session with all collected data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(ctx context.Context, e *aggregator.Engine) error {
				s, err := e.Get(ctx, args[0])
				if err != nil {
					return err
				}
				format := output
				if format == formatTable {
					format = formatYAML
				}
				return render(cmd.OutOrStdout(), format, s)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Long:  "Deletes a session. A collector that is still uploading will re-create it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(ctx context.Context, e *aggregator.Engine) error {
				if err := e.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted\n", args[0])
				return err
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <session-id> <target-name>",
		Short: "Set the operator label of a session",
		Long:  "Sets target_name. An empty name clears the label.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(ctx context.Context, e *aggregator.Engine) error {
				s, err := e.Rename(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if output == formatTable {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "Session %s renamed to %q\n", s.ID, s.TargetName)
					return err
				}
				return render(cmd.OutOrStdout(), output, s.Summary())
			})
		},
	}

	cmd.AddCommand(list, get, del, rename)
	return cmd
}

// withEngine opens the configured store for the duration of fn.
func (a *app) withEngine(ctx context.Context, fn func(context.Context, *aggregator.Engine) error) error {
	var aggCfg aggregator.Config
	if err := config.Load(&aggCfg); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, aggregator.New(store, aggregator.WithConfig(aggCfg), aggregator.WithLogger(a.log)))
}
