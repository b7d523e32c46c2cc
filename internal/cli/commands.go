package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"schedsync/internal/app"
)

func newSyncCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logs, err := o.newApp()
			if err != nil {
				return err
			}
			defer logs.Close()
			defer a.Close()

			rep, err := a.SyncOnce(cmd.Context())
			if len(rep.Outcomes) > 0 {
				if rerr := renderOutcomes(o.stdout, o.output, rep); rerr != nil {
					return errors.Join(err, rerr)
				}
			}
			return err
		},
	}
}

func newPlanCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what sync would do without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logs, err := o.newApp()
			if err != nil {
				return err
			}
			defer logs.Close()
			defer a.Close()

			plan, err := a.Plan(cmd.Context())
			if len(plan) > 0 {
				if rerr := renderPlan(o.stdout, o.output, plan); rerr != nil {
					return errors.Join(err, rerr)
				}
			}
			return err
		},
	}
}

func newValidateCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and build every schedule without contacting Temporal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logs, err := o.newApp()
			if err != nil {
				return err
			}
			defer logs.Close()
			defer a.Close()

			defs, err := a.Validate()
			if err != nil {
				return err
			}
			return renderDefinitions(o.stdout, o.output, defs)
		},
	}
}

func newWatchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run sync periodically and on config changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logs, err := o.newApp()
			if err != nil {
				return err
			}
			defer logs.Close()
			defer a.Close()

			reason, err := a.Watch(cmd.Context())
			if reason == app.StopSignal {
				return nil
			}
			return err
		},
	}
}
