package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/pkg/constants"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check ITEM...",
		Short: "Ask whether items are granted without consuming them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decide(cmd, opts, args, false, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decoded decisions as JSON")
	return cmd
}

func newConsumeCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "consume ITEM...",
		Short: "Consume grants for items; granted consumptions are tracked until released",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decide(cmd, opts, args, true, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decoded decisions as JSON")
	return cmd
}

func decide(cmd *cobra.Command, opts *rootOptions, items []string, consume bool, asJSON bool) error {
	return run(cmd, opts, func(ctx context.Context, a *app) error {
		bearer, err := a.bearer(ctx)
		if err != nil {
			return err
		}
		decisions, err := a.entitlements.CheckOrConsume(ctx, bearer, items, consume, a.format)
		// A short batch still prints the decisions that did arrive.
		if len(decisions) > 0 {
			if perr := printDecisions(cmd.OutOrStdout(), decisions, asJSON); perr != nil {
				return perr
			}
		}
		return err
	})
}

func newReleaseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release JTI",
		Short: "Release one consumed grant by its token id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				bearer, err := a.bearer(ctx)
				if err != nil {
					return err
				}
				if _, err := a.entitlements.Release(ctx, bearer, args[0], a.format); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %s.\n", args[0])
				return nil
			})
		},
	}
}

func newReleasePendingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release-pending",
		Short: "Release every tracked consumption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				bearer, err := a.bearer(ctx)
				if err != nil {
					return err
				}
				outcomes, err := a.entitlements.ReleasePending(ctx, bearer, a.format)
				if err != nil {
					return err
				}
				return printOutcomes(cmd.OutOrStdout(), outcomes)
			})
		},
	}
}

func newPendingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List consumptions awaiting release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				pending, err := a.entitlements.Pending(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
				fmt.Fprintln(w, "JTI\tITEM\tCONSUMED")
				for _, p := range pending {
					fmt.Fprintf(w, "%s\t%s\t%s\n", p.TokenID, p.Item, p.ConsumedAt.Local().Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}

func printDecisions(out io.Writer, decisions []*models.AuthorizationDecision, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(decisions)
	}

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tVERDICT\tJTI\tREASON")
	for _, d := range decisions {
		verdict := "denied"
		granted, err := d.IsGranted()
		switch {
		case err != nil:
			verdict = "invalid"
		case granted:
			verdict = "granted"
		}
		jti, _ := d.TokenID()
		reason, _, _ := d.String(constants.DecisionFieldReason)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Item(), verdict, dash(jti), dash(reason))
	}
	return w.Flush()
}

func printOutcomes(out io.Writer, outcomes []models.ReleaseOutcome) error {
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JTI\tITEM\tRESULT")
	var failed int
	for _, o := range outcomes {
		result := "released"
		if o.Err != nil {
			failed++
			result = o.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.TokenID, dash(o.Item), result)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d releases failed", failed, len(outcomes))
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
