package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/entitle/pkg/errors"
)

// newLoginCmd runs the interactive sign-on and stores the authorization.
func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				result, err := a.session.Login(ctx)
				if err != nil {
					return err
				}
				if result.Cancelled() {
					fmt.Fprintln(cmd.OutOrStdout(), "Sign-on cancelled.")
					return nil
				}
				greeting, err := a.session.Greeting(ctx, result.Authorization)
				if err != nil || greeting == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", greeting)
				return nil
			})
		},
	}
}

// newLogoutCmd forgets the stored authorization.
func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored sign-on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.session.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

// newWhoamiCmd prints who is signed in.
func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				auth, err := a.session.Current(ctx)
				if errors.IsNotFoundError(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
					return nil
				}
				if err != nil {
					return err
				}
				greeting, err := a.session.Greeting(ctx, auth)
				if err != nil {
					return err
				}
				if greeting == "" {
					greeting = "an unnamed user"
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Signed in as %s.\n", greeting)
				if !auth.ExpiresAt.IsZero() {
					fmt.Fprintf(out, "Access token expires at %s.\n", auth.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}
