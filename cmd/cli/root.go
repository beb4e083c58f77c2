// Package cli implements the entitle command-line client.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	format     string
	token      string
}

// NewRootCommand builds the `entitle` command tree.
// NewRootCommand 构建 `entitle` 命令树。
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "entitle",
		Short: "Sign in with OAuth 2.0 and check, consume or release entitlements.",
		Long: `entitle signs in against an OAuth 2.0 identity provider through the browser
and uses the resulting access token to ask the entitlement service whether
named items are granted. Consumed grants are tracked locally until released.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "", "decision format: jwt, json or plain (default from config)")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "access token to use instead of the stored sign-on")

	rootCmd.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newCheckCmd(opts),
		newConsumeCmd(opts),
		newReleaseCmd(opts),
		newReleasePendingCmd(opts),
		newPendingCmd(opts),
	)
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// It parses the command-line arguments and executes the matching command.
// If an error occurs, it prints the error and exits.
// Execute 是 CLI 应用程序的主入口点。
// 它解析命令行参数并执行相应的命令，如果发生错误，它会打印错误并退出。
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
