package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aria",
		Short: "Drive a persistent browser session from the command line",
		Long: `aria starts a browser once and keeps it running between invocations.
Later commands reattach to it to navigate, read pages, switch and tag tabs,
or ask a language model about the content of referenced tabs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageErr(err) })

	cmd.AddCommand(
		newOpenCmd(a),
		newCloseCmd(a),
		newCleanupCmd(a),
		newSessionsCmd(a),
		newTabsCmd(a),
		newNavigateCmd(a),
		newContentCmd(a),
		newLinksCmd(a),
		newAskCmd(a),
		newScreenshotCmd(a),
		newScriptCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageErr(cobra.ExactArgs(n)(cmd, args))
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageErr(cobra.MaximumNArgs(n)(cmd, args))
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageErr(cobra.MinimumNArgs(n)(cmd, args))
	}
}
