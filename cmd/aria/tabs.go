package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTabsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "List, switch, open and tag tabs of the current session",
	}
	cmd.AddCommand(
		newTabsListCmd(a),
		newTabsGotoCmd(a),
		newTabsOpenCmd(a),
		newTabsTagCmd(a),
		newTabsTaggedCmd(a),
	)
	return cmd
}

func newTabsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open tabs",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			list, err := svc.ListTabs(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tINDEX\tTITLE\tURL\tTAGS")
			for _, t := range list {
				marker := ""
				if t.Active {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", marker, t.Index, t.Title, t.URL, strings.Join(t.Tags, ","))
			}
			return w.Flush()
		},
	}
}

func newTabsGotoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "goto <index|handle|title|url|tag>",
		Short: "Switch to a tab",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			handle, err := svc.GotoTab(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to tab %s\n", handle)
			return nil
		},
	}
}

func newTabsOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open [url]",
		Short: "Open a new tab and make it active",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			handle, err := svc.OpenTab(cmd.Context(), url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened tab %s\n", handle)
			return nil
		},
	}
}

func newTabsTagCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <tab> <tag>",
		Short: "Tag a tab so prompts can reference it as @tag:<tag>",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if err := svc.TagTab(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tagged tab %s with %q\n", args[0], args[1])
			return nil
		},
	}
}

func newTabsTaggedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tagged <tag>",
		Short: "List handles of live tabs carrying a tag",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			handles, err := svc.TabsByTag(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(handles) == 0 {
				fmt.Fprintf(out, "No tabs tagged %q.\n", args[0])
				return nil
			}
			for _, h := range handles {
				fmt.Fprintln(out, h)
			}
			return nil
		},
	}
}
