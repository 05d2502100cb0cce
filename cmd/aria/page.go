package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newNavigateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <url>",
		Short: "Load a URL in the active tab",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if err := svc.Navigate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Navigated to %s\n", args[0])
			return nil
		},
	}
}

func newContentCmd(a *app) *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Print the visible text of the active tab",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			c, err := svc.Capture(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if site == "" {
				fmt.Fprintln(out, c.Content)
				return nil
			}
			path, err := a.contentStore().Save(site, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s (%d bytes) to %s\n", c.URL, len(c.Content), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "save", "", "append the capture to the named site's content log instead of printing it")
	return cmd
}

func newLinksCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "links",
		Short: "List the links of the active tab",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			links, err := svc.Links(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(links)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, l := range links {
				fmt.Fprintf(w, "%s\t%s\n", strings.Join(strings.Fields(l.Text), " "), l.Href)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print links as JSON")
	return cmd
}

func newAskCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask the language model, using @tab and @tag references as context",
		Example: `  aria ask "summarize @tab:0"
  aria ask "compare @tag:docs with @tab:Pricing" --format markdown`,
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ask(cmd, a, strings.Join(args, " "), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "answer format (text, markdown, json)")
	return cmd
}

func ask(cmd *cobra.Command, a *app, text, format string) error {
	gen, err := a.generator()
	if err != nil {
		return err
	}
	nav, err := a.navigator()
	if err != nil {
		return err
	}
	answer, err := nav.Ask(cmd.Context(), gen, text, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
