package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/navigator"
	"github.com/dgnsrekt/aria/internal/session"
)

func newOpenCmd(a *app) *cobra.Command {
	var (
		browserName string
		profile     string
		headless    bool
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "open [url]",
		Short: "Start a browser session or reattach to the running one",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.sessions()
			if err != nil {
				return err
			}
			kind, err := m.Kinds().Parse(browserName)
			if err != nil {
				return usageErr(err)
			}

			h, res, err := m.Open(cmd.Context(), session.OpenOptions{
				Kind:     kind,
				Headless: headless,
				Profile:  profile,
				Force:    force,
			})
			if err != nil {
				return navigator.NewError(navigator.CodeBrowser, "browser session unavailable", err)
			}

			out := cmd.OutOrStdout()
			if res == session.AlreadyOpen {
				fmt.Fprintf(out, "%s session already open (%s)\n", kind, h.Descriptor.SessionID)
			} else {
				fmt.Fprintf(out, "Started %s session %s\n", kind, h.Descriptor.SessionID)
			}

			if len(args) == 0 {
				return nil
			}
			nav, err := a.navigator()
			if err != nil {
				return err
			}
			nav.Use(h)
			if err := nav.Navigate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Navigated to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&browserName, "browser", "b", string(browser.Chrome), "browser kind (chrome, chromium, edge, firefox)")
	cmd.Flags().BoolVar(&headless, "headless", false, "run without a visible window")
	cmd.Flags().StringVar(&profile, "profile", "", "browser profile directory")
	cmd.Flags().BoolVar(&force, "force", false, "close a live session of the same kind and start fresh")
	return cmd
}

func newCloseCmd(a *app) *cobra.Command {
	var (
		browserName string
		all         bool
	)
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close the current browser session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.sessions()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var kind browser.Kind
			switch {
			case all:
			case browserName != "":
				if kind, err = m.Kinds().Parse(browserName); err != nil {
					return usageErr(err)
				}
			default:
				current, ok := m.Store().CurrentKind()
				if !ok {
					if left := m.ListActive(); len(left) > 0 {
						fmt.Fprintf(out, "No current session; %s still persisted. Use --browser <kind> or --all.\n", joinKinds(left))
						return nil
					}
					fmt.Fprintln(out, "Nothing to close.")
					return nil
				}
				kind = current
			}

			if n := m.Close(cmd.Context(), kind); n > 0 {
				fmt.Fprintf(out, "Closed %d session(s).\n", n)
				return nil
			}
			fmt.Fprintln(out, "Nothing to close.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&browserName, "browser", "b", "", "close this kind instead of the current one")
	cmd.Flags().BoolVar(&all, "all", false, "close every persisted session")
	cmd.MarkFlagsMutuallyExclusive("browser", "all")
	return cmd
}

func newCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Close persisted sessions whose driver no longer answers",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.sessions()
			if err != nil {
				return err
			}
			n := m.CleanupOrphaned(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned up %d orphaned session(s).\n", n)
			return nil
		},
	}
}

func newSessionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List persisted sessions without probing them",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			list, current, err := svc.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No persisted sessions.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tBROWSER\tSESSION\tENDPOINT\tDRIVER PID")
			for _, d := range list {
				marker := ""
				if d.Browser == current {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", marker, d.Browser, d.SessionID, d.URL, d.DriverPID)
			}
			return w.Flush()
		},
	}
}

func joinKinds(kinds []browser.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
