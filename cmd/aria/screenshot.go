package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newScreenshotCmd(a *app) *cobra.Command {
	var (
		notes string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture the active tab and store it",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			meta, err := svc.Screenshot(cmd.Context(), notes)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Saved screenshot %s of %s (%d bytes)\n", meta.ID, meta.URL, meta.SizeBytes)
			if out == "" {
				return nil
			}
			data, _, err := svc.ReadScreenshot(cmd.Context(), meta.ID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(w, "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-form annotation stored with the screenshot")
	cmd.Flags().StringVarP(&out, "output", "o", "", "also copy the image to this file")

	cmd.AddCommand(newScreenshotListCmd(a), newScreenshotDeleteCmd(a))
	return cmd
}

func newScreenshotListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored screenshots, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			list, err := svc.ListScreenshots(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No screenshots.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tBROWSER\tURL\tNOTES")
			for _, m := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Browser, m.URL, m.Notes)
			}
			return w.Flush()
		},
	}
}

func newScreenshotDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored screenshot",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if err := svc.DeleteScreenshot(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted screenshot %s\n", args[0])
			return nil
		},
	}
}
