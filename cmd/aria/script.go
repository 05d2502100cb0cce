package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/aria/internal/scripts"
)

func newScriptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Manage and run saved prompt scripts",
		Long: `Scripts are saved prompts. A prompt may contain {{name}} placeholders filled
from key=value arguments and {{env:NAME}} placeholders filled from the
environment, plus @tab and @tag references resolved when the script runs.`,
	}
	cmd.AddCommand(
		newScriptCreateCmd(a),
		newScriptListCmd(a),
		newScriptShowCmd(a),
		newScriptRunCmd(a),
		newScriptRemoveCmd(a),
	)
	return cmd
}

func newScriptCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <prompt>",
		Short: "Save a new prompt script",
		Args:  minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.scripts()
			if err != nil {
				return err
			}
			sc, err := store.Create(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created script %s\n", sc.Name)
			return nil
		},
	}
}

func newScriptListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved scripts",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.scripts()
			if err != nil {
				return err
			}
			list, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No scripts.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCREATED\tPLACEHOLDERS")
			for _, sc := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", sc.Name, sc.CreatedAt.Format("2006-01-02 15:04"), strings.Join(scripts.Placeholders(sc.Prompt), ","))
			}
			return w.Flush()
		},
	}
}

func newScriptShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a script's prompt",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.scripts()
			if err != nil {
				return err
			}
			sc, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sc.Prompt)
			return nil
		},
	}
}

func newScriptRunCmd(a *app) *cobra.Command {
	var (
		format string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:     "run <name> [key=value...]",
		Short:   "Fill a script's placeholders and ask the language model",
		Example: `  aria script run summarize topic=pricing`,
		Args:    minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.scripts()
			if err != nil {
				return err
			}
			sc, err := store.Get(args[0])
			if err != nil {
				return err
			}
			params, err := scripts.ParseParams(args[1:])
			if err != nil {
				return err
			}
			if a.interactive() {
				if err := scripts.AskMissing(cmd.InOrStdin(), cmd.ErrOrStderr(), sc.Prompt, params); err != nil {
					return err
				}
			}
			text, err := scripts.Apply(sc.Prompt, params)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}
			return ask(cmd, a, text, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "answer format (text, markdown, json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the filled prompt without asking")
	return cmd
}

func newScriptRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved script",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.scripts()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed script %s\n", args[0])
			return nil
		},
	}
}
