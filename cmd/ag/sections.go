package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/agreements/internal/ui"
)

var sectionsCmd = &cobra.Command{
	Use:     "sections",
	Short:   "Print the rule sections in reading order",
	GroupID: "agreements",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sections, err := agClient.Sections(context.Background())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, sections)
		}
		for _, s := range sections {
			fmt.Fprintf(out, "%s %s %s\n", ui.RenderAccent(fmt.Sprintf("%d.", s.Ordinal)), s.Title, ui.RenderMuted("("+s.ID+")"))
		}
		return nil
	},
}

var templateCmd = &cobra.Command{
	Use:     "template",
	Short:   "Print the member auction post template",
	GroupID: "agreements",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := agClient.Template(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"template": tmpl})
		}
		fmt.Fprint(cmd.OutOrStdout(), tmpl)
		return nil
	},
}
