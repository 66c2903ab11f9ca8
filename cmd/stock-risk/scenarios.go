package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newScenariosCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the stress scenarios in the configured catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFACTOR\tSHOCK")
			for _, s := range a.Catalog.Scenarios() {
				for _, f := range s.Factors() {
					fmt.Fprintf(tw, "%s\t%s\t%+.1f%%\n", s.Name, f, s.Shocks[f]*100)
				}
			}
			return tw.Flush()
		},
	}
}
