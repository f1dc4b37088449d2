package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thalesfsp/bayesopt/internal/objective"
)

func newProblemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "List the benchmark problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			fmt.Fprintln(w, "NAME\tDIM\tBOUNDS\tMINIMUM\tDESCRIPTION")

			for _, p := range objective.All() {
				fmt.Fprintf(w, "%s\t%d\t%v\t%g\t%s\n", p.Name, p.Bounds.Dim(), p.Bounds, p.Minimum, p.Description)
			}

			return w.Flush()
		},
	}
}
