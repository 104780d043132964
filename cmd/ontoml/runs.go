package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/bio-ontology-research-group/OntoML/store"
	"github.com/spf13/cobra"
)

func runsCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCREATED\tEPOCHS\tDIM\tCLASSES\tROLES")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Epochs, r.Config.Dim, r.Classes, r.Roles)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")

	cmd.AddCommand(exportCmd(configPath))
	return cmd
}

func exportCmd(configPath *string) *cobra.Command {
	var (
		runID  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored evaluation metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.store.ExportMetrics(cmd.Context(), store.MetricFilter{RunID: runID}, store.ExportFormat(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only this run")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or json")
	return cmd
}
