package main

import (
	"fmt"

	"github.com/bio-ontology-research-group/OntoML/evaluation"
	"github.com/bio-ontology-research-group/OntoML/pkg/tracing"
	"github.com/spf13/cobra"
)

func evaluateCmd(configPath *string) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Rank held-out interactions with a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			m, runID, err := a.restore(cmd.Context(), runID)
			if err != nil {
				return err
			}
			ctx, span := a.obs.StartCommandSpan(cmd.Context(), "evaluate", runID)
			defer span.End()

			ev, err := evaluation.NewEvaluator(a.cfg.Evaluation,
				evaluation.WithLogger(a.obs.GetLogger().WithRunID(runID)),
				evaluation.WithMetrics(a.obs.GetMetrics()),
				evaluation.WithTracer(a.obs.GetTracer()),
			)
			if err != nil {
				return err
			}
			defer ev.Close()

			res, err := ev.EvaluatePPI(ctx, m)
			if err != nil {
				tracing.RecordSpanError(span, err)
				return err
			}
			if err := a.store.RecordEvaluation(ctx, runID, res); err != nil {
				return err
			}
			tracing.RecordSpanSuccess(span)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s, relation %s, %d pairs (%d skipped)\n", runID, res.Relation, res.Pairs, res.Skipped)
			for _, row := range []struct {
				label string
				m     evaluation.Metrics
			}{{"raw", res.Raw}, {"filtered", res.Filtered}} {
				mr, h1, h10, h100 := row.m.Tuple()
				fmt.Fprintf(out, "%-9s mean_rank=%.2f rank@1=%d rank@10=%d rank@100=%d auc=%.4f\n",
					row.label, mr, h1, h10, h100, row.m.AUC)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (default: latest)")
	return cmd
}
