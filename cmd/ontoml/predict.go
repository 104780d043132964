package main

import (
	"fmt"

	"github.com/bio-ontology-research-group/OntoML/embeddings"
	"github.com/bio-ontology-research-group/OntoML/inference"
	"github.com/bio-ontology-research-group/OntoML/vectordb"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func predictCmd(configPath *string) *cobra.Command {
	var (
		runID string
		topK  int
	)

	cmd := &cobra.Command{
		Use:   "predict HEAD...",
		Short: "Propose HEAD ⊑ ∃r.D axioms from a stored run",
		Args:  cobra.MinimumNArgs(1),
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
			ctx, span := a.obs.StartCommandSpan(cmd.Context(), "predict", runID)
			defer span.End()

			table, err := embeddings.NewTable(m.ClassEmbeddings())
			if err != nil {
				return err
			}
			store := vectordb.NewMemoryVectorStore(&vectordb.VectorStoreConfig{
				Collection: runID,
				Dimension:  table.Dimension(),
			})
			p := inference.NewPredictor(a.cfg.Inference, table, store,
				inference.WithLogger(a.obs.GetLogger().WithRunID(runID)))
			if _, err := p.Index(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, head := range args {
				candidates, err := p.Predict(ctx, head, topK)
				if err != nil {
					return errors.Wrapf(err, "prediction for %s failed", head)
				}
				for _, c := range candidates {
					fmt.Fprintf(out, "%.6f\t%s\n", c.Score, c.Axiom())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (default: latest)")
	cmd.Flags().IntVarP(&topK, "top", "k", 10, "Candidates per head")
	return cmd
}
