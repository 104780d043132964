package main

import (
	"fmt"

	"github.com/bio-ontology-research-group/OntoML/pkg/tracing"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func trainCmd(configPath *string) *cobra.Command {
	var epochs int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train embeddings and store a checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			runID := uuid.NewString()
			ctx, span := a.obs.StartCommandSpan(cmd.Context(), "train", runID)
			defer span.End()

			ds, err := a.loadDataset()
			if err != nil {
				return err
			}
			m, err := a.newModel(ds, a.cfg.Model)
			if err != nil {
				return err
			}
			if epochs <= 0 {
				epochs = a.cfg.Model.Epochs
			}
			history, err := m.Train(ctx, epochs)
			if err != nil {
				tracing.RecordSpanError(span, err)
				return err
			}

			out := cmd.OutOrStdout()
			if n := len(history); n > 0 {
				fmt.Fprintf(out, "final training loss: %.6f\n", history[n-1].Loss)
			}
			if ds.Validation != nil {
				loss, err := m.ValidationLoss(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "validation loss: %.6f\n", loss)
			}

			cp, err := m.Checkpoint()
			if err != nil {
				return err
			}
			if err := a.store.SaveCheckpointAs(ctx, runID, cp); err != nil {
				return err
			}
			tracing.RecordSpanSuccess(span)
			fmt.Fprintf(out, "run: %s\n", runID)
			return nil
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Override model.epochs")
	return cmd
}
