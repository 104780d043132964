package main

import (
	"fmt"
	"os"

	"github.com/bio-ontology-research-group/OntoML/ontology"
	"github.com/spf13/cobra"
)

func normalizeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Rewrite a YAML corpus into normal-form axioms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := ontology.LoadFile(args[0])
			if err != nil {
				return err
			}
			axioms, stats := ontology.Normalize(o)

			normal := &ontology.Ontology{Name: o.Name + "-normalized"}
			for _, a := range axioms {
				normal.Add(a.Axiom())
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := ontology.Write(out, normal); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "axioms=%d emitted=%d skipped=%d tautologies=%d fresh=%d\n",
				stats.Axioms, stats.Emitted, stats.Skipped, stats.Tautologies, stats.Fresh)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the normalized corpus here instead of stdout")
	return cmd
}
