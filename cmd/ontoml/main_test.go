package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bio-ontology-research-group/OntoML/ontology"
	"github.com/bio-ontology-research-group/OntoML/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOntology(t *testing.T, dir, name string, o *ontology.Ontology) string {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, ontology.Write(f, o))
	return path
}

func execute(t *testing.T, args ...string) string {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Contains(t, execute(t, "version"), Version)
}

func TestNormalizeCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeOntology(t, dir, "family.yaml", testkit.FamilyOntology())
	out := filepath.Join(dir, "normal.yaml")

	stderr := execute(t, "normalize", in, "-o", out)
	assert.Contains(t, stderr, "emitted=15")

	normal, err := ontology.LoadFile(out)
	require.NoError(t, err)
	assert.Len(t, normal.Axioms, 15)
}

func TestTrainEvaluatePredict(t *testing.T) {
	dir := t.TempDir()
	train, test := testkit.PPI(8)
	cfgPath := filepath.Join(dir, "ontoml.yaml")
	cfg := fmt.Sprintf(`
model:
  dim: 8
  batch_size: 16
  epochs: 2
data:
  training: %s
  testing: %s
logging:
  level: error
store:
  path: %s
`, writeOntology(t, dir, "train.yaml", train), writeOntology(t, dir, "test.yaml", test), filepath.Join(dir, "runs.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out := execute(t, "--config", cfgPath, "train")
	require.Contains(t, out, "run: ")
	runID := strings.TrimSpace(out[strings.LastIndex(out, "run: ")+len("run: "):])

	out = execute(t, "--config", cfgPath, "evaluate")
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "8 pairs")
	assert.Contains(t, out, "filtered")

	out = execute(t, "--config", cfgPath, "predict", "--run", runID, "-k", "3", testkit.Protein(0))
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
	assert.Contains(t, out, testkit.InteractsIRI)

	out = execute(t, "--config", cfgPath, "runs")
	assert.Contains(t, out, runID)

	out = execute(t, "--config", cfgPath, "runs", "export", "--run", runID)
	assert.Contains(t, out, "mean_rank")
}
