package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bio-ontology-research-group/OntoML/dataset"
	"github.com/bio-ontology-research-group/OntoML/evaluation"
	"github.com/bio-ontology-research-group/OntoML/model"
	"github.com/bio-ontology-research-group/OntoML/testkit"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newStore(t *testing.T) *SQLiteStore {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func trainedModel(t *testing.T, seed int64) *model.Model {
	cfg := model.DefaultConfig()
	cfg.Dim = 6
	cfg.BatchSize = 8
	cfg.Seed = seed
	m, err := model.New(&dataset.Dataset{Training: testkit.FamilyOntology()}, cfg)
	require.NoError(t, err)
	_, err = m.Train(context.Background(), 2)
	require.NoError(t, err)
	return m
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := trainedModel(t, 1)
	cp, err := m.Checkpoint()
	require.NoError(t, err)

	runID, err := s.SaveCheckpoint(ctx, cp)
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err)

	loaded, err := s.LoadCheckpoint(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, cp.Config, loaded.Config)
	assert.Equal(t, cp.Epochs, loaded.Epochs)
	assert.Equal(t, cp.Classes, loaded.Classes)
	assert.Equal(t, cp.Roles, loaded.Roles)
	require.Len(t, loaded.Parameters, len(cp.Parameters))
	for name, p := range cp.Parameters {
		assert.True(t, mat.Equal(p, loaded.Parameters[name]), name)
	}

	fresh, err := model.New(&dataset.Dataset{Training: testkit.FamilyOntology()}, loaded.Config)
	require.NoError(t, err)
	require.NoError(t, fresh.Restore(loaded))
	assert.Equal(t, m.ClassEmbeddings(), fresh.ClassEmbeddings())
}

func TestLoadMissingRun(t *testing.T) {
	s := newStore(t)
	_, err := s.LoadCheckpoint(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = s.LatestRun(context.Background())
	assert.True(t, errors.Is(err, ErrRunNotFound))

	assert.True(t, errors.Is(s.DeleteRun(context.Background(), "nope"), ErrRunNotFound))

	_, err = s.SaveCheckpoint(context.Background(), nil)
	assert.Error(t, err)
}

func TestSaveCheckpointAsRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	cp, err := trainedModel(t, 4).Checkpoint()
	require.NoError(t, err)

	require.NoError(t, s.SaveCheckpointAs(ctx, "run-a", cp))
	assert.Error(t, s.SaveCheckpointAs(ctx, "run-a", cp))

	loaded, err := s.LoadCheckpoint(ctx, "run-a")
	require.NoError(t, err)
	assert.Len(t, loaded.Parameters, len(cp.Parameters))
}

func TestListRunsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	cp, err := trainedModel(t, 2).Checkpoint()
	require.NoError(t, err)

	first, err := s.SaveCheckpoint(ctx, cp)
	require.NoError(t, err)
	second, err := s.SaveCheckpoint(ctx, cp)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, len(cp.Classes), runs[0].Classes)
	assert.Equal(t, cp.Epochs, runs[0].Epochs)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	require.NoError(t, s.DeleteRun(ctx, second))
	latest, err = s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, latest)

	_, err = s.LoadCheckpoint(ctx, second)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRecordEvaluationAndExport(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	cp, err := trainedModel(t, 3).Checkpoint()
	require.NoError(t, err)
	runID, err := s.SaveCheckpoint(ctx, cp)
	require.NoError(t, err)

	res := &evaluation.Result{
		Relation: testkit.InteractsIRI,
		Pairs:    4,
		Raw:      evaluation.Metrics{MeanRank: 3.5, Hits1: 1, Hits10: 4, Hits100: 4, AUC: 0.7},
		Filtered: evaluation.Metrics{MeanRank: 2, Hits1: 2, Hits10: 4, Hits100: 4, AUC: 0.9},
	}
	require.NoError(t, s.RecordEvaluation(ctx, runID, res))

	all, err := s.GetMetrics(ctx, MetricFilter{RunID: runID})
	require.NoError(t, err)
	assert.Len(t, all, 10)

	filtered := true
	mr, err := s.GetMetrics(ctx, MetricFilter{RunID: runID, Name: "mean_rank", Filtered: &filtered})
	require.NoError(t, err)
	require.Len(t, mr, 1)
	assert.Equal(t, 2.0, mr[0].Value)
	assert.True(t, mr[0].Filtered)
	assert.Equal(t, testkit.InteractsIRI, mr[0].Relation)

	page, err := s.GetMetrics(ctx, MetricFilter{RunID: runID, Limit: 3, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, all[2].ID, page[0].ID)

	data, err := s.ExportMetrics(ctx, MetricFilter{RunID: runID}, ExportFormatJSON)
	require.NoError(t, err)
	var decoded []MetricRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 10)

	data, err = s.ExportMetrics(ctx, MetricFilter{RunID: runID}, ExportFormatCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 11)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Run,Relation"))

	_, err = s.ExportMetrics(ctx, MetricFilter{}, "xml")
	assert.Error(t, err)

	// metrics go with their run
	require.NoError(t, s.DeleteRun(ctx, runID))
	all, err = s.GetMetrics(ctx, MetricFilter{RunID: runID})
	require.NoError(t, err)
	assert.Empty(t, all)
}
