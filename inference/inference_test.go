package inference

import (
	"context"
	"math"
	"testing"

	"github.com/bio-ontology-research-group/OntoML/embeddings"
	"github.com/bio-ontology-research-group/OntoML/ontology"
	"github.com/bio-ontology-research-group/OntoML/vectordb"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineScorer(t *testing.T) {
	s := CosineScorer{}

	got, err := s.Score([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)

	got, err = s.Score([]float64{1, 2}, []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1-1/(1+math.Exp(-11)), got, 1e-12)

	_, err = s.Score([]float64{1}, []float64{1, 2})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func testTable(t *testing.T) *embeddings.Table {
	table, err := embeddings.NewTable(map[string][]float64{
		"http://protein#A":         {2, 0},
		"http://protein#B":         {3, 0.1},
		"http://protein#C":         {1, 1},
		"http://protein#D":         {-2, 0},
		ontology.FreshPrefix + "0": {2, 0},
		ontology.ThingIRI:          {2, 0},
		ontology.NothingIRI:        {0, 0},
	})
	require.NoError(t, err)
	return table
}

func TestPredictorIndexAndPredict(t *testing.T) {
	ctx := context.Background()
	store := vectordb.NewMemoryVectorStore(&vectordb.VectorStoreConfig{Dimension: 2})
	p := NewPredictor(Config{}, testTable(t), store)

	n, err := p.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, meta, err := store.Get(ctx, ontology.FreshPrefix+"0")
	require.NoError(t, err)
	assert.Equal(t, KindFresh, meta["kind"])

	got, err := p.Predict(ctx, "http://protein#A", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "http://protein#B", got[0].Filler)
	assert.Equal(t, "http://protein#C", got[1].Filler)
	assert.LessOrEqual(t, got[0].Score, got[1].Score)
	assert.Equal(t, ontology.InteractsWithIRI, got[0].Role)

	ax := got[0].Axiom()
	assert.Equal(t, ontology.SubClassOf, ax.Type)

	all, err := p.Predict(ctx, "http://protein#A", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, c := range all {
		assert.NotEqual(t, "http://protein#A", c.Filler)
	}
}

func TestPredictorScoreAxiom(t *testing.T) {
	p := NewPredictor(DefaultConfig(), testTable(t), nil)

	near, err := p.ScoreAxiom(context.Background(), "http://protein#A", "http://protein#B")
	require.NoError(t, err)
	far, err := p.ScoreAxiom(context.Background(), "http://protein#A", "http://protein#D")
	require.NoError(t, err)
	assert.Less(t, near, far)

	_, err = p.ScoreAxiom(context.Background(), "http://protein#A", "http://protein#Z")
	assert.True(t, errors.Is(err, embeddings.ErrUnknownEntity))
}

func TestPredictErrors(t *testing.T) {
	p := NewPredictor(DefaultConfig(), testTable(t), nil)
	_, err := p.Predict(context.Background(), "http://protein#A", 0)
	assert.Error(t, err)

	_, err = p.Predict(context.Background(), "http://protein#Z", 1)
	assert.True(t, errors.Is(err, embeddings.ErrUnknownEntity))
}
