package losses

import (
	"math/rand"
	"testing"

	"github.com/bio-ontology-research-group/OntoML/autodiff"
	"github.com/bio-ontology-research-group/OntoML/catnet"
	"github.com/bio-ontology-research-group/OntoML/core"
	"github.com/bio-ontology-research-group/OntoML/nn"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	numClasses = 12
	numRoles   = 3
	dim        = 4
)

func newModel(seed int64) Model {
	rng := rand.New(rand.NewSource(seed))
	return Model{
		Classes: nn.NewEmbedding("classes", numClasses, dim, rng),
		Roles:   nn.NewEmbedding("roles", numRoles, dim, rng),
		Nets:    catnet.NewNets(catnet.Config{Dim: dim}, rng),
	}
}

func batchFor(t *testing.T, kind core.Kind, n int, rng *rand.Rand) core.Batch {
	rows := make([][]int, n)
	for i := range rows {
		row := make([]int, kind.Arity())
		for col := range row {
			if kind.IsRole(col) {
				row[col] = rng.Intn(numRoles)
			} else {
				row[col] = rng.Intn(numClasses)
			}
		}
		rows[i] = row
	}
	b, err := core.NewBatch(kind, rows)
	require.NoError(t, err)
	return b
}

func TestClassify(t *testing.T) {
	for _, k := range core.Kinds() {
		h, err := Classify(k)
		require.NoError(t, err, k.String())
		assert.Equal(t, k, h.Kind)
		assert.NotNil(t, h.Positive)
	}

	_, err := Classify(core.Kind(42))
	assert.True(t, errors.Is(err, core.ErrUnknownKind))
}

func TestPositiveLossEveryKind(t *testing.T) {
	m := newModel(1)
	rng := rand.New(rand.NewSource(2))

	for _, k := range core.Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			h, err := Classify(k)
			require.NoError(t, err)

			tape := autodiff.NewTape()
			loss, err := h.Loss(tape, m, batchFor(t, k, 5, rng))
			require.NoError(t, err)
			r, c := loss.Dims()
			assert.Equal(t, 1, r)
			assert.Equal(t, 1, c)
			assert.GreaterOrEqual(t, loss.Scalar(), 0.0)
			require.NoError(t, tape.Backward(loss))
		})
	}
}

func TestGCI0PositiveLossIgnoresRowOrder(t *testing.T) {
	m := newModel(3)
	h, err := Classify(core.GCI0)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(4))
	for trial := 0; trial < 5; trial++ {
		b := batchFor(t, core.GCI0, 8, rng)
		shuffled := b.Clone()
		rng.Shuffle(len(shuffled.Rows), func(i, j int) {
			shuffled.Rows[i], shuffled.Rows[j] = shuffled.Rows[j], shuffled.Rows[i]
		})

		l1, err := h.Loss(autodiff.NewTape(), m, b)
		require.NoError(t, err)
		l2, err := h.Loss(autodiff.NewTape(), m, shuffled)
		require.NoError(t, err)
		assert.InDelta(t, l1.Scalar(), l2.Scalar(), 1e-9)
	}
}

func TestPositiveLossIsDeterministic(t *testing.T) {
	m := newModel(5)
	b := batchFor(t, core.GCI2, 6, rand.New(rand.NewSource(6)))
	h, err := Classify(core.GCI2)
	require.NoError(t, err)

	l1, err := h.Loss(autodiff.NewTape(), m, b)
	require.NoError(t, err)
	l2, err := h.Loss(autodiff.NewTape(), m, b)
	require.NoError(t, err)
	assert.Equal(t, l1.Scalar(), l2.Scalar())
}

func TestSamplerCorruptsExactlyOneEligibleColumn(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, k := range core.Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			s, err := NewSampler(rand.New(rand.NewSource(42)), numClasses)
			require.NoError(t, err)

			for call := 0; call < 20; call++ {
				b := batchFor(t, k, 10, rng)
				neg, col, err := s.Corrupt(b)
				require.NoError(t, err)
				assert.Contains(t, k.Layout().Eligible, col)
				require.Equal(t, b.Len(), neg.Len())

				for i, row := range neg.Rows {
					for j, v := range row {
						if j == col {
							assert.GreaterOrEqual(t, v, 0)
							assert.Less(t, v, numClasses)
							continue
						}
						assert.Equal(t, b.Rows[i][j], v, "column %d must be untouched", j)
					}
				}
			}
		})
	}
}

func TestSamplerPicksBothPositions(t *testing.T) {
	s, err := NewSampler(rand.New(rand.NewSource(1)), numClasses)
	require.NoError(t, err)
	b := batchFor(t, core.GCI2, 3, rand.New(rand.NewSource(2)))

	seen := make(map[int]int)
	for i := 0; i < 200; i++ {
		_, col, err := s.Corrupt(b)
		require.NoError(t, err)
		seen[col]++
	}
	assert.Len(t, seen, 2)
	assert.Greater(t, seen[0], 50)
	assert.Greater(t, seen[2], 50)
}

func TestSamplerIsReproducible(t *testing.T) {
	b := batchFor(t, core.GCI1, 4, rand.New(rand.NewSource(9)))

	s1, err := NewSampler(rand.New(rand.NewSource(100)), numClasses)
	require.NoError(t, err)
	s2, err := NewSampler(rand.New(rand.NewSource(100)), numClasses)
	require.NoError(t, err)

	n1, c1, err := s1.Corrupt(b)
	require.NoError(t, err)
	n2, c2, err := s2.Corrupt(b)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.Equal(t, n1.Rows, n2.Rows)
}

func TestNewSamplerErrors(t *testing.T) {
	_, err := NewSampler(nil, 3)
	require.Error(t, err)
	_, err = NewSampler(rand.New(rand.NewSource(1)), 0)
	require.Error(t, err)
}

func TestObjective(t *testing.T) {
	m := newModel(11)
	h, err := Classify(core.GCI3)
	require.NoError(t, err)
	s, err := NewSampler(rand.New(rand.NewSource(12)), numClasses)
	require.NoError(t, err)

	tape := autodiff.NewTape()
	b := batchFor(t, core.GCI3, 4, rand.New(rand.NewSource(13)))
	total, pos, neg, err := h.Objective(tape, m, b, s, 1.0)
	require.NoError(t, err)

	hinge := 1.0 - neg.Scalar()
	if hinge < 0 {
		hinge = 0
	}
	assert.InDelta(t, pos.Scalar()+hinge, total.Scalar(), 1e-9)
	require.NoError(t, tape.Backward(total))
}

func TestHandlerRejectsMismatchedBatches(t *testing.T) {
	m := newModel(1)
	h, err := Classify(core.GCI0)
	require.NoError(t, err)

	_, err = h.Loss(autodiff.NewTape(), m, core.Batch{Kind: core.GCI0})
	require.Error(t, err)

	b := batchFor(t, core.GCI1, 2, rand.New(rand.NewSource(1)))
	_, err = h.Loss(autodiff.NewTape(), m, b)
	require.Error(t, err)

	out := core.Batch{Kind: core.GCI0, Rows: [][]int{{0, numClasses}}}
	_, err = h.Loss(autodiff.NewTape(), m, out)
	assert.True(t, errors.Is(err, nn.ErrIndexOutOfRange))
}
