package nn

import (
	"math/rand"
	"testing"

	"github.com/bio-ontology-research-group/OntoML/autodiff"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestEmbeddingLookup(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	emb := NewEmbedding("classes", 5, 3, rng)
	assert.Equal(t, 5, emb.Size())
	assert.Equal(t, 3, emb.Dim())

	tape := autodiff.NewTape()
	rows, err := emb.Lookup(tape, []int{4, 0})
	require.NoError(t, err)

	r, c := rows.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, emb.Row(4), rows.Value.RawRowView(0))

	require.NoError(t, tape.Backward(tape.Sum(rows)))
	assert.Equal(t, []float64{1, 1, 1}, emb.Weight.Grad.RawRowView(0))
	assert.Equal(t, []float64{0, 0, 0}, emb.Weight.Grad.RawRowView(1))
}

func TestEmbeddingLookupOutOfRange(t *testing.T) {
	emb := NewEmbedding("classes", 2, 2, rand.New(rand.NewSource(1)))

	_, err := emb.Lookup(autodiff.NewTape(), []int{2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestMLPShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := NewMLP("net", rng, 6, 8, 3)
	assert.Len(t, m.Layers, 2)
	assert.Len(t, m.Parameters(), 4)

	tape := autodiff.NewTape()
	x := tape.Constant(mat.NewDense(4, 6, nil))
	out := m.Forward(tape, x)

	r, c := out.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
}

func TestParameterLoad(t *testing.T) {
	p := NewParameter("w", 2, 2)
	require.NoError(t, p.Load(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	assert.Equal(t, 4.0, p.Value.At(1, 1))

	err := p.Load(mat.NewDense(1, 2, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape")
}

func TestOptimizersReduceQuadratic(t *testing.T) {
	for _, name := range []string{"sgd", "adam"} {
		t.Run(name, func(t *testing.T) {
			p := NewParameter("x", 1, 2)
			require.NoError(t, p.Load(mat.NewDense(1, 2, []float64{3, -2})))

			opt, err := NewOptimizer(name, []*Parameter{p}, 0.1)
			require.NoError(t, err)

			loss := func() float64 {
				tape := autodiff.NewTape()
				x := p.Bind(tape)
				l := tape.Sum(tape.MulElem(x, x))
				require.NoError(t, tape.Backward(l))
				return l.Scalar()
			}

			first := loss()
			opt.Step()
			for i := 0; i < 50; i++ {
				opt.ZeroGrad()
				loss()
				opt.Step()
			}
			opt.ZeroGrad()
			assert.Less(t, loss(), first)
		})
	}
}

func TestNewOptimizerErrors(t *testing.T) {
	_, err := NewOptimizer("adam", nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "learning rate must be positive")

	_, err = NewOptimizer("lbfgs", nil, 0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOptimizer))
}
