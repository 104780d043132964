package autodiff

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

// checkGradient compares the analytic gradient of f with respect to x against
// central finite differences.
func checkGradient(t *testing.T, x *mat.Dense, f func(tape *Tape, x *Variable) *Variable) {
	t.Helper()

	r, c := x.Dims()
	grad := mat.NewDense(r, c, nil)
	tape := NewTape()
	loss := f(tape, tape.Leaf(x, grad))
	require.NoError(t, tape.Backward(loss))

	const h = 1e-6
	eval := func() float64 {
		tp := NewTape()
		return f(tp, tp.Constant(x)).Scalar()
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			orig := x.At(i, j)
			x.Set(i, j, orig+h)
			up := eval()
			x.Set(i, j, orig-h)
			down := eval()
			x.Set(i, j, orig)

			numeric := (up - down) / (2 * h)
			assert.InDelta(t, numeric, grad.At(i, j), 1e-4, "d/dx[%d,%d]", i, j)
		}
	}
}

func TestGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := randomDense(rng, 4, 3)
	bias := randomDense(rng, 1, 3)
	other := randomDense(rng, 5, 4)

	cases := []struct {
		name string
		f    func(tape *Tape, x *Variable) *Variable
	}{
		{"matmul sigmoid mean", func(tp *Tape, x *Variable) *Variable {
			return tp.Mean(tp.Sigmoid(tp.MatMul(x, tp.Constant(w))))
		}},
		{"addrow tanh sum", func(tp *Tape, x *Variable) *Variable {
			return tp.Sum(tp.Tanh(tp.AddRow(tp.MatMul(x, tp.Constant(w)), tp.Constant(bias))))
		}},
		{"row norm of difference", func(tp *Tape, x *Variable) *Variable {
			return tp.Mean(tp.RowNorm(tp.Sub(x, tp.Constant(other))))
		}},
		{"elementwise product and scale", func(tp *Tape, x *Variable) *Variable {
			return tp.Sum(tp.Scale(0.5, tp.MulElem(x, tp.AddScalar(x, 1))))
		}},
		{"concat and slice", func(tp *Tape, x *Variable) *Variable {
			joined := tp.Concat(x, tp.Constant(other), x)
			return tp.Sum(tp.Sigmoid(tp.Slice(joined, 2, 10)))
		}},
		{"gather with repeats", func(tp *Tape, x *Variable) *Variable {
			rows := tp.Gather(x, []int{0, 2, 2, 4})
			return tp.Mean(tp.RowNorm(rows))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := randomDense(rng, 5, 4)
			checkGradient(t, x, tc.f)
		})
	}
}

func TestReLUGradient(t *testing.T) {
	x := mat.NewDense(1, 3, []float64{-1, 0.5, 2})
	grad := mat.NewDense(1, 3, nil)

	tape := NewTape()
	loss := tape.Sum(tape.ReLU(tape.Leaf(x, grad)))
	require.NoError(t, tape.Backward(loss))

	assert.Equal(t, 2.5, loss.Scalar())
	assert.Equal(t, []float64{0, 1, 1}, grad.RawRowView(0))
}

func TestLeafGradientsAccumulateAcrossTapes(t *testing.T) {
	x := mat.NewDense(1, 2, []float64{1, 2})
	grad := mat.NewDense(1, 2, nil)

	for i := 0; i < 2; i++ {
		tape := NewTape()
		loss := tape.Sum(tape.Leaf(x, grad))
		require.NoError(t, tape.Backward(loss))
	}

	assert.Equal(t, []float64{2, 2}, grad.RawRowView(0))
}

func TestBackwardRequiresScalar(t *testing.T) {
	tape := NewTape()
	v := tape.Leaf(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))

	err := tape.Backward(v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotScalar))
}

func TestConstantsReceiveNoGradient(t *testing.T) {
	tape := NewTape()
	c := tape.Constant(mat.NewDense(1, 1, []float64{3}))
	loss := tape.Scale(2, c)

	require.NoError(t, tape.Backward(loss))
	assert.Nil(t, c.Grad)
	assert.False(t, loss.RequiresGrad())
}

func TestRowNormAtOrigin(t *testing.T) {
	x := mat.NewDense(1, 2, nil)
	grad := mat.NewDense(1, 2, nil)

	tape := NewTape()
	loss := tape.Sum(tape.RowNorm(tape.Leaf(x, grad)))
	require.NoError(t, tape.Backward(loss))

	assert.InDelta(t, 0, loss.Scalar(), 1e-5)
	for _, g := range grad.RawRowView(0) {
		assert.False(t, math.IsNaN(g))
	}
}
