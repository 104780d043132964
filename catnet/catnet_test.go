package catnet

import (
	"math/rand"
	"testing"

	"github.com/bio-ontology-research-group/OntoML/autodiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func constRows(t *autodiff.Tape, rows ...[]float64) *autodiff.Variable {
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return t.Constant(m)
}

func TestMorphism(t *testing.T) {
	tape := autodiff.NewTape()

	t.Run("ordered rows have no violation", func(t *testing.T) {
		x := constRows(tape, []float64{0, 1})
		y := constRows(tape, []float64{1, 1})
		assert.InDelta(t, 0, Morphism(tape, x, y).Scalar(), 1e-5)
	})

	t.Run("violation is the norm of the excess", func(t *testing.T) {
		x := constRows(tape, []float64{3, 4})
		y := constRows(tape, []float64{0, 0})
		assert.InDelta(t, 5, Morphism(tape, x, y).Scalar(), 1e-5)
	})

	t.Run("averaged over rows", func(t *testing.T) {
		x := constRows(tape, []float64{3, 4}, []float64{0, 0})
		y := constRows(tape, []float64{0, 0}, []float64{1, 1})
		assert.InDelta(t, 2.5, Morphism(tape, x, y).Scalar(), 1e-5)
	})
}

func TestSubNetworkShapes(t *testing.T) {
	const dim = 4
	rng := rand.New(rand.NewSource(11))
	nets := NewNets(Config{Dim: dim}, rng)

	tape := autodiff.NewTape()
	a := constRows(tape, []float64{1, 2, 3, 4}, []float64{0, 1, 0, 1}, []float64{2, 2, 2, 2})
	b := constRows(tape, []float64{4, 3, 2, 1}, []float64{1, 0, 1, 0}, []float64{1, 1, 1, 1})

	prod, prodLoss := nets.Product.Forward(tape, a, b)
	exp, expLoss := nets.Exponential.Forward(tape, a, b, nets.Product)
	pb, pbLoss := nets.Pullback.Forward(tape, a, b)
	ex, exLoss := nets.Existential.Forward(tape, a, b, nets.Product, nets.Pullback)

	for _, obj := range []*autodiff.Variable{prod, exp, pb, ex} {
		r, c := obj.Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, dim, c)
	}
	for _, loss := range []*autodiff.Variable{prodLoss, expLoss, pbLoss, exLoss} {
		r, c := loss.Dims()
		assert.Equal(t, 1, r)
		assert.Equal(t, 1, c)
		assert.GreaterOrEqual(t, loss.Scalar(), 0.0)
	}
}

func TestNetsParametersReceiveGradients(t *testing.T) {
	const dim = 3
	rng := rand.New(rand.NewSource(5))
	nets := NewNets(Config{Dim: dim, HiddenDim: 5}, rng)

	tape := autodiff.NewTape()
	r := constRows(tape, []float64{1, -1, 0.5})
	b := constRows(tape, []float64{0.2, 0.3, -0.4})
	_, loss := nets.Existential.Forward(tape, r, b, nets.Product, nets.Pullback)
	require.NoError(t, tape.Backward(loss))

	params := nets.Parameters()
	require.NotEmpty(t, params)

	touched := 0
	for _, p := range params {
		if mat.Norm(p.Grad, 2) > 0 {
			touched++
		}
	}
	assert.Greater(t, touched, 0)
}
