// Package nn provides trainable building blocks on top of the autodiff tape:
// parameters, embedding tables, linear layers, MLPs and optimizers.
package nn

import (
	"math"
	"math/rand"

	"github.com/bio-ontology-research-group/OntoML/autodiff"
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// Parameter is a trainable matrix together with its accumulated gradient.
type Parameter struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParameter allocates a zero parameter of shape r×c.
func NewParameter(name string, r, c int) *Parameter {
	return &Parameter{
		Name:  name,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// Bind exposes the parameter as a differentiable leaf on tape.
func (p *Parameter) Bind(t *autodiff.Tape) *autodiff.Variable {
	return t.Leaf(p.Value, p.Grad)
}

// ZeroGrad clears the accumulated gradient.
func (p *Parameter) ZeroGrad() {
	p.Grad.Zero()
}

// Load copies value into the parameter after checking its shape.
func (p *Parameter) Load(value *mat.Dense) error {
	r, c := p.Value.Dims()
	vr, vc := value.Dims()
	if r != vr || c != vc {
		return errors.Newf("parameter %s has shape %dx%d, got %dx%d", p.Name, r, c, vr, vc)
	}
	p.Value.Copy(value)
	return nil
}

// XavierUniform fills p with U(-a, a), a = sqrt(6/(fanIn+fanOut)).
func (p *Parameter) XavierUniform(rng *rand.Rand) {
	r, c := p.Value.Dims()
	limit := math.Sqrt(6 / float64(r+c))
	p.Value.Apply(func(_, _ int, _ float64) float64 {
		return (rng.Float64()*2 - 1) * limit
	}, p.Value)
}

// Uniform fills p with U(lo, hi).
func (p *Parameter) Uniform(rng *rand.Rand, lo, hi float64) {
	p.Value.Apply(func(_, _ int, _ float64) float64 {
		return lo + rng.Float64()*(hi-lo)
	}, p.Value)
}

// ZeroGrads clears the gradients of every parameter.
func ZeroGrads(params []*Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Module is anything that owns parameters.
type Module interface {
	Parameters() []*Parameter
}

// Collect flattens the parameters of several modules.
func Collect(modules ...Module) []*Parameter {
	var params []*Parameter
	for _, m := range modules {
		params = append(params, m.Parameters()...)
	}
	return params
}
