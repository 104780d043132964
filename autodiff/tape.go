// Package autodiff implements a small reverse-mode automatic differentiation
// tape over gonum dense matrices.
//
// A Tape records every operation applied to its variables. Calling Backward on
// a 1×1 result walks the record in reverse and accumulates gradients into
// every variable that requires them. Leaf variables created with Leaf share
// their gradient matrix with the caller, which is how model parameters
// receive gradients across many short-lived tapes.
package autodiff

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNotScalar is returned by Backward when the loss is not a 1×1 matrix.
var ErrNotScalar = errors.New("backward requires a 1x1 loss")

// Variable is a node in the computation record.
type Variable struct {
	Value *mat.Dense
	Grad  *mat.Dense

	requiresGrad bool
	backward     func()
}

// RequiresGrad reports whether gradients flow into v.
func (v *Variable) RequiresGrad() bool { return v.requiresGrad }

// Dims returns the shape of the value.
func (v *Variable) Dims() (int, int) { return v.Value.Dims() }

// Scalar returns the single element of a 1×1 variable.
func (v *Variable) Scalar() float64 { return v.Value.At(0, 0) }

// Tape records operations for one forward/backward pass.
type Tape struct {
	vars []*Variable
}

// NewTape creates an empty tape.
func NewTape() *Tape {
	return &Tape{}
}

// Len returns the number of recorded variables.
func (t *Tape) Len() int { return len(t.vars) }

// Constant wraps m as a variable that never receives gradients.
func (t *Tape) Constant(m *mat.Dense) *Variable {
	v := &Variable{Value: m}
	t.vars = append(t.vars, v)
	return v
}

// Leaf wraps value as a differentiable input. Gradients are accumulated into
// grad, which must have the same shape as value.
func (t *Tape) Leaf(value, grad *mat.Dense) *Variable {
	v := &Variable{Value: value, Grad: grad, requiresGrad: true}
	t.vars = append(t.vars, v)
	return v
}

func (t *Tape) record(value *mat.Dense, parents ...*Variable) *Variable {
	v := &Variable{Value: value}
	for _, p := range parents {
		if p.requiresGrad {
			v.requiresGrad = true
			break
		}
	}
	t.vars = append(t.vars, v)
	return v
}

// Backward seeds loss with a unit gradient and propagates it through the tape.
func (t *Tape) Backward(loss *Variable) error {
	r, c := loss.Dims()
	if r != 1 || c != 1 {
		return errors.Wrapf(ErrNotScalar, "got %dx%d", r, c)
	}
	if !loss.requiresGrad {
		return nil
	}

	loss.Grad = mat.NewDense(1, 1, []float64{1})
	for i := len(t.vars) - 1; i >= 0; i-- {
		v := t.vars[i]
		if v.backward != nil && v.Grad != nil {
			v.backward()
		}
	}
	return nil
}

// accumulate adds g into the gradient of v, allocating it on first use.
func accumulate(v *Variable, g mat.Matrix) {
	if !v.requiresGrad {
		return
	}
	if v.Grad == nil {
		r, c := v.Value.Dims()
		v.Grad = mat.NewDense(r, c, nil)
	}
	v.Grad.Add(v.Grad, g)
}
