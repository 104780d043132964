package nn

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownOptimizer is returned by NewOptimizer for unsupported names.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	Step()
	ZeroGrad()
}

// NewOptimizer builds an optimizer by name ("sgd" or "adam").
func NewOptimizer(name string, params []*Parameter, lr float64) (Optimizer, error) {
	if lr <= 0 {
		return nil, errors.New("learning rate must be positive")
	}
	switch strings.ToLower(name) {
	case "sgd":
		return NewSGD(params, lr), nil
	case "adam", "":
		return NewAdam(params, lr), nil
	default:
		return nil, errors.Wrapf(ErrUnknownOptimizer, "%q", name)
	}
}

// SGD is plain stochastic gradient descent.
type SGD struct {
	params []*Parameter
	lr     float64
}

func NewSGD(params []*Parameter, lr float64) *SGD {
	return &SGD{params: params, lr: lr}
}

func (o *SGD) Step() {
	for _, p := range o.params {
		w := p.Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		for i := range w {
			w[i] -= o.lr * g[i]
		}
	}
}

func (o *SGD) ZeroGrad() { ZeroGrads(o.params) }

// Adam implements Kingma & Ba with bias correction.
type Adam struct {
	params []*Parameter
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	step   int
	m      [][]float64
	v      [][]float64
}

func NewAdam(params []*Parameter, lr float64) *Adam {
	a := &Adam{
		params: params,
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		n := len(p.Value.RawMatrix().Data)
		a.m[i] = make([]float64, n)
		a.v[i] = make([]float64, n)
	}
	return a
}

func (o *Adam) Step() {
	o.step++
	c1 := 1 - math.Pow(o.beta1, float64(o.step))
	c2 := 1 - math.Pow(o.beta2, float64(o.step))

	for k, p := range o.params {
		w := p.Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		m, v := o.m[k], o.v[k]
		for i := range w {
			m[i] = o.beta1*m[i] + (1-o.beta1)*g[i]
			v[i] = o.beta2*v[i] + (1-o.beta2)*g[i]*g[i]
			w[i] -= o.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + o.eps)
		}
	}
}

func (o *Adam) ZeroGrad() { ZeroGrads(o.params) }
