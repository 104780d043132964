package nn

import (
	"fmt"
	"math/rand"

	"github.com/bio-ontology-research-group/OntoML/autodiff"
	"github.com/cockroachdb/errors"
)

// ErrIndexOutOfRange is returned when a lookup index falls outside the table.
var ErrIndexOutOfRange = errors.New("embedding index out of range")

// Lookup resolves dense indices to embedding rows on a tape.
type Lookup interface {
	Lookup(t *autodiff.Tape, ids []int) (*autodiff.Variable, error)
	Size() int
	Dim() int
}

// Embedding is a trainable lookup table with one row per entity.
type Embedding struct {
	Weight *Parameter
}

// NewEmbedding creates an n×dim table with Xavier-uniform rows.
func NewEmbedding(name string, n, dim int, rng *rand.Rand) *Embedding {
	w := NewParameter(name, n, dim)
	w.XavierUniform(rng)
	return &Embedding{Weight: w}
}

// Lookup gathers the rows for ids.
func (e *Embedding) Lookup(t *autodiff.Tape, ids []int) (*autodiff.Variable, error) {
	n := e.Size()
	for _, id := range ids {
		if id < 0 || id >= n {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "%s[%d] with %d rows", e.Weight.Name, id, n)
		}
	}
	return t.Gather(e.Weight.Bind(t), ids), nil
}

// Size returns the number of rows.
func (e *Embedding) Size() int {
	r, _ := e.Weight.Value.Dims()
	return r
}

// Dim returns the embedding width.
func (e *Embedding) Dim() int {
	_, c := e.Weight.Value.Dims()
	return c
}

// Row returns a copy of row id.
func (e *Embedding) Row(id int) []float64 {
	return append([]float64(nil), e.Weight.Value.RawRowView(id)...)
}

func (e *Embedding) Parameters() []*Parameter { return []*Parameter{e.Weight} }

// Linear computes x·W + b.
type Linear struct {
	W *Parameter
	B *Parameter
}

// NewLinear creates an in→out layer with Xavier-initialised weights.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	w := NewParameter(name+".weight", in, out)
	w.XavierUniform(rng)
	return &Linear{
		W: w,
		B: NewParameter(name+".bias", 1, out),
	}
}

func (l *Linear) Forward(t *autodiff.Tape, x *autodiff.Variable) *autodiff.Variable {
	return t.AddRow(t.MatMul(x, l.W.Bind(t)), l.B.Bind(t))
}

func (l *Linear) Parameters() []*Parameter { return []*Parameter{l.W, l.B} }

// MLP is a stack of linear layers with ReLU between them and no activation
// after the last one.
type MLP struct {
	Layers []*Linear
}

// NewMLP builds layers of the given widths, e.g. NewMLP("p", rng, 20, 16, 10).
func NewMLP(name string, rng *rand.Rand, widths ...int) *MLP {
	if len(widths) < 2 {
		panic(fmt.Sprintf("nn: MLP %s needs at least input and output widths", name))
	}
	m := &MLP{}
	for i := 0; i+1 < len(widths); i++ {
		m.Layers = append(m.Layers, NewLinear(fmt.Sprintf("%s.%d", name, i), widths[i], widths[i+1], rng))
	}
	return m
}

func (m *MLP) Forward(t *autodiff.Tape, x *autodiff.Variable) *autodiff.Variable {
	for i, layer := range m.Layers {
		x = layer.Forward(t, x)
		if i+1 < len(m.Layers) {
			x = t.ReLU(x)
		}
	}
	return x
}

func (m *MLP) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range m.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}
