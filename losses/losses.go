// Package losses maps normal-form batches to categorical losses.
//
// Classify resolves a kind to its Handler through a static table. A handler
// computes the positive loss of a batch deterministically; its negative loss
// first corrupts one eligible column with a Sampler.
package losses

import (
	"math/rand"

	"github.com/bio-ontology-research-group/OntoML/autodiff"
	"github.com/bio-ontology-research-group/OntoML/catnet"
	"github.com/bio-ontology-research-group/OntoML/core"
	"github.com/bio-ontology-research-group/OntoML/nn"
	"github.com/cockroachdb/errors"
)

// Model is what a handler needs: class and role lookups plus the shared
// sub-networks.
type Model struct {
	Classes nn.Lookup
	Roles   nn.Lookup
	Nets    *catnet.Nets
}

// LossFunc scores one batch of a single normal form.
type LossFunc func(t *autodiff.Tape, m Model, b core.Batch) (*autodiff.Variable, error)

// Handler binds a normal form to its loss.
type Handler struct {
	Kind     core.Kind
	Positive LossFunc
}

var handlers = map[core.Kind]LossFunc{
	core.GCI0:    gci0,
	core.GCI0Bot: gci0,
	core.GCI1:    gci1,
	core.GCI1Bot: gci1,
	core.GCI2:    gci2,
	core.GCI3:    gci3,
	core.GCI3Bot: gci3,
}

// Classify returns the handler for kind.
func Classify(kind core.Kind) (Handler, error) {
	f, ok := handlers[kind]
	if !ok {
		return Handler{}, errors.Wrapf(core.ErrUnknownKind, "%d", int(kind))
	}
	return Handler{Kind: kind, Positive: f}, nil
}

func (h Handler) check(b core.Batch) error {
	if b.Kind != h.Kind {
		return errors.Newf("%s handler got a %s batch", h.Kind, b.Kind)
	}
	if b.Len() == 0 {
		return errors.Newf("empty %s batch", h.Kind)
	}
	return nil
}

// Loss returns the positive loss of b.
func (h Handler) Loss(t *autodiff.Tape, m Model, b core.Batch) (*autodiff.Variable, error) {
	if err := h.check(b); err != nil {
		return nil, err
	}
	return h.Positive(t, m, b)
}

// Negative corrupts one column of b with s and returns the loss of the
// corrupted batch together with the corrupted column.
func (h Handler) Negative(t *autodiff.Tape, m Model, b core.Batch, s *Sampler) (*autodiff.Variable, int, error) {
	if err := h.check(b); err != nil {
		return nil, -1, err
	}
	neg, col, err := s.Corrupt(b)
	if err != nil {
		return nil, -1, err
	}
	loss, err := h.Positive(t, m, neg)
	return loss, col, err
}

// Objective returns pos + relu(margin − neg) for b.
func (h Handler) Objective(t *autodiff.Tape, m Model, b core.Batch, s *Sampler, margin float64) (total, pos, neg *autodiff.Variable, err error) {
	pos, err = h.Loss(t, m, b)
	if err != nil {
		return nil, nil, nil, err
	}
	neg, _, err = h.Negative(t, m, b, s)
	if err != nil {
		return nil, nil, nil, err
	}
	hinge := t.ReLU(t.AddScalar(t.Scale(-1, neg), margin))
	return t.Add(pos, hinge), pos, neg, nil
}

func lookup(t *autodiff.Tape, m Model, b core.Batch, cols ...int) ([]*autodiff.Variable, error) {
	out := make([]*autodiff.Variable, len(cols))
	for i, col := range cols {
		table := m.Classes
		if b.Kind.IsRole(col) {
			table = m.Roles
		}
		v, err := table.Lookup(t, b.Column(col))
		if err != nil {
			return nil, errors.Wrapf(err, "%s column %d", b.Kind, col)
		}
		out[i] = v
	}
	return out, nil
}

// gci0 scores A ⊑ B through the exponential object Bᴬ.
func gci0(t *autodiff.Tape, m Model, b core.Batch) (*autodiff.Variable, error) {
	e, err := lookup(t, m, b, 0, 1)
	if err != nil {
		return nil, err
	}
	_, loss := m.Nets.Exponential.Forward(t, e[0], e[1], m.Nets.Product)
	return loss, nil
}

// gci1 scores A ⊓ B ⊑ C as (A × B) → C.
func gci1(t *autodiff.Tape, m Model, b core.Batch) (*autodiff.Variable, error) {
	e, err := lookup(t, m, b, 0, 1, 2)
	if err != nil {
		return nil, err
	}
	prod, prodLoss := m.Nets.Product.Forward(t, e[0], e[1])
	_, expLoss := m.Nets.Exponential.Forward(t, prod, e[2], m.Nets.Product)
	return t.Add(prodLoss, expLoss), nil
}

// gci2 scores A ⊑ ∃r.B as A → ∃r.B.
func gci2(t *autodiff.Tape, m Model, b core.Batch) (*autodiff.Variable, error) {
	e, err := lookup(t, m, b, 0, 1, 2)
	if err != nil {
		return nil, err
	}
	ex, exLoss := m.Nets.Existential.Forward(t, e[1], e[2], m.Nets.Product, m.Nets.Pullback)
	_, expLoss := m.Nets.Exponential.Forward(t, e[0], ex, m.Nets.Product)
	return t.Add(exLoss, expLoss), nil
}

// gci3 scores ∃r.A ⊑ B as ∃r.A → B.
func gci3(t *autodiff.Tape, m Model, b core.Batch) (*autodiff.Variable, error) {
	e, err := lookup(t, m, b, 0, 1, 2)
	if err != nil {
		return nil, err
	}
	ex, exLoss := m.Nets.Existential.Forward(t, e[0], e[1], m.Nets.Product, m.Nets.Pullback)
	_, expLoss := m.Nets.Exponential.Forward(t, ex, e[2], m.Nets.Product)
	return t.Add(exLoss, expLoss), nil
}

// Sampler draws negative examples from an explicit random source.
type Sampler struct {
	rng         *rand.Rand
	numEntities int
}

// NewSampler returns a sampler drawing class indices from [0, numEntities).
func NewSampler(rng *rand.Rand, numEntities int) (*Sampler, error) {
	if rng == nil {
		return nil, errors.New("sampler needs a random source")
	}
	if numEntities <= 0 {
		return nil, errors.New("number of entities must be positive")
	}
	return &Sampler{rng: rng, numEntities: numEntities}, nil
}

// Corrupt returns a copy of b in which one eligible column, picked uniformly,
// is replaced row by row with uniform entity indices.
func (s *Sampler) Corrupt(b core.Batch) (core.Batch, int, error) {
	eligible := b.Kind.Layout().Eligible
	if len(eligible) == 0 {
		return core.Batch{}, -1, errors.Wrapf(core.ErrUnknownKind, "%d", int(b.Kind))
	}
	col := eligible[s.rng.Intn(len(eligible))]

	out := b.Clone()
	for _, row := range out.Rows {
		row[col] = s.rng.Intn(s.numEntities)
	}
	return out, col, nil
}
