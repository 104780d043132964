// Package catnet implements the categorical sub-networks that turn axiom
// shapes into differentiable objectives.
//
// Objects are embedding rows. A morphism x → y is read as the order
// x ≤ y component-wise, and Morphism measures how far a batch of rows is from
// satisfying it. Product, Exponential, Pullback and Existential each own a
// small MLP that constructs the corresponding object from its operands and
// return the object together with the loss enforcing its universal property.
package catnet

import (
	"math/rand"

	"github.com/bio-ontology-research-group/OntoML/autodiff"
	"github.com/bio-ontology-research-group/OntoML/nn"
)

// Morphism returns mean_rows ‖relu(x − y)‖, zero iff x ≤ y on every row.
func Morphism(t *autodiff.Tape, x, y *autodiff.Variable) *autodiff.Variable {
	return t.Mean(t.RowNorm(t.ReLU(t.Sub(x, y))))
}

// Distance returns mean_rows ‖x − y‖.
func Distance(t *autodiff.Tape, x, y *autodiff.Variable) *autodiff.Variable {
	return t.Mean(t.RowNorm(t.Sub(x, y)))
}

// Config sizes the sub-networks.
type Config struct {
	Dim       int
	HiddenDim int
}

func (c Config) hidden() int {
	if c.HiddenDim > 0 {
		return c.HiddenDim
	}
	return 2 * c.Dim
}

// Product builds a × b with its two projections.
type Product struct {
	net *nn.MLP
	fst *nn.Linear
	snd *nn.Linear
}

// NewProduct creates a product network with its two projection layers.
func NewProduct(cfg Config, rng *rand.Rand) *Product {
	return &Product{
		net: nn.NewMLP("product", rng, 2*cfg.Dim, cfg.hidden(), cfg.Dim),
		fst: nn.NewLinear("product.fst", cfg.Dim, cfg.Dim, rng),
		snd: nn.NewLinear("product.snd", cfg.Dim, cfg.Dim, rng),
	}
}

// Forward returns the product object and the loss of its cone: p → a, p → b,
// and projections that recover a and b.
func (p *Product) Forward(t *autodiff.Tape, a, b *autodiff.Variable) (*autodiff.Variable, *autodiff.Variable) {
	prod := p.net.Forward(t, t.Concat(a, b))
	loss := t.SumAll(
		Morphism(t, prod, a),
		Morphism(t, prod, b),
		Distance(t, p.fst.Forward(t, prod), a),
		Distance(t, p.snd.Forward(t, prod), b),
	)
	return prod, loss
}

// Parameters returns the weights of the network and both projections.
func (p *Product) Parameters() []*nn.Parameter {
	return nn.Collect(p.net, p.fst, p.snd)
}

// Exponential builds the object Bᴬ and scores the morphism A → B through the
// evaluation map Bᴬ × A → B.
type Exponential struct {
	net *nn.MLP
}

// NewExponential creates an exponential network.
func NewExponential(cfg Config, rng *rand.Rand) *Exponential {
	return &Exponential{
		net: nn.NewMLP("exponential", rng, 2*cfg.Dim, cfg.hidden(), cfg.Dim),
	}
}

// Forward returns Bᴬ and the loss of a → b.
func (e *Exponential) Forward(t *autodiff.Tape, a, b *autodiff.Variable, prod *Product) (*autodiff.Variable, *autodiff.Variable) {
	exp := e.net.Forward(t, t.Concat(a, b))
	evalObj, prodLoss := prod.Forward(t, exp, a)
	loss := t.SumAll(
		prodLoss,
		Morphism(t, evalObj, b),
		Morphism(t, a, b),
	)
	return exp, loss
}

// Parameters returns the network weights.
func (e *Exponential) Parameters() []*nn.Parameter { return e.net.Parameters() }

// Pullback builds r ×_Δ b, the pairs of r whose second component lies in b.
type Pullback struct {
	net *nn.MLP
	fst *nn.Linear
	snd *nn.Linear
}

// NewPullback creates a pullback network with its two leg layers.
func NewPullback(cfg Config, rng *rand.Rand) *Pullback {
	return &Pullback{
		net: nn.NewMLP("pullback", rng, 2*cfg.Dim, cfg.hidden(), cfg.Dim),
		fst: nn.NewLinear("pullback.fst", cfg.Dim, cfg.Dim, rng),
		snd: nn.NewLinear("pullback.snd", cfg.Dim, cfg.Dim, rng),
	}
}

// First is the leg from the pullback to the domain of r.
func (p *Pullback) First(t *autodiff.Tape, pb *autodiff.Variable) *autodiff.Variable {
	return p.fst.Forward(t, pb)
}

// Second is the leg from the pullback into b.
func (p *Pullback) Second(t *autodiff.Tape, pb *autodiff.Variable) *autodiff.Variable {
	return p.snd.Forward(t, pb)
}

// Forward returns the pullback object and the loss of its two legs.
func (p *Pullback) Forward(t *autodiff.Tape, r, b *autodiff.Variable) (*autodiff.Variable, *autodiff.Variable) {
	pb := p.net.Forward(t, t.Concat(r, b))
	loss := t.Add(
		Morphism(t, pb, r),
		Morphism(t, p.Second(t, pb), b),
	)
	return pb, loss
}

// Parameters returns the weights of the network and both legs.
func (p *Pullback) Parameters() []*nn.Parameter {
	return nn.Collect(p.net, p.fst, p.snd)
}

// Existential builds ∃r.B as the image of the first leg of the pullback.
type Existential struct {
	net *nn.MLP
}

// NewExistential creates an existential network.
func NewExistential(cfg Config, rng *rand.Rand) *Existential {
	return &Existential{
		net: nn.NewMLP("existential", rng, cfg.Dim, cfg.hidden(), cfg.Dim),
	}
}

// Forward returns ∃r.b and the loss tying it to the product and pullback.
func (e *Existential) Forward(t *autodiff.Tape, r, b *autodiff.Variable, prod *Product, pullback *Pullback) (*autodiff.Variable, *autodiff.Variable) {
	rb, prodLoss := prod.Forward(t, r, b)
	pb, pbLoss := pullback.Forward(t, r, b)
	ex := e.net.Forward(t, pb)
	loss := t.SumAll(
		prodLoss,
		pbLoss,
		Morphism(t, pb, rb),
		Distance(t, ex, pullback.First(t, pb)),
	)
	return ex, loss
}

// Parameters returns the network weights.
func (e *Existential) Parameters() []*nn.Parameter { return e.net.Parameters() }

// Nets bundles one instance of every sub-network.
type Nets struct {
	Product     *Product
	Exponential *Exponential
	Pullback    *Pullback
	Existential *Existential
}

// NewNets initialises all sub-networks from rng.
func NewNets(cfg Config, rng *rand.Rand) *Nets {
	return &Nets{
		Product:     NewProduct(cfg, rng),
		Exponential: NewExponential(cfg, rng),
		Pullback:    NewPullback(cfg, rng),
		Existential: NewExistential(cfg, rng),
	}
}

// Parameters returns the weights of every sub-network.
func (n *Nets) Parameters() []*nn.Parameter {
	return nn.Collect(n.Product, n.Exponential, n.Pullback, n.Existential)
}
