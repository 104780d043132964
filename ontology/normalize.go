package ontology

import (
	"strconv"
	"strings"

	"github.com/bio-ontology-research-group/OntoML/core"
)

// FreshPrefix names classes introduced by normalization.
const FreshPrefix = "urn:ontoml:fresh#"

// IsFresh reports whether iri was introduced by a Normalizer.
func IsFresh(iri string) bool { return strings.HasPrefix(iri, FreshPrefix) }

// NormalAxiom is an axiom in one of the normal forms. Terms holds class and
// role IRIs in the column order of Kind.Layout().
type NormalAxiom struct {
	Kind  core.Kind
	Terms []string
}

func (a NormalAxiom) key() string {
	return a.Kind.String() + "|" + strings.Join(a.Terms, "|")
}

// Axiom converts a back into the expression model.
func (a NormalAxiom) Axiom() Axiom {
	t := a.Terms
	switch a.Kind.Layout().Base {
	case core.GCI0:
		return Sub(Class(t[0]), Class(t[1]))
	case core.GCI1:
		return Sub(And(Class(t[0]), Class(t[1])), Class(t[2]))
	case core.GCI2:
		return Sub(Class(t[0]), Some(t[1], Class(t[2])))
	default:
		return Sub(Some(t[0], Class(t[1])), Class(t[2]))
	}
}

func (a NormalAxiom) String() string { return a.Kind.String() + " " + a.Axiom().String() }

// Stats counts what a normalization pass did. Skipped counts input axioms
// dropped whole because some part of them has no normal form; nothing of a
// skipped axiom is emitted and it introduces no fresh names.
type Stats struct {
	Axioms      int
	Emitted     int
	Skipped     int
	Tautologies int
	Fresh       int
}

// Normalizer rewrites axioms into normal forms. Fresh names are shared across
// calls, so one Normalizer should serve every subset of a dataset.
type Normalizer struct {
	next  int
	names map[string]string
	// lhs and rhs record which fresh names already have their defining
	// inclusion emitted (expr ⊑ F and F ⊑ expr respectively).
	lhs map[string]bool
	rhs map[string]bool

	seen  map[string]struct{}
	out   []NormalAxiom
	stats Stats
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		names: make(map[string]string),
		lhs:   make(map[string]bool),
		rhs:   make(map[string]bool),
	}
}

// Normalize rewrites every axiom of o. Output order follows input order and
// duplicates are dropped.
func (n *Normalizer) Normalize(o *Ontology) ([]NormalAxiom, Stats) {
	n.out = nil
	n.seen = make(map[string]struct{})
	n.stats = Stats{}

	for _, ax := range o.Axioms {
		n.stats.Axioms++
		incs, ok := inclusions(ax)
		if !ok || !allExpressible(incs) {
			n.stats.Skipped++
			continue
		}
		for _, inc := range incs {
			n.include(inc[0], inc[1])
		}
	}
	return n.out, n.stats
}

// inclusions rewrites ax as general concept inclusions. ok is false for
// axiom types without a rewriting.
func inclusions(ax Axiom) (incs [][2]Expr, ok bool) {
	switch ax.Type {
	case SubClassOf:
		incs = append(incs, [2]Expr{ax.Exprs[0], ax.Exprs[1]})
	case EquivalentClasses:
		first := ax.Exprs[0]
		for _, e := range ax.Exprs[1:] {
			incs = append(incs, [2]Expr{first, e}, [2]Expr{e, first})
		}
	case DisjointClasses:
		for i := range ax.Exprs {
			for j := i + 1; j < len(ax.Exprs); j++ {
				incs = append(incs, [2]Expr{And(ax.Exprs[i], ax.Exprs[j]), Nothing()})
			}
		}
	default:
		return nil, false
	}
	return incs, true
}

func allExpressible(incs [][2]Expr) bool {
	for _, inc := range incs {
		if !expressible(inc[0], inc[1]) {
			return false
		}
	}
	return true
}

// expressible reports whether include(l, r) normalizes every part of l ⊑ r.
// It follows the same case analysis as include.
func expressible(l, r Expr) bool {
	if l.Op == OpNothing || r.Op == OpThing || l.String() == r.String() {
		return true
	}

	switch r.Op {
	case OpAnd:
		for _, c := range r.Operands {
			if !expressible(l, c) {
				return false
			}
		}
		return true
	case OpOr:
		return len(r.Operands) == 1 && expressible(l, r.Operands[0])
	case OpNot, OpOnly:
		return false
	}

	switch l.Op {
	case OpOr:
		for _, d := range l.Operands {
			if !expressible(d, r) {
				return false
			}
		}
		return true
	case OpNot, OpOnly:
		return false
	case OpAnd:
		for _, c := range flattenAnd(l) {
			if !nameableBelow(c) {
				return false
			}
		}
		return nameableAbove(r)
	case OpSome:
		return nameableBelow(l.Filler()) && nameableAbove(r)
	default:
		if r.Op == OpSome {
			return nameableAbove(r.Filler())
		}
		return true
	}
}

var placeholder = Class(FreshPrefix)

// nameableBelow reports whether lhsName(e) can define its name.
func nameableBelow(e Expr) bool { return e.IsAtomic() || expressible(e, placeholder) }

// nameableAbove reports whether rhsName(e) can define its name.
func nameableAbove(e Expr) bool { return e.IsAtomic() || expressible(placeholder, e) }

// Normalize runs a fresh Normalizer over o.
func Normalize(o *Ontology) ([]NormalAxiom, Stats) {
	return NewNormalizer().Normalize(o)
}

func (n *Normalizer) emit(kind core.Kind, terms ...string) {
	a := NormalAxiom{Kind: kind, Terms: terms}
	k := a.key()
	if _, ok := n.seen[k]; ok {
		return
	}
	n.seen[k] = struct{}{}
	n.out = append(n.out, a)
	n.stats.Emitted++
}

func (n *Normalizer) freshFor(e Expr) string {
	sig := e.String()
	if name, ok := n.names[sig]; ok {
		return name
	}
	name := FreshPrefix + strconv.Itoa(n.next)
	n.next++
	n.names[sig] = name
	n.stats.Fresh++
	return name
}

// lhsName returns an atomic name A with e ⊑ A.
func (n *Normalizer) lhsName(e Expr) string {
	if e.IsAtomic() {
		return e.IRI
	}
	name := n.freshFor(e)
	if !n.lhs[name] {
		n.lhs[name] = true
		n.include(e, Class(name))
	}
	return name
}

// rhsName returns an atomic name A with A ⊑ e.
func (n *Normalizer) rhsName(e Expr) string {
	if e.IsAtomic() {
		return e.IRI
	}
	name := n.freshFor(e)
	if !n.rhs[name] {
		n.rhs[name] = true
		n.include(Class(name), e)
	}
	return name
}

func flattenAnd(e Expr) []Expr {
	if e.Op != OpAnd {
		return []Expr{e}
	}
	var out []Expr
	for _, o := range e.Operands {
		out = append(out, flattenAnd(o)...)
	}
	return out
}

// include normalizes l ⊑ r, which expressible must accept.
func (n *Normalizer) include(l, r Expr) {
	if l.Op == OpNothing || r.Op == OpThing || l.String() == r.String() {
		n.stats.Tautologies++
		return
	}

	switch r.Op {
	case OpAnd:
		for _, c := range r.Operands {
			n.include(l, c)
		}
		return
	case OpOr:
		n.include(l, r.Operands[0])
		return
	}

	switch l.Op {
	case OpOr:
		for _, d := range l.Operands {
			n.include(d, r)
		}
	case OpAnd:
		n.conjunction(l, r)
	case OpSome:
		filler := n.lhsName(l.Filler())
		super := n.rhsName(r)
		if super == NothingIRI {
			n.emit(core.GCI3Bot, l.Role, filler, super)
			return
		}
		n.emit(core.GCI3, l.Role, filler, super)
	default:
		n.atomicSub(l.IRI, r)
	}
}

func (n *Normalizer) conjunction(l, r Expr) {
	var ops []Expr
	for _, c := range flattenAnd(l) {
		switch c.Op {
		case OpThing:
			continue
		case OpNothing:
			n.stats.Tautologies++
			return
		}
		ops = append(ops, c)
	}

	switch len(ops) {
	case 0:
		n.include(Thing(), r)
		return
	case 1:
		n.include(ops[0], r)
		return
	case 2:
	default:
		head := n.lhsName(And(ops[:len(ops)-1]...))
		n.include(And(Class(head), ops[len(ops)-1]), r)
		return
	}

	a := n.lhsName(ops[0])
	b := n.lhsName(ops[1])
	super := n.rhsName(r)
	if super == NothingIRI {
		n.emit(core.GCI1Bot, a, b, super)
		return
	}
	n.emit(core.GCI1, a, b, super)
}

func (n *Normalizer) atomicSub(sub string, r Expr) {
	switch r.Op {
	case OpNothing:
		n.emit(core.GCI0Bot, sub, NothingIRI)
	case OpSome:
		f := r.Filler()
		if f.Op == OpNothing {
			n.emit(core.GCI0Bot, sub, NothingIRI)
			return
		}
		n.emit(core.GCI2, sub, r.Role, n.rhsName(f))
	default:
		n.emit(core.GCI0, sub, r.IRI)
	}
}
