// Package ontology models description-logic concept expressions and axioms
// and rewrites them into the normal forms used for embedding.
package ontology

import (
	"sort"
	"strings"
)

const (
	ThingIRI   = "http://www.w3.org/2002/07/owl#Thing"
	NothingIRI = "http://www.w3.org/2002/07/owl#Nothing"

	// InteractsWithIRI is the role of protein interaction axioms.
	InteractsWithIRI = "http://interacts_with"
)

// Op is the constructor of an expression.
type Op int

const (
	OpClass Op = iota
	OpThing
	OpNothing
	OpAnd
	OpOr
	OpNot
	OpSome
	OpOnly
)

// Expr is a concept expression. Class carries IRI; Some and Only carry Role
// and a single operand; And, Or and Not carry operands.
type Expr struct {
	Op       Op
	IRI      string
	Role     string
	Operands []Expr
}

func Class(iri string) Expr {
	switch iri {
	case ThingIRI:
		return Thing()
	case NothingIRI:
		return Nothing()
	}
	return Expr{Op: OpClass, IRI: iri}
}

func Thing() Expr   { return Expr{Op: OpThing, IRI: ThingIRI} }
func Nothing() Expr { return Expr{Op: OpNothing, IRI: NothingIRI} }

func And(ops ...Expr) Expr { return Expr{Op: OpAnd, Operands: ops} }
func Or(ops ...Expr) Expr  { return Expr{Op: OpOr, Operands: ops} }
func Not(x Expr) Expr      { return Expr{Op: OpNot, Operands: []Expr{x}} }

func Some(role string, filler Expr) Expr {
	return Expr{Op: OpSome, Role: role, Operands: []Expr{filler}}
}

func Only(role string, filler Expr) Expr {
	return Expr{Op: OpOnly, Role: role, Operands: []Expr{filler}}
}

// IsAtomic reports whether e is a named class, ⊤ or ⊥.
func (e Expr) IsAtomic() bool {
	return e.Op == OpClass || e.Op == OpThing || e.Op == OpNothing
}

// Filler returns the operand of Some/Only.
func (e Expr) Filler() Expr { return e.Operands[0] }

func (e Expr) String() string {
	switch e.Op {
	case OpClass, OpThing, OpNothing:
		return "<" + e.IRI + ">"
	case OpAnd, OpOr:
		parts := make([]string, len(e.Operands))
		for i, o := range e.Operands {
			parts[i] = o.String()
		}
		sep := " and "
		if e.Op == OpOr {
			sep = " or "
		}
		return "(" + strings.Join(parts, sep) + ")"
	case OpNot:
		return "not " + e.Operands[0].String()
	case OpSome:
		return "(<" + e.Role + "> some " + e.Filler().String() + ")"
	case OpOnly:
		return "(<" + e.Role + "> only " + e.Filler().String() + ")"
	}
	return "?"
}

// signature adds every class and role IRI mentioned in e.
func (e Expr) signature(classes, roles map[string]struct{}) {
	switch e.Op {
	case OpClass, OpThing, OpNothing:
		classes[e.IRI] = struct{}{}
	case OpSome, OpOnly:
		roles[e.Role] = struct{}{}
	}
	for _, o := range e.Operands {
		o.signature(classes, roles)
	}
}

// AxiomType distinguishes the supported axiom constructors.
type AxiomType int

const (
	SubClassOf AxiomType = iota
	EquivalentClasses
	DisjointClasses
)

func (t AxiomType) String() string {
	switch t {
	case SubClassOf:
		return "SubClassOf"
	case EquivalentClasses:
		return "EquivalentClasses"
	case DisjointClasses:
		return "DisjointClasses"
	}
	return "Axiom"
}

// Axiom relates two or more expressions. SubClassOf uses Exprs[0] ⊑ Exprs[1].
type Axiom struct {
	Type  AxiomType
	Exprs []Expr
}

func Sub(sub, super Expr) Axiom {
	return Axiom{Type: SubClassOf, Exprs: []Expr{sub, super}}
}

func Equivalent(exprs ...Expr) Axiom {
	return Axiom{Type: EquivalentClasses, Exprs: exprs}
}

func Disjoint(exprs ...Expr) Axiom {
	return Axiom{Type: DisjointClasses, Exprs: exprs}
}

func (a Axiom) String() string {
	parts := make([]string, len(a.Exprs))
	for i, e := range a.Exprs {
		parts[i] = e.String()
	}
	return a.Type.String() + "(" + strings.Join(parts, " ") + ")"
}

// Ontology is a named set of axioms.
type Ontology struct {
	Name   string
	Axioms []Axiom
}

// Add appends axioms.
func (o *Ontology) Add(axioms ...Axiom) {
	o.Axioms = append(o.Axioms, axioms...)
}

// Signature returns the sorted class and role IRIs used by the axioms.
func (o *Ontology) Signature() (classes, roles []string) {
	cs := make(map[string]struct{})
	rs := make(map[string]struct{})
	for _, a := range o.Axioms {
		for _, e := range a.Exprs {
			e.signature(cs, rs)
		}
	}
	return sortedKeys(cs), sortedKeys(rs)
}

// Classes returns the sorted class IRIs.
func (o *Ontology) Classes() []string {
	c, _ := o.Signature()
	return c
}

// Roles returns the sorted role IRIs.
func (o *Ontology) Roles() []string {
	_, r := o.Signature()
	return r
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
