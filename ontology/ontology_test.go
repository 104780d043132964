package ontology

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bio-ontology-research-group/OntoML/core"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const familyYAML = `
name: family
prefixes:
  x: "http://x#"
axioms:
  - subclass: {sub: "x:Father", super: {and: ["x:Male", "x:Parent"]}}
  - equivalent: ["x:Parent", {some: {role: "x:hasChild", filler: "owl:Thing"}}]
  - disjoint: ["x:Male", "x:Female"]
  - subclass: {sub: {some: {role: "x:hasChild", filler: "x:Male"}}, super: "x:ParentOfSon"}
`

func TestParseCorpus(t *testing.T) {
	o, err := Parse([]byte(familyYAML))
	require.NoError(t, err)

	assert.Equal(t, "family", o.Name)
	require.Len(t, o.Axioms, 4)
	assert.Equal(t, SubClassOf, o.Axioms[0].Type)
	assert.Equal(t, EquivalentClasses, o.Axioms[1].Type)
	assert.Equal(t, DisjointClasses, o.Axioms[2].Type)

	sup := o.Axioms[0].Exprs[1]
	assert.Equal(t, OpAnd, sup.Op)
	assert.Equal(t, "http://x#Male", sup.Operands[0].IRI)

	some := o.Axioms[1].Exprs[1]
	assert.Equal(t, OpSome, some.Op)
	assert.Equal(t, "http://x#hasChild", some.Role)
	assert.Equal(t, OpThing, some.Filler().Op)

	classes, roles := o.Signature()
	assert.Contains(t, classes, ThingIRI)
	assert.Contains(t, classes, "http://x#Father")
	assert.Equal(t, []string{"http://x#hasChild"}, roles)
}

func TestParseCorpusErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown axiom", "axioms:\n  - implies: [a, b]\n"},
		{"unknown constructor", "axioms:\n  - subclass: {sub: a, super: {xor: [a, b]}}\n"},
		{"missing super", "axioms:\n  - subclass: {sub: a}\n"},
		{"short equivalence", "axioms:\n  - equivalent: [a]\n"},
		{"restriction without role", "axioms:\n  - subclass: {sub: a, super: {some: {filler: b}}}\n"},
		{"not yaml", "axioms: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedCorpus))
		})
	}
}

func TestLoadFileAndWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "family.yaml")
	require.NoError(t, os.WriteFile(path, []byte(familyYAML), 0o644))

	o, err := LoadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, o))

	back, err := Parse(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, back.Axioms, len(o.Axioms))
	for i := range o.Axioms {
		assert.Equal(t, o.Axioms[i].String(), back.Axioms[i].String())
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func normalForms(axioms []NormalAxiom) map[string]core.Kind {
	out := make(map[string]core.Kind)
	for _, a := range axioms {
		out[a.Axiom().String()] = a.Kind
	}
	return out
}

func TestNormalizeBasicShapes(t *testing.T) {
	A, B, C := Class("A"), Class("B"), Class("C")
	o := &Ontology{}
	o.Add(
		Sub(A, B),
		Sub(And(A, B), C),
		Sub(A, Some("r", B)),
		Sub(Some("r", A), B),
		Sub(A, Nothing()),
		Sub(And(A, B), Nothing()),
		Sub(Some("r", A), Nothing()),
	)

	out, stats := Normalize(o)
	require.Len(t, out, 7)
	want := []core.Kind{core.GCI0, core.GCI1, core.GCI2, core.GCI3, core.GCI0Bot, core.GCI1Bot, core.GCI3Bot}
	for i, k := range want {
		assert.Equal(t, k, out[i].Kind, out[i].String())
		assert.Len(t, out[i].Terms, k.Arity())
	}
	assert.Equal(t, []string{"A", "r", "B"}, out[2].Terms)
	assert.Equal(t, []string{"r", "A", "B"}, out[3].Terms)
	assert.Equal(t, 0, stats.Fresh)
	assert.Equal(t, 7, stats.Emitted)
}

func TestNormalizeComplexAxioms(t *testing.T) {
	o, err := Parse([]byte(familyYAML))
	require.NoError(t, err)

	out, stats := Normalize(o)
	forms := normalForms(out)

	assert.Equal(t, core.GCI0, forms[Sub(Class("http://x#Father"), Class("http://x#Male")).String()])
	assert.Equal(t, core.GCI0, forms[Sub(Class("http://x#Father"), Class("http://x#Parent")).String()])
	assert.Equal(t, core.GCI2, forms[Sub(Class("http://x#Parent"), Some("http://x#hasChild", Thing())).String()])
	assert.Equal(t, core.GCI3, forms[Sub(Some("http://x#hasChild", Thing()), Class("http://x#Parent")).String()])
	assert.Equal(t, core.GCI1Bot, forms[Sub(And(Class("http://x#Male"), Class("http://x#Female")), Nothing()).String()])
	assert.Equal(t, core.GCI3, forms[Sub(Some("http://x#hasChild", Class("http://x#Male")), Class("http://x#ParentOfSon")).String()])
	assert.Equal(t, 4, stats.Axioms)
	assert.Zero(t, stats.Skipped)
}

func TestNormalizeIntroducesFreshNames(t *testing.T) {
	A, B, C, D := Class("A"), Class("B"), Class("C"), Class("D")
	o := &Ontology{}
	o.Add(
		Sub(A, Some("r", And(B, C))),
		Sub(And(A, B, C), D),
		Sub(Some("r", Some("s", B)), C),
	)

	out, stats := Normalize(o)
	assert.Positive(t, stats.Fresh)

	for _, a := range out {
		require.True(t, a.Kind.Valid())
		for col, term := range a.Terms {
			assert.NotEmpty(t, term, "column %d of %s", col, a)
		}
	}

	// A ⊑ ∃r.F, F ⊑ B, F ⊑ C
	var filler string
	for _, a := range out {
		if a.Kind == core.GCI2 && a.Terms[0] == "A" {
			filler = a.Terms[2]
		}
	}
	require.True(t, IsFresh(filler))
	forms := normalForms(out)
	assert.Equal(t, core.GCI0, forms[Sub(Class(filler), B).String()])
	assert.Equal(t, core.GCI0, forms[Sub(Class(filler), C).String()])

	// the ternary conjunction is binarised through one fresh name
	gci1 := 0
	for _, a := range out {
		if a.Kind == core.GCI1 {
			gci1++
		}
	}
	assert.Equal(t, 2, gci1)
}

func TestNormalizeSkipsAndDropsTautologies(t *testing.T) {
	A, B := Class("A"), Class("B")
	o := &Ontology{}
	o.Add(
		Sub(A, Not(B)),
		Sub(A, Only("r", B)),
		Sub(A, Or(A, B)),
		Sub(Nothing(), A),
		Sub(A, Thing()),
		Sub(A, A),
		Sub(Or(A, B), Class("C")),
	)

	out, stats := Normalize(o)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 3, stats.Tautologies)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"A", "C"}, out[0].Terms)
	assert.Equal(t, []string{"B", "C"}, out[1].Terms)
}

func TestNormalizeSkipsWholeAxiomWithUndefinableFiller(t *testing.T) {
	A, B, C := Class("A"), Class("B"), Class("C")
	o := &Ontology{}
	o.Add(
		Sub(A, Some("r", Or(B, C))),
		Equivalent(A, Or(B, C)),
		Sub(And(A, Not(B)), C),
		Sub(A, Some("r", And(B, C))),
	)

	out, stats := Normalize(o)
	assert.Equal(t, 4, stats.Axioms)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 1, stats.Fresh)
	assert.Equal(t, 3, stats.Emitted)
	require.Len(t, out, 3)

	// only the last axiom contributes: A ⊑ ∃r.F, F ⊑ B, F ⊑ C
	F := Class(FreshPrefix + "0")
	forms := normalForms(out)
	assert.Equal(t, core.GCI2, forms[Sub(A, Some("r", F)).String()])
	assert.Equal(t, core.GCI0, forms[Sub(F, B).String()])
	assert.Equal(t, core.GCI0, forms[Sub(F, C).String()])
}

func TestNormalizerSharesFreshNamesAcrossCalls(t *testing.T) {
	n := NewNormalizer()
	e := Some("r", And(Class("B"), Class("C")))

	first := &Ontology{}
	first.Add(Sub(Class("A"), e))
	second := &Ontology{}
	second.Add(Sub(Class("D"), e))

	out1, _ := n.Normalize(first)
	out2, stats := n.Normalize(second)
	require.NotEmpty(t, out1)
	require.NotEmpty(t, out2)
	assert.Equal(t, out1[len(out1)-1].Terms[2], out2[0].Terms[2])
	assert.Zero(t, stats.Fresh)
}
