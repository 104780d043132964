// Package testkit provides small fixed ontologies for tests and demos.
package testkit

import (
	"fmt"

	"github.com/bio-ontology-research-group/OntoML/ontology"
)

const (
	FamilyNS     = "http://family#"
	ProteinNS    = "http://protein#"
	InteractsIRI = ontology.InteractsWithIRI
)

func fam(name string) ontology.Expr { return ontology.Class(FamilyNS + name) }

// FamilyOntology returns a fixed family ontology covering every normal form
// once normalized.
func FamilyOntology() *ontology.Ontology {
	hasChild := FamilyNS + "hasChild"
	o := &ontology.Ontology{Name: "family"}
	o.Add(
		ontology.Sub(fam("Male"), fam("Person")),
		ontology.Sub(fam("Female"), fam("Person")),
		ontology.Sub(fam("Father"), ontology.And(fam("Male"), fam("Parent"))),
		ontology.Sub(fam("Mother"), ontology.And(fam("Female"), fam("Parent"))),
		ontology.Equivalent(fam("Parent"), ontology.Some(hasChild, fam("Person"))),
		ontology.Sub(ontology.And(fam("Male"), fam("Parent")), fam("Father")),
		ontology.Sub(ontology.And(fam("Female"), fam("Parent")), fam("Mother")),
		ontology.Sub(ontology.Some(hasChild, fam("Male")), fam("ParentOfSon")),
		ontology.Disjoint(fam("Male"), fam("Female")),
		ontology.Sub(fam("Grandparent"), ontology.Some(hasChild, fam("Parent"))),
		ontology.Sub(ontology.Some(hasChild, fam("Stone")), ontology.Nothing()),
		ontology.Sub(fam("Unicorn"), ontology.Nothing()),
	)
	return o
}

// Protein returns the IRI of synthetic protein i.
func Protein(i int) string { return fmt.Sprintf("%sP%d", ProteinNS, i) }

func interaction(a, b int) ontology.Axiom {
	return ontology.Sub(ontology.Class(Protein(a)), ontology.Some(InteractsIRI, ontology.Class(Protein(b))))
}

// PPI returns a ring of n proteins. Training links each protein to its next
// neighbour and testing to the one after that.
func PPI(n int) (train, test *ontology.Ontology) {
	train = &ontology.Ontology{Name: "ppi-train"}
	test = &ontology.Ontology{Name: "ppi-test"}
	for i := 0; i < n; i++ {
		train.Add(interaction(i, (i+1)%n))
		test.Add(interaction(i, (i+2)%n))
	}
	return train, test
}
