// Package dataset turns ontologies into integer tables grouped by normal form.
package dataset

import (
	"math/rand"
	"sort"

	"github.com/bio-ontology-research-group/OntoML/core"
	"github.com/bio-ontology-research-group/OntoML/ontology"
	"github.com/cockroachdb/errors"
)

var (
	ErrNoTraining   = errors.New("training ontology is nil")
	ErrUnknownClass = errors.New("unknown class")
	ErrUnknownRole  = errors.New("unknown role")
)

// Subset names one split of a Dataset.
type Subset int

const (
	Training Subset = iota
	Validation
	Testing
)

func (s Subset) String() string {
	switch s {
	case Training:
		return "training"
	case Validation:
		return "validation"
	case Testing:
		return "testing"
	}
	return "subset"
}

// Subsets lists every split in order.
func Subsets() []Subset { return []Subset{Training, Validation, Testing} }

// Vocabulary maps class and role IRIs to dense indices. Indices follow the
// sorted order of the IRIs.
type Vocabulary struct {
	classes    []string
	roles      []string
	classIndex map[string]int
	roleIndex  map[string]int
}

// NewVocabulary indexes classes and roles. ⊤ and ⊥ are always present.
func NewVocabulary(classes, roles []string) *Vocabulary {
	cs := uniqueSorted(append(append([]string(nil), classes...), ontology.ThingIRI, ontology.NothingIRI))
	rs := uniqueSorted(append([]string(nil), roles...))

	v := &Vocabulary{
		classes:    cs,
		roles:      rs,
		classIndex: make(map[string]int, len(cs)),
		roleIndex:  make(map[string]int, len(rs)),
	}
	for i, c := range cs {
		v.classIndex[c] = i
	}
	for i, r := range rs {
		v.roleIndex[r] = i
	}
	return v
}

func uniqueSorted(in []string) []string {
	sort.Strings(in)
	out := make([]string, 0, len(in))
	for _, s := range in {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (v *Vocabulary) NumClasses() int { return len(v.classes) }
func (v *Vocabulary) NumRoles() int   { return len(v.roles) }

// Classes returns a copy of the class IRIs in index order.
func (v *Vocabulary) Classes() []string { return append([]string(nil), v.classes...) }

// Roles returns a copy of the role IRIs in index order.
func (v *Vocabulary) Roles() []string { return append([]string(nil), v.roles...) }

func (v *Vocabulary) Class(i int) string { return v.classes[i] }
func (v *Vocabulary) Role(i int) string  { return v.roles[i] }

func (v *Vocabulary) ClassIndex(iri string) (int, bool) {
	i, ok := v.classIndex[iri]
	return i, ok
}

func (v *Vocabulary) RoleIndex(iri string) (int, bool) {
	i, ok := v.roleIndex[iri]
	return i, ok
}

// Encode maps a normal axiom to an index row.
func (v *Vocabulary) Encode(a ontology.NormalAxiom) ([]int, error) {
	row := make([]int, len(a.Terms))
	for col, term := range a.Terms {
		var (
			idx int
			ok  bool
		)
		if a.Kind.IsRole(col) {
			if idx, ok = v.roleIndex[term]; !ok {
				return nil, errors.Wrapf(ErrUnknownRole, "%s", term)
			}
		} else if idx, ok = v.classIndex[term]; !ok {
			return nil, errors.Wrapf(ErrUnknownClass, "%s", term)
		}
		row[col] = idx
	}
	return row, nil
}

// Dataset holds the ontologies of each split. Validation and Testing are
// optional.
type Dataset struct {
	Training   *ontology.Ontology
	Validation *ontology.Ontology
	Testing    *ontology.Ontology
}

func (d *Dataset) subset(s Subset) *ontology.Ontology {
	switch s {
	case Training:
		return d.Training
	case Validation:
		return d.Validation
	case Testing:
		return d.Testing
	}
	return nil
}

// Options controls table construction.
type Options struct {
	// Extended keeps the ⊥ variants in their own tables instead of folding
	// them into GCI0, GCI1 and GCI3.
	Extended bool
}

// Kinds returns the table kinds produced under o.
func (o Options) Kinds() []core.Kind {
	if o.Extended {
		return core.Kinds()
	}
	return []core.Kind{core.GCI0, core.GCI1, core.GCI2, core.GCI3}
}

// Tables holds one batch of rows per normal form.
type Tables map[core.Kind]core.Batch

// Kinds returns the kinds present, in declaration order.
func (t Tables) Kinds() []core.Kind {
	kinds := make([]core.Kind, 0, len(t))
	for k := range t {
		kinds = append(kinds, k)
	}
	core.SortKinds(kinds)
	return kinds
}

// Len returns the total number of rows.
func (t Tables) Len() int {
	n := 0
	for _, b := range t {
		n += b.Len()
	}
	return n
}

// Built is the result of Build: a shared vocabulary plus per-split tables.
// Splits whose ontology is nil have no entry.
type Built struct {
	Vocabulary *Vocabulary
	Options    Options
	Normalized map[Subset][]ontology.NormalAxiom
	Stats      map[Subset]ontology.Stats
	Tables     map[Subset]Tables
}

// Build normalizes every split with one Normalizer, indexes the joint
// signature and encodes the tables.
func Build(d *Dataset, opts Options) (*Built, error) {
	if d == nil || d.Training == nil {
		return nil, ErrNoTraining
	}

	b := &Built{
		Options:    opts,
		Normalized: make(map[Subset][]ontology.NormalAxiom),
		Stats:      make(map[Subset]ontology.Stats),
		Tables:     make(map[Subset]Tables),
	}

	norm := ontology.NewNormalizer()
	classes := make(map[string]struct{})
	roles := make(map[string]struct{})
	for _, s := range Subsets() {
		o := d.subset(s)
		if o == nil {
			continue
		}
		cs, rs := o.Signature()
		for _, c := range cs {
			classes[c] = struct{}{}
		}
		for _, r := range rs {
			roles[r] = struct{}{}
		}

		axioms, stats := norm.Normalize(o)
		b.Normalized[s] = axioms
		b.Stats[s] = stats
		for _, a := range axioms {
			for col, term := range a.Terms {
				if a.Kind.IsRole(col) {
					roles[term] = struct{}{}
				} else {
					classes[term] = struct{}{}
				}
			}
		}
	}
	b.Vocabulary = NewVocabulary(keys(classes), keys(roles))

	for s, axioms := range b.Normalized {
		tables, err := b.encode(axioms)
		if err != nil {
			return nil, errors.Wrapf(err, "%s split", s)
		}
		b.Tables[s] = tables
	}
	return b, nil
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (b *Built) encode(axioms []ontology.NormalAxiom) (Tables, error) {
	rows := make(map[core.Kind][][]int)
	for _, k := range b.Options.Kinds() {
		rows[k] = [][]int{}
	}
	for _, a := range axioms {
		row, err := b.Vocabulary.Encode(a)
		if err != nil {
			return nil, err
		}
		kind := a.Kind
		if !b.Options.Extended {
			kind = kind.Layout().Base
		}
		rows[kind] = append(rows[kind], row)
	}

	tables := make(Tables, len(rows))
	for k, r := range rows {
		batch, err := core.NewBatch(k, r)
		if err != nil {
			return nil, err
		}
		tables[k] = batch
	}
	return tables, nil
}

// Pair is a (head, tail) class-index pair.
type Pair struct {
	Head int
	Tail int
}

// Pairs returns the (sub, filler) pairs of the GCI2 axioms of split s whose
// role is role. Unknown roles yield no pairs.
func (b *Built) Pairs(s Subset, role string) []Pair {
	r, ok := b.Vocabulary.RoleIndex(role)
	if !ok {
		return nil
	}
	table, ok := b.Tables[s][core.GCI2]
	if !ok {
		return nil
	}
	var out []Pair
	for _, row := range table.Rows {
		if row[1] == r {
			out = append(out, Pair{Head: row[0], Tail: row[2]})
		}
	}
	return out
}

// Loader yields the batches of one table per epoch.
type Loader struct {
	table     core.Batch
	batchSize int
	shuffle   bool
	rng       *rand.Rand
}

// NewLoader validates the batch size. A shuffling loader draws its
// permutations from rng.
func NewLoader(table core.Batch, batchSize int, shuffle bool, rng *rand.Rand) (*Loader, error) {
	if batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	if shuffle && rng == nil {
		return nil, errors.New("shuffling loader needs a random source")
	}
	return &Loader{table: table, batchSize: batchSize, shuffle: shuffle, rng: rng}, nil
}

func (l *Loader) Kind() core.Kind { return l.table.Kind }
func (l *Loader) Len() int        { return l.table.Len() }
func (l *Loader) BatchSize() int  { return l.batchSize }

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	return (l.table.Len() + l.batchSize - 1) / l.batchSize
}

// Epoch returns the batches of one pass over the table. Rows are shared
// with the table; callers that mutate them must Clone first.
func (l *Loader) Epoch() []core.Batch {
	n := l.table.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([]core.Batch, 0, l.NumBatches())
	for start := 0; start < n; start += l.batchSize {
		end := start + l.batchSize
		if end > n {
			end = n
		}
		rows := make([][]int, 0, end-start)
		for _, i := range order[start:end] {
			rows = append(rows, l.table.Rows[i])
		}
		batches = append(batches, core.Batch{Kind: l.table.Kind, Rows: rows})
	}
	return batches
}
