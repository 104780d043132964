package core

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
)

// Kind identifies the shape of a normal-form axiom.
type Kind int

const (
	GCI0    Kind = iota // A ⊑ B
	GCI1                // A ⊓ B ⊑ C
	GCI2                // A ⊑ ∃r.B
	GCI3                // ∃r.A ⊑ B
	GCI0Bot             // A ⊑ ⊥
	GCI1Bot             // A ⊓ B ⊑ ⊥
	GCI3Bot             // ∃r.A ⊑ ⊥
)

// ErrUnknownKind is returned for names or values outside the normal-form table.
var ErrUnknownKind = errors.New("unknown normal form")

// Layout describes the columns of a normal-form row.
type Layout struct {
	Name string
	// Arity is the number of index columns in each row.
	Arity int
	// Roles lists the columns holding relation indices.
	Roles []int
	// Eligible lists the entity columns that negative sampling may corrupt.
	Eligible []int
	// Bottom is the column holding ⊥, or -1.
	Bottom int
	// Base is the kind a ⊥ variant folds into.
	Base Kind
}

var layouts = map[Kind]Layout{
	GCI0:    {Name: "gci0", Arity: 2, Eligible: []int{0, 1}, Bottom: -1, Base: GCI0},
	GCI1:    {Name: "gci1", Arity: 3, Eligible: []int{0, 1}, Bottom: -1, Base: GCI1},
	GCI2:    {Name: "gci2", Arity: 3, Roles: []int{1}, Eligible: []int{0, 2}, Bottom: -1, Base: GCI2},
	GCI3:    {Name: "gci3", Arity: 3, Roles: []int{0}, Eligible: []int{1, 2}, Bottom: -1, Base: GCI3},
	GCI0Bot: {Name: "gci0_bot", Arity: 2, Eligible: []int{0}, Bottom: 1, Base: GCI0},
	GCI1Bot: {Name: "gci1_bot", Arity: 3, Eligible: []int{0, 1}, Bottom: 2, Base: GCI1},
	GCI3Bot: {Name: "gci3_bot", Arity: 3, Roles: []int{0}, Eligible: []int{1}, Bottom: 2, Base: GCI3},
}

// Kinds returns every normal form in declaration order.
func Kinds() []Kind {
	return []Kind{GCI0, GCI1, GCI2, GCI3, GCI0Bot, GCI1Bot, GCI3Bot}
}

// Layout returns the static column layout of k.
func (k Kind) Layout() Layout {
	l, ok := layouts[k]
	if !ok {
		return Layout{Name: fmt.Sprintf("kind(%d)", int(k)), Bottom: -1, Base: k}
	}
	return l
}

// Valid reports whether k is one of the known normal forms.
func (k Kind) Valid() bool {
	_, ok := layouts[k]
	return ok
}

func (k Kind) String() string { return k.Layout().Name }

// IsBottom reports whether k is a ⊥ variant.
func (k Kind) IsBottom() bool { return k.Layout().Bottom >= 0 }

// Arity is shorthand for k.Layout().Arity.
func (k Kind) Arity() int { return k.Layout().Arity }

// IsRole reports whether column col of k holds a relation index.
func (k Kind) IsRole(col int) bool {
	for _, c := range k.Layout().Roles {
		if c == col {
			return true
		}
	}
	return false
}

// ParseKind maps a dataset name such as "gci1_bot" back to its kind.
func ParseKind(name string) (Kind, error) {
	for k, l := range layouts {
		if l.Name == name {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownKind, "%q", name)
}

// SortKinds orders kinds by declaration order in place.
func SortKinds(kinds []Kind) {
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
}

// Batch is a group of rows sharing one normal form.
type Batch struct {
	Kind Kind
	Rows [][]int
}

// NewBatch validates rows against the arity of kind.
func NewBatch(kind Kind, rows [][]int) (Batch, error) {
	if !kind.Valid() {
		return Batch{}, errors.Wrapf(ErrUnknownKind, "%d", int(kind))
	}
	arity := kind.Arity()
	for i, row := range rows {
		if len(row) != arity {
			return Batch{}, errors.Newf("row %d of %s batch has %d columns, want %d", i, kind, len(row), arity)
		}
	}
	return Batch{Kind: kind, Rows: rows}, nil
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.Rows) }

// Column extracts column j as an index slice.
func (b Batch) Column(j int) []int {
	col := make([]int, len(b.Rows))
	for i, row := range b.Rows {
		col[i] = row[j]
	}
	return col
}

// Clone deep-copies the batch rows.
func (b Batch) Clone() Batch {
	rows := make([][]int, len(b.Rows))
	for i, row := range b.Rows {
		rows[i] = append([]int(nil), row...)
	}
	return Batch{Kind: b.Kind, Rows: rows}
}
