// Package embeddings exposes trained class and role vectors by IRI.
package embeddings

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrUnknownEntity is returned for IRIs without a vector.
var ErrUnknownEntity = errors.New("no embedding for entity")

// Embedder resolves an entity IRI to its vector.
type Embedder interface {
	Embed(ctx context.Context, iri string) ([]float64, error)
	Dimension() int
}

// Table is an in-memory Embedder over a fixed set of vectors.
type Table struct {
	dim     int
	vectors map[string][]float64
}

// NewTable copies vectors. Every vector must have the same length.
func NewTable(vectors map[string][]float64) (*Table, error) {
	t := &Table{vectors: make(map[string][]float64, len(vectors))}
	for iri, v := range vectors {
		if t.dim == 0 {
			t.dim = len(v)
		}
		if len(v) != t.dim {
			return nil, errors.Newf("embedding of %s has %d components, want %d", iri, len(v), t.dim)
		}
		t.vectors[iri] = append([]float64(nil), v...)
	}
	return t, nil
}

// Embed returns a copy of the vector of iri.
func (t *Table) Embed(ctx context.Context, iri string) ([]float64, error) {
	v, ok := t.vectors[iri]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEntity, "%s", iri)
	}
	return append([]float64(nil), v...), nil
}

func (t *Table) Dimension() int { return t.dim }
func (t *Table) Len() int       { return len(t.vectors) }

// Names returns the IRIs in sorted order.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.vectors))
	for iri := range t.vectors {
		out = append(out, iri)
	}
	sort.Strings(out)
	return out
}
