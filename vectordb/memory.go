package vectordb

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
)

// MemoryVectorStore implements an in-memory vector store using cosine similarity
type MemoryVectorStore struct {
	config   *VectorStoreConfig
	vectors  map[string][]float64
	raw      map[string][]float64
	metadata map[string]map[string]string
	mu       sync.RWMutex
}

// NewMemoryVectorStore creates a new in-memory vector store
func NewMemoryVectorStore(config *VectorStoreConfig) *MemoryVectorStore {
	if config == nil {
		config = DefaultConfig()
	}

	return &MemoryVectorStore{
		config:   config,
		vectors:  make(map[string][]float64),
		raw:      make(map[string][]float64),
		metadata: make(map[string]map[string]string),
	}
}

func (m *MemoryVectorStore) checkDim(vec []float64) error {
	if len(vec) != m.config.Dimension {
		return errors.Wrapf(ErrDimensionMismatch, "got %d, want %d", len(vec), m.config.Dimension)
	}
	return nil
}

// Upsert stores or updates a vector with metadata
func (m *MemoryVectorStore) Upsert(ctx context.Context, id string, vec []float64, meta map[string]string) error {
	if err := m.checkDim(vec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.raw[id] = append([]float64(nil), vec...)
	m.vectors[id] = normalized(vec)
	m.metadata[id] = copyMeta(meta)
	return nil
}

// Search finds the most similar vectors using cosine similarity. Equal
// scores are ordered by ID.
func (m *MemoryVectorStore) Search(ctx context.Context, vec []float64, opts *SearchOptions) ([]Hit, error) {
	if err := m.checkDim(vec); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = DefaultSearchOptions()
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, id := range opts.Exclude {
		exclude[id] = struct{}{}
	}

	query := normalized(vec)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for id, stored := range m.vectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		if !matches(m.metadata[id], opts.Filter) {
			continue
		}
		score := floats.Dot(query, stored)
		if score < opts.MinScore {
			continue
		}
		hit := Hit{ID: id, Score: score, Meta: copyMeta(m.metadata[id])}
		if opts.IncludeVector {
			hit.Vector = append([]float64(nil), m.raw[id]...)
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if opts.TopK > 0 && opts.TopK < len(hits) {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

// Delete removes a vector by ID
func (m *MemoryVectorStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.vectors, id)
	delete(m.raw, id)
	delete(m.metadata, id)
	return nil
}

// Get retrieves the vector stored under id, as it was upserted
func (m *MemoryVectorStore) Get(ctx context.Context, id string) ([]float64, map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vec, exists := m.raw[id]
	if !exists {
		return nil, nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	return append([]float64(nil), vec...), copyMeta(m.metadata[id]), nil
}

// Count returns the total number of vectors
func (m *MemoryVectorStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.vectors), nil
}

// Clear removes all vectors
func (m *MemoryVectorStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vectors = make(map[string][]float64)
	m.raw = make(map[string][]float64)
	m.metadata = make(map[string]map[string]string)
	return nil
}

// GetConfig returns the vector store configuration
func (m *MemoryVectorStore) GetConfig() *VectorStoreConfig {
	return m.config
}

// normalized returns a unit-length copy of vec; zero vectors stay zero
func normalized(vec []float64) []float64 {
	out := append([]float64(nil), vec...)
	if norm := floats.Norm(out, 2); norm > 0 {
		floats.Scale(1/norm, out)
	}
	return out
}

func matches(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func copyMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
