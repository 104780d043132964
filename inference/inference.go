// Package inference scores candidate C ⊑ ∃r.D axioms from class embeddings.
package inference

import (
	"context"
	"math"
	"sort"

	"github.com/bio-ontology-research-group/OntoML/embeddings"
	"github.com/bio-ontology-research-group/OntoML/ontology"
	"github.com/bio-ontology-research-group/OntoML/pkg/logging"
	"github.com/bio-ontology-research-group/OntoML/vectordb"
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Scorer rates how plausible it is that x relates to y. Lower is more
// plausible.
type Scorer interface {
	Score(x, y []float64) (float64, error)
}

// CosineScorer scores 1 − σ(x·y).
type CosineScorer struct{}

func (CosineScorer) Score(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, errors.Wrapf(ErrDimensionMismatch, "%d vs %d", len(x), len(y))
	}
	return 1 - sigmoid(floats.Dot(x, y)), nil
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// Entity metadata kinds stored alongside each vector.
const (
	KindClass   = "class"
	KindFresh   = "fresh"
	KindBuiltin = "builtin"
)

// Source enumerates and resolves class vectors.
type Source interface {
	embeddings.Embedder
	Names() []string
}

// Candidate is a proposed Sub ⊑ ∃Role.Filler axiom.
type Candidate struct {
	Sub        string  `json:"sub"`
	Role       string  `json:"role"`
	Filler     string  `json:"filler"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Axiom returns the candidate as an ontology axiom.
func (c Candidate) Axiom() ontology.Axiom {
	return ontology.Sub(ontology.Class(c.Sub), ontology.Some(c.Role, ontology.Class(c.Filler)))
}

// Config controls candidate generation.
type Config struct {
	Relation string `mapstructure:"relation" yaml:"relation"`
	// Pool is how many nearest neighbours are rescored per query.
	Pool int `mapstructure:"pool" yaml:"pool"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Relation: ontology.InteractsWithIRI, Pool: 100}
}

// Predictor proposes fillers for a head class from an indexed vector store.
type Predictor struct {
	cfg    Config
	source Source
	store  vectordb.VectorStore
	scorer Scorer
	logger *logging.Logger
}

// Option configures a Predictor.
type Option func(*Predictor)

func WithScorer(s Scorer) Option { return func(p *Predictor) { p.scorer = s } }

func WithLogger(l *logging.Logger) Option { return func(p *Predictor) { p.logger = l } }

// NewPredictor creates a predictor. A nil store gets an in-memory one.
func NewPredictor(cfg Config, source Source, store vectordb.VectorStore, opts ...Option) *Predictor {
	def := DefaultConfig()
	if cfg.Relation == "" {
		cfg.Relation = def.Relation
	}
	if cfg.Pool <= 0 {
		cfg.Pool = def.Pool
	}
	if store == nil {
		store = vectordb.NewMemoryVectorStore(&vectordb.VectorStoreConfig{
			Collection: "classes",
			Dimension:  source.Dimension(),
		})
	}
	p := &Predictor{
		cfg:    cfg,
		source: source,
		store:  store,
		scorer: CosineScorer{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func entityKind(iri string) string {
	switch {
	case ontology.IsFresh(iri):
		return KindFresh
	case iri == ontology.ThingIRI || iri == ontology.NothingIRI:
		return KindBuiltin
	default:
		return KindClass
	}
}

// Index replaces the store contents with every vector of the source.
func (p *Predictor) Index(ctx context.Context) (int, error) {
	if err := p.store.Clear(ctx); err != nil {
		return 0, errors.Wrap(err, "failed to clear vector store")
	}
	names := p.source.Names()
	for _, iri := range names {
		vec, err := p.source.Embed(ctx, iri)
		if err != nil {
			return 0, err
		}
		if err := p.store.Upsert(ctx, iri, vec, map[string]string{"kind": entityKind(iri)}); err != nil {
			return 0, errors.Wrapf(err, "failed to index %s", iri)
		}
	}
	p.logger.Info("Indexed class embeddings", "count", len(names), "relation", p.cfg.Relation)
	return len(names), nil
}

// ScoreAxiom scores sub ⊑ ∃r.filler for the configured relation.
func (p *Predictor) ScoreAxiom(ctx context.Context, sub, filler string) (float64, error) {
	x, err := p.source.Embed(ctx, sub)
	if err != nil {
		return 0, err
	}
	y, err := p.source.Embed(ctx, filler)
	if err != nil {
		return 0, err
	}
	return p.scorer.Score(x, y)
}

// Predict returns the k most plausible fillers of head among named
// classes, best first. Fresh and builtin classes are never proposed.
func (p *Predictor) Predict(ctx context.Context, head string, k int) ([]Candidate, error) {
	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	x, err := p.source.Embed(ctx, head)
	if err != nil {
		return nil, err
	}
	hits, err := p.store.Search(ctx, x, &vectordb.SearchOptions{
		TopK:          max(p.cfg.Pool, k),
		Filter:        map[string]string{"kind": KindClass},
		Exclude:       []string{head},
		MinScore:      -1,
		IncludeVector: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vector search failed")
	}

	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		score, err := p.scorer.Score(x, h.Vector)
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{
			Sub:        head,
			Role:       p.cfg.Relation,
			Filler:     h.ID,
			Score:      score,
			Similarity: h.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Filler < out[j].Filler
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
