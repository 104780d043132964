package evaluation

import (
	"context"
	"sync"
	"time"

	"github.com/bio-ontology-research-group/OntoML/dataset"
	"github.com/bio-ontology-research-group/OntoML/embeddings"
	"github.com/bio-ontology-research-group/OntoML/ontology"
	"github.com/bio-ontology-research-group/OntoML/pkg/cache"
	"github.com/bio-ontology-research-group/OntoML/pkg/logging"
	"github.com/bio-ontology-research-group/OntoML/pkg/metrics"
	"github.com/bio-ontology-research-group/OntoML/pkg/tracing"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoTestPairs       = errors.New("no test pairs to rank")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DefaultRelation is the role whose GCI2 axioms encode interactions.
const DefaultRelation = ontology.InteractsWithIRI

// Config controls ranking evaluation.
type Config struct {
	Relation  string `mapstructure:"relation" yaml:"relation"`
	Workers   int    `mapstructure:"workers" yaml:"workers"`
	CacheSize int    `mapstructure:"cache_size" yaml:"cache_size"`
}

// DefaultConfig returns the default evaluation configuration.
func DefaultConfig() Config {
	return Config{
		Relation:  DefaultRelation,
		Workers:   4,
		CacheSize: 1024,
	}
}

// Result holds raw and filtered ranking metrics for one relation.
type Result struct {
	Relation string
	Pairs    int
	Skipped  int
	Raw      Metrics
	Filtered Metrics
}

// Tuple returns the filtered (mean rank, rank@1, rank@10, rank@100).
func (r *Result) Tuple() (float64, int, int, int) {
	return r.Filtered.Tuple()
}

// Source supplies trained class vectors and the pairs to rank.
type Source interface {
	ClassMatrix() *mat.Dense
	Dataset() *dataset.Built
}

// Option configures an Evaluator.
type Option func(*Evaluator)

func WithLogger(l *logging.Logger) Option { return func(e *Evaluator) { e.logger = l } }

func WithMetrics(p *metrics.PrometheusMetrics) Option { return func(e *Evaluator) { e.metrics = p } }

func WithTracer(t *tracing.Tracer) Option { return func(e *Evaluator) { e.tracer = t } }

// Evaluator ranks held-out pairs by cosine distance. A single Evaluator
// serialises its Rank calls because the distance cache is tied to one
// embedding matrix at a time.
type Evaluator struct {
	cfg     Config
	logger  *logging.Logger
	metrics *metrics.PrometheusMetrics
	tracer  *tracing.Tracer
	rows    *cache.CacheManager[int, []float64]
	mu      sync.Mutex
}

// NewEvaluator creates an evaluator. Zero config fields take defaults.
func NewEvaluator(cfg Config, opts ...Option) (*Evaluator, error) {
	def := DefaultConfig()
	if cfg.Relation == "" {
		cfg.Relation = def.Relation
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}

	e := &Evaluator{cfg: cfg, logger: logging.NewNop(), tracer: tracing.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	var observer cache.Observer
	if e.metrics != nil {
		observer = e.metrics
	}
	rows, err := cache.NewCacheManager[int, []float64](&cache.CacheConfig{MaxSize: cfg.CacheSize}, observer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create distance cache")
	}
	e.rows = rows
	return e, nil
}

// Config returns the effective configuration.
func (e *Evaluator) Config() Config { return e.cfg }

// CacheStats reports distance row cache usage.
func (e *Evaluator) CacheStats() (cache.CacheStats, cache.DedupStats) { return e.rows.Stats() }

// Close releases the distance cache.
func (e *Evaluator) Close() { e.rows.Close() }

// EvaluatePPI ranks the testing pairs of the configured relation, filtering
// training pairs that share a head.
func (e *Evaluator) EvaluatePPI(ctx context.Context, src Source) (*Result, error) {
	built := src.Dataset()
	train := built.Pairs(dataset.Training, e.cfg.Relation)
	test := built.Pairs(dataset.Testing, e.cfg.Relation)
	return e.Rank(ctx, src.ClassMatrix(), train, test)
}

// EvaluateTable ranks IRI pairs against a table of vectors. Pairs naming
// entities missing from the table are skipped.
func (e *Evaluator) EvaluateTable(ctx context.Context, table *embeddings.Table, train, test [][2]string) (*Result, error) {
	names := table.Names()
	index := make(map[string]int, len(names))
	x := mat.NewDense(max(len(names), 1), max(table.Dimension(), 1), nil)
	for i, name := range names {
		vec, err := table.Embed(ctx, name)
		if err != nil {
			return nil, err
		}
		x.SetRow(i, vec)
		index[name] = i
	}
	if len(names) == 0 {
		return nil, errors.Wrap(ErrNoTestPairs, "empty embedding table")
	}

	encode := func(in [][2]string) ([]dataset.Pair, int) {
		var out []dataset.Pair
		skipped := 0
		for _, p := range in {
			h, ok1 := index[p[0]]
			t, ok2 := index[p[1]]
			if !ok1 || !ok2 {
				skipped++
				continue
			}
			out = append(out, dataset.Pair{Head: h, Tail: t})
		}
		return out, skipped
	}
	trainPairs, _ := encode(train)
	testPairs, skipped := encode(test)

	res, err := e.Rank(ctx, x, trainPairs, testPairs)
	if err != nil {
		return nil, err
	}
	res.Skipped += skipped
	return res, nil
}

// Rank computes raw and filtered ranks of every test pair's tail among the
// rows of x. Raw ranking masks only the head itself; filtered ranking also
// masks the training tails of the head, except the pair's own tail.
func (e *Evaluator) Rank(ctx context.Context, x *mat.Dense, train, test []dataset.Pair) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	ctx, span := e.tracer.StartEvaluationSpan(ctx, e.cfg.Relation, len(test))
	defer span.End()

	res, err := e.rank(ctx, x, train, test)
	if err != nil {
		tracing.RecordSpanError(span, err)
		return nil, err
	}
	tracing.RecordSpanDuration(span, time.Since(start))
	tracing.RecordSpanSuccess(span)

	for _, filtered := range []bool{false, true} {
		m := res.Raw
		if filtered {
			m = res.Filtered
		}
		e.logger.LogEvaluation(ctx, filtered, m.MeanRank, m.Hits1, m.Hits10, m.Hits100, res.Pairs)
		if e.metrics != nil {
			e.metrics.RecordRanking(filtered, m.MeanRank, m.AUC, m.Hits())
		}
	}
	return res, nil
}

func (e *Evaluator) rank(ctx context.Context, x *mat.Dense, train, test []dataset.Pair) (*Result, error) {
	if x == nil {
		return nil, errors.Wrap(ErrDimensionMismatch, "no embedding matrix")
	}
	n, dim := x.Dims()
	if dim == 0 {
		return nil, errors.Wrap(ErrDimensionMismatch, "embedding matrix has no columns")
	}

	res := &Result{Relation: e.cfg.Relation}
	var pairs []dataset.Pair
	for _, p := range test {
		if !inRange(p, n) || p.Head == p.Tail {
			res.Skipped++
			continue
		}
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 {
		return nil, ErrNoTestPairs
	}
	res.Pairs = len(pairs)

	known := make(map[int][]int)
	for _, p := range train {
		if inRange(p, n) {
			known[p.Head] = append(known[p.Head], p.Tail)
		}
	}

	// Cached rows belong to the previous matrix.
	e.rows.Clear()
	unit := unitRows(x)

	raw := make([]float64, len(pairs))
	filtered := make([]float64, len(pairs))
	rawAUC := make([]float64, len(pairs))
	filteredAUC := make([]float64, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, _, err := e.rows.GetOrCompute(gctx, p.Head, func() ([]float64, error) {
				return cosineRow(unit, p.Head), nil
			})
			if err != nil {
				return err
			}

			d := append([]float64(nil), row...)
			d[p.Head] = Masked
			var candidates int
			raw[i], candidates = RankOf(d, p.Tail)
			rawAUC[i] = AUC(raw[i], candidates)

			for _, t := range known[p.Head] {
				if t != p.Tail {
					d[t] = Masked
				}
			}
			filtered[i], candidates = RankOf(d, p.Tail)
			filteredAUC[i] = AUC(filtered[i], candidates)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "ranking interrupted")
	}

	res.Raw = aggregate(raw, rawAUC)
	res.Filtered = aggregate(filtered, filteredAUC)
	return res, nil
}

func inRange(p dataset.Pair, n int) bool {
	return p.Head >= 0 && p.Head < n && p.Tail >= 0 && p.Tail < n
}
