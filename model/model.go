// Package model trains normal-form ontology embeddings.
//
// A Model owns one embedding table for classes, one for roles and the shared
// categorical sub-networks. Every step draws one batch per normal form,
// sums pos + relu(margin − neg) over them and applies one optimizer update.
package model

import (
	"context"
	"math/rand"
	"time"

	"github.com/bio-ontology-research-group/OntoML/autodiff"
	"github.com/bio-ontology-research-group/OntoML/catnet"
	"github.com/bio-ontology-research-group/OntoML/core"
	"github.com/bio-ontology-research-group/OntoML/dataset"
	"github.com/bio-ontology-research-group/OntoML/losses"
	"github.com/bio-ontology-research-group/OntoML/nn"
	"github.com/bio-ontology-research-group/OntoML/pkg/logging"
	"github.com/bio-ontology-research-group/OntoML/pkg/metrics"
	"github.com/bio-ontology-research-group/OntoML/pkg/tracing"
	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotTrained   = errors.New("model is not trained")
	ErrEmptyDataset = errors.New("training dataset has no axioms")
)

// EpochStats summarises one training epoch.
type EpochStats struct {
	Epoch    int
	Loss     float64
	Batches  int
	Duration time.Duration
}

// Option configures a Model.
type Option func(*Model)

func WithLogger(l *logging.Logger) Option { return func(m *Model) { m.logger = l } }

func WithMetrics(p *metrics.PrometheusMetrics) Option { return func(m *Model) { m.metrics = p } }

func WithTracer(t *tracing.Tracer) Option { return func(m *Model) { m.tracer = t } }

// Model is the normal-form embedding model.
type Model struct {
	cfg   Config
	built *dataset.Built

	rng       *rand.Rand
	classes   *nn.Embedding
	roles     *nn.Embedding
	nets      *catnet.Nets
	optimizer nn.Optimizer
	sampler   *losses.Sampler
	loaders   map[dataset.Subset]map[core.Kind]*dataset.Loader

	logger   *logging.Logger
	metrics  *metrics.PrometheusMetrics
	tracer   *tracing.Tracer
	progress rate.Sometimes

	epochs  int
	trained bool
}

// New normalizes ds, builds every table and loader and initialises all
// parameters from cfg.Seed.
func New(ds *dataset.Dataset, cfg Config, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Model{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		logger:   logging.NewNop(),
		tracer:   tracing.NewNop(),
		progress: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}

	built, err := dataset.Build(ds, dataset.Options{Extended: cfg.Extended})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build dataset")
	}
	m.built = built
	for _, s := range dataset.Subsets() {
		if st, ok := built.Stats[s]; ok {
			m.logger.LogNormalization(context.Background(), s.String(), st.Axioms, st.Emitted, st.Skipped, st.Fresh)
		}
	}

	vocab := built.Vocabulary
	m.classes = nn.NewEmbedding("classes", vocab.NumClasses(), cfg.Dim, m.rng)
	m.roles = nn.NewEmbedding("roles", max(vocab.NumRoles(), 1), cfg.Dim, m.rng)
	m.nets = catnet.NewNets(catnet.Config{Dim: cfg.Dim, HiddenDim: cfg.HiddenDim}, m.rng)

	m.optimizer, err = nn.NewOptimizer(cfg.Optimizer, m.parameters(), cfg.LearningRate)
	if err != nil {
		return nil, err
	}
	m.sampler, err = losses.NewSampler(m.rng, vocab.NumClasses())
	if err != nil {
		return nil, err
	}

	m.loaders = make(map[dataset.Subset]map[core.Kind]*dataset.Loader)
	for s, tables := range built.Tables {
		loaders := make(map[core.Kind]*dataset.Loader, len(tables))
		for kind, table := range tables {
			l, err := dataset.NewLoader(table, cfg.BatchSize, s == dataset.Training, m.rng)
			if err != nil {
				return nil, err
			}
			loaders[kind] = l
		}
		m.loaders[s] = loaders
	}
	return m, nil
}

func (m *Model) Config() Config                   { return m.cfg }
func (m *Model) Vocabulary() *dataset.Vocabulary  { return m.built.Vocabulary }
func (m *Model) Dataset() *dataset.Built          { return m.built }
func (m *Model) Epochs() int                      { return m.epochs }
func (m *Model) Trained() bool                    { return m.trained }
func (m *Model) SetOptimizer(opt nn.Optimizer)    { m.optimizer = opt }
func (m *Model) TrainingDatasets() dataset.Tables { return m.built.Tables[dataset.Training] }

// ValidationDatasets returns the validation tables.
func (m *Model) ValidationDatasets() (dataset.Tables, error) {
	t, ok := m.built.Tables[dataset.Validation]
	if !ok {
		return nil, errors.New("validation dataset is nil")
	}
	return t, nil
}

// TestingDatasets returns the testing tables.
func (m *Model) TestingDatasets() (dataset.Tables, error) {
	t, ok := m.built.Tables[dataset.Testing]
	if !ok {
		return nil, errors.New("testing dataset is nil")
	}
	return t, nil
}

func (m *Model) TrainingLoaders() map[core.Kind]*dataset.Loader {
	return m.loaders[dataset.Training]
}

// ValidationLoaders returns the sequential validation loaders.
func (m *Model) ValidationLoaders() (map[core.Kind]*dataset.Loader, error) {
	l, ok := m.loaders[dataset.Validation]
	if !ok {
		return nil, errors.New("validation dataloader is nil")
	}
	return l, nil
}

// TestingLoaders returns the sequential testing loaders.
func (m *Model) TestingLoaders() (map[core.Kind]*dataset.Loader, error) {
	l, ok := m.loaders[dataset.Testing]
	if !ok {
		return nil, errors.New("testing dataloader is nil")
	}
	return l, nil
}

func (m *Model) lossModel() losses.Model {
	return losses.Model{Classes: m.classes, Roles: m.roles, Nets: m.nets}
}

func (m *Model) parameters() []*nn.Parameter {
	return nn.Collect(m.classes, m.roles, m.nets)
}

// Train runs epochs passes over the training tables; epochs ≤ 0 uses the
// configured count. It stops between steps when ctx is done.
func (m *Model) Train(ctx context.Context, epochs int) ([]EpochStats, error) {
	if m.optimizer == nil {
		return nil, errors.New("optimizer is not set")
	}
	if epochs <= 0 {
		epochs = m.cfg.Epochs
	}
	if m.TrainingDatasets().Len() == 0 {
		return nil, ErrEmptyDataset
	}

	handlers := make(map[core.Kind]losses.Handler)
	kinds := m.TrainingDatasets().Kinds()
	for _, k := range kinds {
		h, err := losses.Classify(k)
		if err != nil {
			return nil, err
		}
		handlers[k] = h
	}

	history := make([]EpochStats, 0, epochs)
	for e := 0; e < epochs; e++ {
		st, err := m.epoch(ctx, kinds, handlers)
		if err != nil {
			return history, err
		}
		history = append(history, st)
	}
	if len(history) > 0 {
		m.trained = true
	}
	return history, nil
}

func (m *Model) epoch(ctx context.Context, kinds []core.Kind, handlers map[core.Kind]losses.Handler) (EpochStats, error) {
	m.epochs++
	st := EpochStats{Epoch: m.epochs}
	ctx, span := m.tracer.StartEpochSpan(ctx, st.Epoch)
	defer span.End()

	start := time.Now()
	batches := make(map[core.Kind][]core.Batch, len(kinds))
	steps := 0
	for _, k := range kinds {
		batches[k] = m.loaders[dataset.Training][k].Epoch()
		steps = max(steps, len(batches[k]))
	}

	lm := m.lossModel()
	total := 0.0
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			tracing.RecordSpanError(span, err)
			return st, err
		}

		m.optimizer.ZeroGrad()
		tape := autodiff.NewTape()
		var terms []*autodiff.Variable
		for _, k := range kinds {
			if step >= len(batches[k]) {
				continue
			}
			obj, _, _, err := handlers[k].Objective(tape, lm, batches[k][step], m.sampler, m.cfg.Margin)
			if err != nil {
				tracing.RecordSpanError(span, err)
				return st, errors.Wrapf(err, "epoch %d step %d", st.Epoch, step)
			}
			if m.metrics != nil {
				m.metrics.RecordBatch(k.String(), obj.Scalar())
			}
			terms = append(terms, obj)
		}

		loss := tape.SumAll(terms...)
		if err := tape.Backward(loss); err != nil {
			return st, err
		}
		m.optimizer.Step()

		total += loss.Scalar()
		st.Batches++
		m.progress.Do(func() {
			m.logger.Debug("Training step", "epoch", st.Epoch, "step", step, "steps", steps, "loss", loss.Scalar())
		})
	}

	st.Loss = total / float64(max(st.Batches, 1))
	st.Duration = time.Since(start)
	tracing.AddSpanAttributes(span, map[string]interface{}{"train.loss": st.Loss, "train.batches": st.Batches})
	tracing.RecordSpanSuccess(span)
	if m.metrics != nil {
		m.metrics.RecordEpoch(st.Loss, st.Duration)
	}
	m.logger.LogEpoch(ctx, st.Epoch, st.Loss, st.Batches, st.Duration)
	return st, nil
}

// ValidationLoss returns the mean positive loss over the validation batches.
func (m *Model) ValidationLoss(ctx context.Context) (float64, error) {
	return m.evalLoss(ctx, dataset.Validation)
}

// TestingLoss returns the mean positive loss over the testing batches.
func (m *Model) TestingLoss(ctx context.Context) (float64, error) {
	return m.evalLoss(ctx, dataset.Testing)
}

func (m *Model) evalLoss(ctx context.Context, s dataset.Subset) (float64, error) {
	loaders, ok := m.loaders[s]
	if !ok {
		return 0, errors.Newf("%s dataloader is nil", s)
	}

	lm := m.lossModel()
	sum, n := 0.0, 0
	for _, k := range m.built.Tables[s].Kinds() {
		h, err := losses.Classify(k)
		if err != nil {
			return 0, err
		}
		for _, b := range loaders[k].Epoch() {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			loss, err := h.Loss(autodiff.NewTape(), lm, b)
			if err != nil {
				return 0, err
			}
			sum += loss.Scalar()
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// ClassEmbeddings returns a copy of every class vector keyed by IRI.
func (m *Model) ClassEmbeddings() map[string][]float64 {
	vocab := m.built.Vocabulary
	out := make(map[string][]float64, vocab.NumClasses())
	for i := 0; i < vocab.NumClasses(); i++ {
		out[vocab.Class(i)] = m.classes.Row(i)
	}
	return out
}

// RoleEmbeddings returns a copy of every role vector keyed by IRI.
func (m *Model) RoleEmbeddings() map[string][]float64 {
	vocab := m.built.Vocabulary
	out := make(map[string][]float64, vocab.NumRoles())
	for i := 0; i < vocab.NumRoles(); i++ {
		out[vocab.Role(i)] = m.roles.Row(i)
	}
	return out
}

// ClassMatrix returns a copy of the class table, one row per class index.
func (m *Model) ClassMatrix() *mat.Dense {
	return mat.DenseCopyOf(m.classes.Weight.Value)
}

// Parameters returns a copy of every parameter keyed by name.
func (m *Model) Parameters() map[string]*mat.Dense {
	params := m.parameters()
	out := make(map[string]*mat.Dense, len(params))
	for _, p := range params {
		out[p.Name] = mat.DenseCopyOf(p.Value)
	}
	return out
}

// Load replaces every parameter from params and marks the model trained.
func (m *Model) Load(params map[string]*mat.Dense) error {
	for _, p := range m.parameters() {
		v, ok := params[p.Name]
		if !ok {
			return errors.Newf("checkpoint has no parameter %s", p.Name)
		}
		if err := p.Load(v); err != nil {
			return err
		}
	}
	m.trained = true
	return nil
}

// Checkpoint is a serialisable snapshot of a trained model.
type Checkpoint struct {
	Config     Config
	Epochs     int
	Classes    []string
	Roles      []string
	Parameters map[string]*mat.Dense
}

// Checkpoint snapshots the parameters of a trained model.
func (m *Model) Checkpoint() (*Checkpoint, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}
	return &Checkpoint{
		Config:     m.cfg,
		Epochs:     m.epochs,
		Classes:    m.built.Vocabulary.Classes(),
		Roles:      m.built.Vocabulary.Roles(),
		Parameters: m.Parameters(),
	}, nil
}

// Restore loads cp after checking it was taken over the same vocabulary.
func (m *Model) Restore(cp *Checkpoint) error {
	classes := m.built.Vocabulary.Classes()
	if len(cp.Classes) != len(classes) {
		return errors.Newf("checkpoint has %d classes, model has %d", len(cp.Classes), len(classes))
	}
	for i, c := range classes {
		if cp.Classes[i] != c {
			return errors.Newf("checkpoint class %d is %s, model has %s", i, cp.Classes[i], c)
		}
	}
	if err := m.Load(cp.Parameters); err != nil {
		return err
	}
	m.epochs = cp.Epochs
	return nil
}
