package config

import (
	"github.com/bio-ontology-research-group/OntoML/evaluation"
	"github.com/bio-ontology-research-group/OntoML/inference"
	"github.com/bio-ontology-research-group/OntoML/model"
	"github.com/bio-ontology-research-group/OntoML/pkg/logging"
	"github.com/bio-ontology-research-group/OntoML/pkg/tracing"
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	m := model.DefaultConfig()
	v.SetDefault("model.dim", m.Dim)
	v.SetDefault("model.hidden_dim", m.HiddenDim)
	v.SetDefault("model.margin", m.Margin)
	v.SetDefault("model.learning_rate", m.LearningRate)
	v.SetDefault("model.batch_size", m.BatchSize)
	v.SetDefault("model.epochs", m.Epochs)
	v.SetDefault("model.seed", m.Seed)
	v.SetDefault("model.extended", m.Extended)
	v.SetDefault("model.optimizer", m.Optimizer)

	v.SetDefault("data.training", "")
	v.SetDefault("data.validation", "")
	v.SetDefault("data.testing", "")

	e := evaluation.DefaultConfig()
	v.SetDefault("evaluation.relation", e.Relation)
	v.SetDefault("evaluation.workers", e.Workers)
	v.SetDefault("evaluation.cache_size", e.CacheSize)

	i := inference.DefaultConfig()
	v.SetDefault("inference.relation", i.Relation)
	v.SetDefault("inference.pool", i.Pool)

	l := logging.DefaultConfig()
	v.SetDefault("logging.level", l.Level)
	v.SetDefault("logging.format", l.Format)
	v.SetDefault("logging.output", l.Output)
	v.SetDefault("logging.add_caller", l.AddCaller)
	v.SetDefault("logging.add_stack", l.AddStack)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")

	t := tracing.DefaultConfig()
	v.SetDefault("tracing.service_name", t.ServiceName)
	v.SetDefault("tracing.service_version", t.ServiceVersion)
	v.SetDefault("tracing.jaeger_endpoint", t.JaegerEndpoint)
	v.SetDefault("tracing.environment", t.Environment)

	v.SetDefault("store.path", "ontoml.db")
}
