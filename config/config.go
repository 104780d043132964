// Package config loads ontoml settings from YAML files and ONTOML_
// environment variables.
package config

import (
	"strings"

	"github.com/bio-ontology-research-group/OntoML/evaluation"
	"github.com/bio-ontology-research-group/OntoML/inference"
	"github.com/bio-ontology-research-group/OntoML/model"
	"github.com/bio-ontology-research-group/OntoML/pkg/logging"
	"github.com/bio-ontology-research-group/OntoML/pkg/tracing"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ONTOML_MODEL_DIM.
const EnvPrefix = "ONTOML"

// Config is the complete ontoml configuration.
type Config struct {
	Model      model.Config      `mapstructure:"model"`
	Data       DataConfig        `mapstructure:"data"`
	Evaluation evaluation.Config `mapstructure:"evaluation"`
	Inference  inference.Config  `mapstructure:"inference"`
	Logging    logging.Config    `mapstructure:"logging"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Tracing    tracing.Config    `mapstructure:"tracing"`
	Store      StoreConfig       `mapstructure:"store"`
}

// DataConfig names the YAML corpora of each split. Only Training is required.
type DataConfig struct {
	Training   string `mapstructure:"training"`
	Validation string `mapstructure:"validation"`
	Testing    string `mapstructure:"testing"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Validate checks the sections that have no sensible zero value.
func (c *Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return errors.Wrap(err, "invalid model config")
	}
	if c.Store.Path == "" {
		return errors.New("store path must not be empty")
	}
	return nil
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads path, if not empty, over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
