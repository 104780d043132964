package model

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Config holds the hyperparameters of the embedding model.
type Config struct {
	Dim          int     `mapstructure:"dim" yaml:"dim"`
	HiddenDim    int     `mapstructure:"hidden_dim" yaml:"hidden_dim"`
	Margin       float64 `mapstructure:"margin" yaml:"margin"`
	LearningRate float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	BatchSize    int     `mapstructure:"batch_size" yaml:"batch_size"`
	Epochs       int     `mapstructure:"epochs" yaml:"epochs"`
	Seed         int64   `mapstructure:"seed" yaml:"seed"`
	// Extended trains the ⊥ variants with their own tables.
	Extended  bool   `mapstructure:"extended" yaml:"extended"`
	Optimizer string `mapstructure:"optimizer" yaml:"optimizer"`
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		Dim:          50,
		Margin:       0.1,
		LearningRate: 0.001,
		BatchSize:    256,
		Epochs:       10,
		Seed:         42,
		Optimizer:    "adam",
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Dim <= 0:
		return errors.New("embedding dimension must be positive")
	case c.HiddenDim < 0:
		return errors.New("hidden dimension must not be negative")
	case c.BatchSize <= 0:
		return errors.New("batch size must be positive")
	case c.LearningRate <= 0:
		return errors.New("learning rate must be positive")
	case c.Margin < 0:
		return errors.New("margin must not be negative")
	case c.Epochs <= 0:
		return errors.New("epochs must be positive")
	}
	switch strings.ToLower(c.Optimizer) {
	case "", "adam", "sgd":
	default:
		return errors.WithHint(errors.Newf("unknown optimizer %q", c.Optimizer), "use adam or sgd")
	}
	return nil
}
