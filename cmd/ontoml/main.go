// Command ontoml normalizes ontologies, trains normal-form embeddings and
// evaluates them on interaction ranking.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bio-ontology-research-group/OntoML/config"
	"github.com/bio-ontology-research-group/OntoML/dataset"
	"github.com/bio-ontology-research-group/OntoML/model"
	"github.com/bio-ontology-research-group/OntoML/ontology"
	"github.com/bio-ontology-research-group/OntoML/pkg/observability"
	"github.com/bio-ontology-research-group/OntoML/store"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "ontoml"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Normal-form ontology embeddings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(
		normalizeCmd(),
		trainCmd(&configPath),
		evaluateCmd(&configPath),
		predictCmd(&configPath),
		runsCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// app holds what every data command needs.
type app struct {
	cfg   *config.Config
	obs   *observability.Manager
	store *store.SQLiteStore
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	obs, err := observability.NewManager(observability.Config{Logging: cfg.Logging, Tracing: cfg.Tracing})
	if err != nil {
		return nil, errors.Wrap(err, "failed to set up observability")
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := obs.ServeMetrics(ctx, cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				obs.GetLogger().Error("Metrics server stopped", "error", err)
			}
		}()
	}
	return &app{cfg: cfg, obs: obs, store: st}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.obs.Shutdown(context.Background())
}

// loadDataset reads every configured split.
func (a *app) loadDataset() (*dataset.Dataset, error) {
	paths := a.cfg.Data
	if paths.Training == "" {
		return nil, errors.WithHint(dataset.ErrNoTraining, "set data.training or ONTOML_DATA_TRAINING")
	}
	ds := &dataset.Dataset{}
	for _, split := range []struct {
		path string
		dst  **ontology.Ontology
	}{
		{paths.Training, &ds.Training},
		{paths.Validation, &ds.Validation},
		{paths.Testing, &ds.Testing},
	} {
		if split.path == "" {
			continue
		}
		o, err := ontology.LoadFile(split.path)
		if err != nil {
			return nil, err
		}
		*split.dst = o
	}
	return ds, nil
}

func (a *app) newModel(ds *dataset.Dataset, cfg model.Config) (*model.Model, error) {
	return model.New(ds, cfg,
		model.WithLogger(a.obs.GetLogger()),
		model.WithMetrics(a.obs.GetMetrics()),
		model.WithTracer(a.obs.GetTracer()),
	)
}

// restore rebuilds the model of runID, or of the latest run when empty.
func (a *app) restore(ctx context.Context, runID string) (*model.Model, string, error) {
	if runID == "" {
		latest, err := a.store.LatestRun(ctx)
		if err != nil {
			return nil, "", err
		}
		runID = latest
	}
	cp, err := a.store.LoadCheckpoint(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	ds, err := a.loadDataset()
	if err != nil {
		return nil, "", err
	}
	m, err := a.newModel(ds, cp.Config)
	if err != nil {
		return nil, "", err
	}
	if err := m.Restore(cp); err != nil {
		return nil, "", errors.WithHint(err, "evaluate with the data the run was trained on")
	}
	return m, runID, nil
}
