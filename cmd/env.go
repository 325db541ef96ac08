package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/metrics"
	"github.com/sells-group/churn-cli/internal/pipeline"
	"github.com/sells-group/churn-cli/internal/predictor"
	"github.com/sells-group/churn-cli/internal/session"
	"github.com/sells-group/churn-cli/internal/store"
)

// pipelineEnv bundles the long-lived dependencies of a scoring command.
type pipelineEnv struct {
	Store     store.Store // nil when run history is disabled
	Predictor *predictor.LogisticModel
	Pipeline  *pipeline.Pipeline
	Registry  *prometheus.Registry
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline loads the predictor once, opens run history and builds the
// Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	pred, err := predictor.Load(cfg.Predictor.ArtifactPath)
	if err != nil {
		return nil, eris.Wrap(err, "load predictor")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []pipeline.Option{pipeline.WithMetrics(metrics.New(reg))}
	if st != nil {
		opts = append(opts, pipeline.WithRecorder(st))
	}

	return &pipelineEnv{
		Store:     st,
		Predictor: pred,
		Pipeline:  pipeline.New(pred, opts...),
		Registry:  reg,
	}, nil
}

// initStore opens and migrates the configured run history store. It returns
// nil when the driver is "none".
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "none":
		zap.L().Info("run history disabled")
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initSessions builds the session store for the HTTP server.
func initSessions(ctx context.Context) (session.Store, error) {
	switch cfg.Session.Driver {
	case "redis":
		return session.NewRedisStore(ctx, session.RedisConfig{
			Addr:      cfg.Session.RedisAddr,
			Password:  cfg.Session.RedisPassword,
			DB:        cfg.Session.RedisDB,
			KeyPrefix: cfg.Session.KeyPrefix,
			TTL:       cfg.Session.TTL(),
		})
	case "memory", "":
		return session.NewMemoryStore(cfg.Session.TTL()), nil
	default:
		return nil, eris.Errorf("unsupported session driver: %s", cfg.Session.Driver)
	}
}
