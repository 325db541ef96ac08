package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/churn-cli/internal/server"
	"github.com/sells-group/churn-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Upload & Predict and Data Overview HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		sessions, err := initSessions(ctx)
		if err != nil {
			return err
		}
		defer sessions.Close() //nolint:errcheck

		opts := []server.Option{server.WithGatherer(env.Registry)}
		if env.Store != nil {
			opts = append(opts, server.WithRunStore(env.Store))
		}
		api := server.New(server.Config{
			MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			CORSOrigins:    cfg.Server.CORSOrigins,
			TrustProxy:     cfg.Server.TrustProxy,
		}, env.Pipeline, sessions, opts...)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", port),
				zap.String("model", env.Predictor.Name()),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown
		g.Go(func() error {
			<-gCtx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})

		if env.Store != nil && cfg.Store.RetentionDays > 0 {
			g.Go(func() error {
				pruneRuns(gCtx, env.Store, cfg.Store.RetentionDays, time.Hour)
				return nil
			})
		}

		return g.Wait()
	},
}

// pruneRuns deletes runs older than the retention window every interval
// until ctx is cancelled.
func pruneRuns(ctx context.Context, st store.Store, retentionDays int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := st.DeleteRunsBefore(ctx, time.Now().AddDate(0, 0, -retentionDays))
		if err != nil && ctx.Err() == nil {
			zap.L().Warn("prune runs failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("pruned runs", zap.Int("deleted", n), zap.Int("retention_days", retentionDays))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
