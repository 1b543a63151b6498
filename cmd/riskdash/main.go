// Command riskdash runs the dashboard client core headless: it signs in
// against the identity provider, scores submissions, and mirrors the
// signed-in user's prediction history, logging results as they land.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"riskdash/internal/client"
	historymetrics "riskdash/internal/history/metrics"
	"riskdash/internal/identity"
	"riskdash/internal/platform/config"
	"riskdash/internal/platform/httpserver"
	"riskdash/internal/platform/logger"
	platformredis "riskdash/internal/platform/redis"
	predictionmetrics "riskdash/internal/prediction/metrics"
	"riskdash/internal/risk"
	"riskdash/internal/scoring"
	"riskdash/internal/store/record"
	auditpublisher "riskdash/pkg/platform/audit/publisher"
	auditmemory "riskdash/pkg/platform/audit/store/memory"
	auditpostgres "riskdash/pkg/platform/audit/store/postgres"
	"riskdash/pkg/platform/circuit"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.IdentityURL == "" {
		log.Error("RISKDASH_IDENTITY_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, auditor, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.Error("store setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()
	defer auditor.Close()

	provider, err := identity.NewClient(identity.Config{
		BaseURL: cfg.IdentityURL,
		APIKey:  cfg.IdentityAPIKey,
		Logger:  log,
	})
	if err != nil {
		log.Error("identity client setup failed", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	scorer, err := scoring.NewClient(scoring.Config{
		BaseURL: cfg.ScoringURL,
		Logger:  log,
		Breaker: circuit.New("scoring"),
	})
	if err != nil {
		log.Error("scoring client setup failed", "error", err)
		os.Exit(1)
	}

	core := client.New(provider, scorer, store,
		client.WithLogger(log),
		client.WithAuditPublisher(auditor),
		client.WithPredictionMetrics(predictionmetrics.New()),
		client.WithHistoryMetrics(historymetrics.New()),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return core.Run(ctx)
	})

	g.Go(func() error {
		watchResults(ctx, core, log)
		return nil
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := httpserver.New(cfg.MetricsAddr, mux)

		g.Go(func() error {
			log.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info("riskdash running", "scoring_url", cfg.ScoringURL)

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("shutting down with error", "error", err)
		os.Exit(1)
	}
}

// buildStores picks the record store backend from config and wires the audit
// trail next to it: postgres-backed when a DSN is present, in-memory
// otherwise.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (record.Store, *auditpublisher.Publisher, func(), error) {
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}

		store := record.NewPostgres(db, cfg.PostgresDSN, log)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}

		auditStore := auditpostgres.New(db)
		if err := auditStore.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		auditor := auditpublisher.NewPublisher(auditStore,
			auditpublisher.WithAsyncBuffer(256),
			auditpublisher.WithLogger(log),
		)
		log.Info("using postgres record store")
		return store, auditor, func() { db.Close() }, nil
	}

	auditor := auditpublisher.NewPublisher(auditmemory.NewInMemoryStore(),
		auditpublisher.WithAsyncBuffer(256),
		auditpublisher.WithLogger(log),
	)

	if cfg.Redis.URL != "" {
		rdb, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("using redis record store")
		return record.NewRedis(rdb.Client, log), auditor, func() { rdb.Close() }, nil
	}

	log.Info("using in-memory record store")
	return record.NewMemoryStore(), auditor, func() {}, nil
}

// watchResults logs every scored result with its derived tier and leading
// attribution, and history snapshots as they replace the cache.
func watchResults(ctx context.Context, core *client.Client, log *slog.Logger) {
	results, cancelResults := core.Predictions.Watch()
	defer cancelResults()
	history, cancelHistory := core.History.Watch()
	defer cancelHistory()

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-results:
			if state.Result == nil {
				continue
			}
			tier := risk.ClassifyProbability(state.Result.DefaultProbability)
			attrs := []any{"default_probability", state.Result.DefaultProbability, "tier", string(tier)}
			if ranked := risk.Rank(state.Result.Explanation); len(ranked) > 0 {
				attrs = append(attrs, "top_factor", ranked[0].Feature, "direction", string(ranked[0].Direction))
			}
			log.Info("prediction scored", attrs...)
		case state := <-history:
			if state.Err != nil {
				log.Warn("history degraded", "error", state.Err)
				continue
			}
			tiers := make(map[risk.Tier]int)
			for _, rec := range state.Records {
				tiers[risk.ClassifyProbability(rec.DefaultProbability)]++
			}
			log.Info("history snapshot",
				"records", len(state.Records),
				"low", tiers[risk.TierLow],
				"medium", tiers[risk.TierMedium],
				"high", tiers[risk.TierHigh],
			)
		}
	}
}
