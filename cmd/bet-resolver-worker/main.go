package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/btc-bet-poc/internal/bet-resolver/consumer"
	"github.com/radieske/btc-bet-poc/internal/bet-resolver/gate"
	"github.com/radieske/btc-bet-poc/internal/bet-resolver/oracle"
	"github.com/radieske/btc-bet-poc/internal/bet-resolver/store"
	"github.com/radieske/btc-bet-poc/internal/bet-resolver/workflow"
	sharedcache "github.com/radieske/btc-bet-poc/internal/shared/cache"
	"github.com/radieske/btc-bet-poc/internal/shared/config"
	"github.com/radieske/btc-bet-poc/internal/shared/db"
	skafka "github.com/radieske/btc-bet-poc/internal/shared/kafka"
	"github.com/radieske/btc-bet-poc/internal/shared/logger"
	"github.com/radieske/btc-bet-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: apostas e placares
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: snapshot da aposta corrente pro lado de leitura
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	betCache := store.NewBetCache(redisClient, 24*time.Hour)
	st := store.NewPostgres(pg, betCache, log)

	// Kafka: consome bet_submitted; DLQ recebe submissões com falha de store
	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSubmitted, "bet-resolver")
	defer reader.Close()

	var dlqWriter *skafka.Writer
	if cfg.TopicBetSubmittedDLQ != "" {
		dlqWriter = skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSubmittedDLQ)
		defer dlqWriter.Close()
	}

	// Métricas Prometheus do pipeline de resolução
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_resolver_submissions_consumed_total", Help: "submissões consumidas"})
	accepted := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_resolver_bets_accepted_total", Help: "apostas aceitas pelo gate"})
	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_resolver_rate_limited_total", Help: "submissões descartadas por cooldown"})
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_resolver_bets_resolved_total", Help: "apostas resolvidas por resultado"}, []string{"result"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_resolver_workflow_failures_total", Help: "workflows falhos por etapa"}, []string{"stage"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_resolver_errors_total", Help: "erros por estágio do consumer"}, []string{"stage"})
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{Name: "bet_resolver_workflows_inflight", Help: "workflows em voo"})
	prometheus.MustRegister(consumed, accepted, rateLimited, resolved, failed, errorsBy, inflight)

	// Engine de workflows: um por aposta aceita
	engine := &workflow.Engine{
		Log:         log,
		Store:       st,
		Oracle:      oracle.New(cfg.PriceAPIBaseURL, cfg.PriceSymbol),
		Timeout:     cfg.WorkflowTimeout,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.RetryBackoff,
		OnStarted:   func() { inflight.Inc() },
		OnResolved: func(result string) {
			inflight.Dec()
			resolved.WithLabelValues(result).Inc()
		},
		OnFailed: func(stage string) {
			inflight.Dec()
			failed.WithLabelValues(stage).Inc()
		},
	}

	worker := &consumer.Worker{
		Log:           log,
		Reader:        reader,
		Gate:          gate.New(log, st, cfg.DefaultWaitSeconds),
		Engine:        engine,
		DLQ:           dlqWriter,
		OnConsumed:    func() { consumed.Inc() },
		OnAccepted:    func() { accepted.Inc() },
		OnRateLimited: func() { rateLimited.Inc() },
		OnError:       func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	// Shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("bet-resolver-worker started",
		zap.String("consume", cfg.TopicBetSubmitted),
		zap.Duration("workflow_timeout", cfg.WorkflowTimeout),
	)

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}

	// Espera os workflows em voo antes de sair
	engine.Wait()
	log.Info("bet-resolver-worker stopped")
}
