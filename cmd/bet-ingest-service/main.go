package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	ihttp "github.com/radieske/btc-bet-poc/internal/bet-ingest/http"
	"github.com/radieske/btc-bet-poc/internal/bet-ingest/producer"
	"github.com/radieske/btc-bet-poc/internal/bet-ingest/repo"
	sharedcache "github.com/radieske/btc-bet-poc/internal/shared/cache"
	"github.com/radieske/btc-bet-poc/internal/shared/config"
	"github.com/radieske/btc-bet-poc/internal/shared/db"
	skafka "github.com/radieske/btc-bet-poc/internal/shared/kafka"
	"github.com/radieske/btc-bet-poc/internal/shared/logger"
	"github.com/radieske/btc-bet-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres (lado de leitura)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache do snapshot da aposta corrente, populado pelo resolver)
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer (topic bet_submitted)
	writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSubmitted)
	defer writer.Close()

	// deps
	reads := repo.NewReader(pg, rdb, log)
	publ := producer.NewKafkaPublisher(writer)

	// HTTP público
	api := ihttp.NewServer(log, reads, publ, cfg.DefaultWaitSeconds)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	log.Info("bet-ingest-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
