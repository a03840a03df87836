package main

import (
	"context"
	"database/sql"
	"log"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/zayn-rush/rush-backend/config"
	"github.com/zayn-rush/rush-backend/internal/challenge"
	"github.com/zayn-rush/rush-backend/internal/match"
	"github.com/zayn-rush/rush-backend/internal/server"
	"github.com/zayn-rush/rush-backend/internal/session"
	"github.com/zayn-rush/rush-backend/internal/store"
	redisPkg "github.com/zayn-rush/rush-backend/pkg/redis"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	sqlDB, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}

	var cache *store.StatsCache
	if cfg.RedisAddr != "" {
		rdb, err := redisPkg.NewClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("redis unreachable", zap.Error(err))
		}
		defer rdb.Close()
		cache = store.NewStatsCache(rdb, logger)
	}

	st := store.New(sqlDB, cache)
	if err := st.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}

	registry := session.NewRegistry()
	dispatcher := match.NewDispatcher(st, registry, cfg.PeerPort, logger)
	broker := challenge.NewBroker(registry, dispatcher, logger)

	srv := server.New(st, registry, broker, logger)
	if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
