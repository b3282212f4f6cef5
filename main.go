package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kestrelpay/payout-api/api"
	"github.com/kestrelpay/payout-api/config"
	"github.com/kestrelpay/payout-api/db"
	"github.com/kestrelpay/payout-api/ledger"
	"github.com/kestrelpay/payout-api/middleware"
	"github.com/kestrelpay/payout-api/payout"
	"github.com/kestrelpay/payout-api/transfer"
)

const reconcileInterval = 5 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// 1. Redis Connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))

	// 2. Postgres Connection
	sqlDB, err := sql.Open("pgx", cfg.DBURL)
	if err != nil {
		logger.Fatal("db driver error", zap.Error(err))
	}
	if err := sqlDB.Ping(); err != nil {
		logger.Fatal("postgres ping failed", zap.Error(err))
	}
	logger.Info("postgres connected")

	if err := db.Initialize(sqlDB); err != nil {
		logger.Fatal("schema initialization failed", zap.Error(err))
	}

	// 3. Wire services
	store := ledger.NewStore(sqlDB, logger.Named("ledger"))
	transfers := transfer.NewHTTPClient(cfg.ProviderURL, cfg.ProviderAPIKey, logger.Named("transfer"))
	locks := payout.NewRedisLocks(rdb, logger.Named("locks"))
	payoutSvc := payout.NewService(store, transfers, locks, cfg.SinkAccount, cfg.Currency, logger.Named("payout"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go payoutSvc.RunReconciler(ctx, reconcileInterval)

	// 4. Router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, "Payout API is Running!")
	})
	r.With(middleware.Idempotency(rdb, logger.Named("idempotency"))).
		Post("/payout", api.PayoutHandler(payoutSvc, logger.Named("api")))

	logger.Info("server starting", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
