package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/metrics"
	"golang.org/x/sync/errgroup"

	"github.com/quantclass/stocksim/internal/simulation/application"
	"github.com/quantclass/stocksim/internal/simulation/domain"
	"github.com/quantclass/stocksim/internal/simulation/infrastructure/persistence/mysql"
	simredis "github.com/quantclass/stocksim/internal/simulation/infrastructure/persistence/redis"
	"github.com/quantclass/stocksim/internal/simulation/infrastructure/publisher"
	simconsumer "github.com/quantclass/stocksim/internal/simulation/interfaces/consumer"
	httpserver "github.com/quantclass/stocksim/internal/simulation/interfaces/http"
)

var configPath = flag.String("config", "configs/simulation/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	logCfg := &logging.Config{Service: cfg.Server.Name, Level: cfg.Log.Level}
	logger := logging.NewFromConfig(logCfg)
	slog.SetDefault(logger.Logger)

	// 3. Metrics
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)

	// 4. Infrastructure
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(
			&mysql.RunModel{}, &mysql.StockModel{}, &mysql.PriceTickModel{},
			&mysql.TradeModel{}, &mysql.LedgerOrderModel{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	redisCache, err := cache.NewRedisCache(&cfg.Data.Redis, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	kafkaProducer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, metricsImpl)

	// 5. Repositories
	runRepo := mysql.NewRunRepository(db.RawDB())
	stockRepo := mysql.NewStockRepository(db.RawDB())
	tickRepo := mysql.NewTickRepository(db.RawDB())
	tradeRepo := mysql.NewTradeRepository(db.RawDB())
	stateStore := simredis.NewRunStateStore(redisCache.GetClient(), runRepo)
	marketPublisher := publisher.NewKafkaMarketDataPublisher(kafkaProducer)

	// 6. Application Services
	deps := application.Dependencies{
		Runs:      runRepo,
		Stocks:    stockRepo,
		Ticks:     tickRepo,
		Trades:    tradeRepo,
		States:    stateStore,
		Publisher: marketPublisher,
	}
	registry := application.NewRunRegistry(deps, 5*time.Second, 10*time.Second)
	commandSvc := application.NewSimulationService(deps, registry)
	querySvc := application.NewQueryService(runRepo, tickRepo, tradeRepo)

	if err := commandSvc.ResumeActiveRuns(context.Background()); err != nil {
		slog.Error("failed to resume active runs", "error", err)
	}

	// 7. Order Consumer
	consumerCfg := cfg.MessageQueue.Kafka
	consumerCfg.Topic = domain.OrderSubmittedTopic
	if consumerCfg.GroupID == "" {
		consumerCfg.GroupID = "simulation-order-group"
	}
	orderHandler := simconsumer.NewOrderHandler(commandSvc, logger.Logger)
	orderConsumer := kafka.NewConsumer(&consumerCfg, logger, metricsImpl)
	orderConsumer.Start(context.Background(), 3, orderHandler.Handle)

	// 8. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler := httpserver.NewSimulationHandler(commandSvc, querySvc)
	handler.RegisterRoutes(r.Group(""))

	// 9. Start
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
		server := &http.Server{Addr: addr, Handler: r}
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		registry.Shutdown()
		_ = orderConsumer.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
