package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptoshop/shopbot/internal/admin"
	"github.com/cryptoshop/shopbot/internal/bot"
	"github.com/cryptoshop/shopbot/internal/catalog"
	"github.com/cryptoshop/shopbot/internal/chat"
	"github.com/cryptoshop/shopbot/internal/checkout"
	"github.com/cryptoshop/shopbot/internal/codes"
	"github.com/cryptoshop/shopbot/internal/config"
	"github.com/cryptoshop/shopbot/internal/database"
	"github.com/cryptoshop/shopbot/internal/payment"
	"github.com/cryptoshop/shopbot/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load .env if present, then the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting shopbot", zap.String("environment", cfg.App.Environment))

	cat, err := catalog.Load(cfg.Bot.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}
	logger.Info("catalog loaded", zap.Int("products", len(cat.Products())))

	db, err := database.NewDB(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connections", zap.Error(err))
		}
	}()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	// Stores and collaborators.
	orders := repository.NewOrderRepository(db.Postgres)
	discounts := repository.NewDiscountRepository(db.Postgres)
	giveaways := repository.NewGiveawayRepository(db.Postgres)
	broadcasts := repository.NewBroadcastRepository(db.Postgres)

	gateway := payment.New(cfg.Payment, logger)
	validator := codes.NewValidator(discounts)

	client := chat.NewClient(cfg.Bot.APIBaseURL, cfg.Bot.Token, cfg.Bot.PollTimeout, logger)

	machine := checkout.NewMachine(cat, validator, gateway, orders, cfg.Bot.Currency, logger)
	console := admin.NewConsole(cfg.Bot.AdminUserID, orders, discounts, giveaways, broadcasts,
		client, cfg.Bot.AdminInterval(), cfg.Bot.Currency, logger)
	router := bot.NewRouter(machine, console, giveaways, cat, client, client,
		cfg.Bot.Currency, cfg.Bot.SupportHandle, logger)

	// Ops HTTP endpoints.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		hostname, _ := os.Hostname()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","service":"shopbot","hostname":"%s"}`, hostname)
	})
	mux.HandleFunc("/health/db", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Postgres.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","message":"postgres unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","postgres":"connected"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
		// h2c so the ops endpoints serve HTTP/2 without TLS.
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	go func() {
		logger.Info("starting ops server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start ops server", zap.Error(err))
		}
	}()

	// Update loop: each inbound event is handled to completion before the
	// next one is processed.
	go func() {
		for {
			updates, err := client.Poll(ctx, cfg.Bot.PollTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("poll failed", zap.Error(err))
				select {
				case <-time.After(3 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, u := range updates {
				router.Handle(ctx, u)
			}
		}
	}()

	logger.Info("bot is running")

	// Wait for interrupt signal to gracefully shut down.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server forced to shut down", zap.Error(err))
	}

	logger.Info("exited gracefully")
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.App.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
