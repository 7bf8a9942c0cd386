package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/offsetgrid/backend/internal/balance"
	"github.com/offsetgrid/backend/internal/cart"
	"github.com/offsetgrid/backend/internal/catalog"
	"github.com/offsetgrid/backend/internal/checkout"
	"github.com/offsetgrid/backend/internal/config"
	"github.com/offsetgrid/backend/internal/reconcile"
	"github.com/offsetgrid/backend/internal/registry"
	"github.com/offsetgrid/backend/internal/retirement"
	"github.com/offsetgrid/backend/internal/router"
	"github.com/offsetgrid/backend/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Registry variant and storage are chosen once here; nothing downstream
	// branches on demo mode.
	var (
		reg              registry.Port
		balanceStore     balance.Store
		cartStore        cart.Store
		orders           checkout.Orders
		certs            retirement.Certificates
		enqueueReconcile checkout.EnqueueReconcileFunc
		riverClient      *river.Client[pgx.Tx]
	)

	if cfg.DemoMode {
		slog.Info("Demo mode: in-memory registry fixture and stores")
		reg = registry.NewDemoFixture()
		balanceStore = balance.NewMemoryStore()
		cartStore = cart.NewMemoryStore()
		orders = checkout.NewMemoryOrders()
		certs = retirement.NewMemoryCertificates()
	} else {
		reg = registry.NewClient(cfg.RegistryURL, cfg.RegistryToken)

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Unable to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
			os.Exit(1)
		}
		slog.Info("Connected to PostgreSQL")

		// River migrations
		migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			slog.Error("Failed to create River migrator", "error", err)
			os.Exit(1)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			slog.Error("River migrate up failed", "error", err)
			os.Exit(1)
		}

		balanceStore = balance.NewPostgresStore(pool)
		cartStore = cart.NewPostgresStore(pool)
		orders = checkout.NewPostgresOrders(pool)
		certs = retirement.NewPostgresCertificates(pool)

		workers := river.NewWorkers()
		river.AddWorker(workers, reconcile.NewHoldingsWorker(reg, balanceStore, logger))
		riverClient, err = river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: 5},
			},
			Workers: workers,
		})
		if err != nil {
			slog.Error("Failed to create River client", "error", err)
			os.Exit(1)
		}
		enqueueReconcile = func(ctx context.Context, ownerOrgID string) error {
			_, err := riverClient.Insert(ctx, reconcile.HoldingsJobArgs{OwnerOrgID: ownerOrgID}, nil)
			return err
		}
	}

	sessions := session.NewService(reg, cfg.JWTSecret)
	sessionHandler := session.NewHandler(sessions, logger)

	catalogSvc := catalog.NewService(reg)
	catalogHandler := catalog.NewHandler(catalogSvc, logger)

	balanceSvc := balance.NewService(reg, balanceStore, logger)
	balanceHandler := balance.NewHandler(balanceSvc, logger)

	cartSvc := cart.NewService(cartStore, logger)
	cartHandler := cart.NewHandler(cartSvc, logger)

	checkoutSvc := checkout.NewService(reg, cartSvc, balanceSvc, orders, enqueueReconcile, logger)
	checkoutHandler := checkout.NewHandler(checkoutSvc, logger)

	retirementSvc := retirement.NewService(reg, balanceSvc, certs, retirement.EnqueueReconcileFunc(enqueueReconcile), logger)
	retirementHandler := retirement.NewHandler(retirementSvc, logger)

	apiRouter := router.New(sessions, sessionHandler, catalogHandler, balanceHandler, cartHandler, checkoutHandler, retirementHandler, reg)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	if riverClient != nil {
		riverCtx, stopRiver := context.WithCancel(ctx)
		defer stopRiver()
		go func() {
			if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
				slog.Error("River client stopped", "error", err)
			}
		}()
	}

	slog.Info("Starting HTTP server", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
