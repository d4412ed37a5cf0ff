package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nurpe/towing-settlement/internal/auth"
	"github.com/nurpe/towing-settlement/internal/config"
	"github.com/nurpe/towing-settlement/internal/db"
	"github.com/nurpe/towing-settlement/internal/eventbus"
	"github.com/nurpe/towing-settlement/internal/excel"
	httphandler "github.com/nurpe/towing-settlement/internal/http"
	"github.com/nurpe/towing-settlement/internal/http/middleware"
	"github.com/nurpe/towing-settlement/internal/logger"
	"github.com/nurpe/towing-settlement/internal/pdf"
	"github.com/nurpe/towing-settlement/internal/repository"
	"github.com/nurpe/towing-settlement/internal/service"
	"github.com/nurpe/towing-settlement/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	store := repository.NewGormStore(database)

	bus := eventbus.New(cfg.Settlement.EventBufferSize, logger.WithComponent(log, "eventbus"))
	settings := cfg.Settlement

	excelGenerator := excel.NewGenerator()
	workflow := service.NewWorkflow(store, bus, settings)
	settlement := service.NewSettlement(store, bus, settings)
	ledger := service.NewCommissionLedger(store, bus, settings)
	services := httphandler.Services{
		Workflow:    workflow,
		Batch:       service.NewBatchEngine(workflow),
		Settlement:  settlement,
		Reconciler:  service.NewReconciler(store, bus, settings, excelGenerator),
		Commissions: ledger,
		Excel:       excelGenerator,
		PDF:         pdf.NewGenerator(),
	}

	bus.Subscribe("log", eventbus.NewLogConsumer(logger.WithComponent(log, "events")))
	bus.Subscribe("commissions", eventbus.NewCommissionConsumer(ledger))
	// The bus outlives ctx so requests still draining can publish; it is
	// stopped once the server has shut down.
	bus.Start(context.WithoutCancel(ctx))

	sweeper := worker.NewOverdueSweeper(settlement, settings.OverdueSweep, logger.WithComponent(log, "overdue"))
	go sweeper.Run(ctx)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(services, log)
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), cfg)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("starting settlement service")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		bus.Stop()
		os.Exit(1)
	}
	<-shutdown
	bus.Stop()
	log.Info().Msg("server stopped")
}
