package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pmerrell/payrun/internal/config"
	"github.com/pmerrell/payrun/internal/database"
	"github.com/pmerrell/payrun/internal/ingestion"
	"github.com/pmerrell/payrun/internal/logger"
	"github.com/pmerrell/payrun/internal/parser"
	"github.com/pmerrell/payrun/internal/processor"
	"github.com/pmerrell/payrun/internal/resolver"
	"github.com/pmerrell/payrun/internal/server"
)

func main() {
	log := logger.New()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("could not load .env file, using process environment")
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	db, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to the database")
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	store := database.NewPostgresStore(db)
	client := processor.NewClient(cfg.ProcessorBaseURL, cfg.ProcessorAPIKey, log)

	res := resolver.New(store, client, log)
	documentParser := parser.New(res, log)

	pipeline := ingestion.NewService(store, documentParser, ingestion.Config{
		NumWorkers: cfg.NumPipelineWorkers,
		QueueSize:  cfg.JobQueueSize,
	}, log)
	pipeline.Start(ctx)

	payrollService := server.NewPayrollService(store, pipeline, client, int64(cfg.MaxUploadBytes), log)
	router := server.SetupRoutes(payrollService)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.APIPort),
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.APIPort).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := pipeline.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("pipeline shutdown did not drain in time")
	}
}
