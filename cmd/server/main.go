// Command server runs the AromaBox backend HTTP API.
//
// Startup order: env + config, logging, database (with migrations), rule set
// and catalog, tracing, router, then an http.Server with graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aromabox/go-aroma-backend/docs"
	"github.com/aromabox/go-aroma-backend/internal/assistant"
	"github.com/aromabox/go-aroma-backend/internal/catalog"
	"github.com/aromabox/go-aroma-backend/internal/config"
	httpapi "github.com/aromabox/go-aroma-backend/internal/http"
	"github.com/aromabox/go-aroma-backend/internal/observability"
	"github.com/aromabox/go-aroma-backend/internal/repo"
	"github.com/aromabox/go-aroma-backend/internal/rules"
	"github.com/aromabox/go-aroma-backend/internal/sysutil"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	// Rule set: optional JSON override, builtin rules otherwise. A broken
	// override file is a warning, not a crash.
	ruleSrc := rules.Builtin()
	if cfg.RulesPath != "" {
		if loaded, err := rules.LoadFile(cfg.RulesPath); err != nil {
			log.Warn().Err(err).Str("path", cfg.RulesPath).Msg("rules override failed, using builtin rules")
		} else {
			ruleSrc = loaded
		}
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if loaded, err := catalog.LoadFile(cfg.CatalogPath); err != nil {
			log.Warn().Err(err).Str("path", cfg.CatalogPath).Msg("catalog override failed, using builtin catalog")
		} else {
			cat = loaded
		}
	}

	engine := &assistant.Engine{Rules: ruleSrc}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = version

	r := gin.New()
	httpapi.RegisterRoutes(r, db, engine, cat, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("base_path", cfg.APIBasePath).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}
