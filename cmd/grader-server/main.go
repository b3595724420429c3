package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"

	grader "github.com/menta2k/banana-grader"
	"github.com/menta2k/banana-grader/internal/config"
	"github.com/menta2k/banana-grader/pkg/metrics"
	"github.com/menta2k/banana-grader/pkg/server"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "config file (JSON); missing file means defaults")
	flag.Parse()

	log.SetHandler(json.New(os.Stderr))

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	lvl, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}
	log.SetLevel(lvl)

	g, err := grader.NewFromConfig(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize grader")
	}

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := server.NewSessionStore(g.NewSession, cfg.SessionTTL())
	go sessions.Run(ctx, time.Minute)

	handlers := server.NewHandlers(g, sessions, cfg.Server.MaxUploadMB)
	router := server.NewRouter(handlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.WithFields(log.Fields{
			"port":        cfg.Server.Port,
			"max_dim":     cfg.Analysis.MaxDimension,
			"pacing_ms":   cfg.Analysis.PacingMillis,
			"advisor":     g.HasAdvisor(),
			"session_ttl": cfg.SessionTTL().String(),
		}).Info("starting grader server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}
