// Command collabd is a demo server wiring collabcore's session manager,
// document store and WebSocket transport together behind an HTTP mux.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/replicaworks/collabcore/metrics"
	"github.com/replicaworks/collabcore/session"
	"github.com/replicaworks/collabcore/transport"
)

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	addr := flag.String("addr", envOrDefault("COLLABD_ADDR", ":8080"), "listen address")
	maxClients := flag.Int("max-clients", envIntOrDefault("COLLABD_MAX_CLIENTS", 100), "max clients per session")
	idleTimeout := flag.Int("idle-timeout", envIntOrDefault("COLLABD_IDLE_TIMEOUT_SECS", 3600), "idle session timeout, in seconds")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "collabd: logger init:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	collectors := metrics.New()

	cfg := session.DefaultConfig()
	cfg.MaxClients = *maxClients
	cfg.IdleTimeoutSecs = uint64(*idleTimeout)

	manager := session.NewManager(
		session.WithManagerConfig(cfg),
		session.WithManagerLogger(logger),
		session.WithManagerMetrics(collectors),
	)
	go runIdleSweeper(manager, time.Duration(*idleTimeout)*time.Second, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws/", transport.NewWSHandler(manager, logger))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("collabcore server listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// runIdleSweeper periodically evicts sessions with zero connected clients
// that have been inactive past timeout, reclaiming their memory.
func runIdleSweeper(manager *session.Manager, timeout time.Duration, logger *zap.Logger) {
	if timeout <= 0 {
		return
	}
	ticker := time.NewTicker(timeout / 4)
	defer ticker.Stop()
	for range ticker.C {
		if n := manager.CleanupIdle(timeout); n > 0 {
			logger.Info("swept idle sessions", zap.Int("count", n))
		}
	}
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
