// chatproxy fronts the chat backend for local web clients: it forwards every
// /api request to the configured backend host with headers passed through,
// the way the original front-end's API routes did, and adds CORS and
// per-client rate limiting on the way in.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/jmlee/bandmate-chat/internal/config"
	"github.com/jmlee/bandmate-chat/internal/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	backend, err := url.Parse(cfg.BackendBaseURL)
	if err != nil {
		slog.Error("invalid BACKEND_BASE_URL", "value", cfg.BackendBaseURL, "error", err)
		os.Exit(1)
	}

	proxy := httputil.NewSingleHostReverseProxy(backend)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("upstream request failed", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{
			"isSuccess": false,
			"message":   "upstream unavailable",
		})
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(cfg.CORSOrigin))
	router.Use(middleware.RateLimit(rate.Limit(20), 40))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "chatproxy",
		})
	}).Methods("GET", "OPTIONS")

	router.PathPrefix("/api/").Handler(proxy)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("chatproxy listening", "port", cfg.Port, "backend", cfg.BackendBaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("chatproxy stopped gracefully")
}
