/*
Package main is the entry point for the call relay server.

It is responsible for loading configuration, initializing the global logging system,
starting the presence coordinator and its periodic statistics log, serving HTTP and
WebSocket traffic, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
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

	"golang.org/x/time/rate"

	"callrelay/internal/app/presence"
	"callrelay/internal/configs"
	"callrelay/internal/handler"
	"callrelay/internal/pkg/limiter"
	"callrelay/internal/pkg/logx"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := configs.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("version", version).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("max_users_per_room", cfg.MaxUsersPerRoom).
		Dur("room_timeout", cfg.RoomTimeout).
		Str("mute_policy", cfg.MutePolicy).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := presence.NewCoordinator(presence.Options{
		MaxUsersPerRoom: cfg.MaxUsersPerRoom,
		RoomTimeout:     cfg.RoomTimeout,
		MutePolicy:      presence.PolicyFromConfig(cfg.MutePolicy),
	})

	upgradeLimiter := limiter.NewIPRateLimiter(rate.Limit(handler.UpgradeRate), handler.UpgradeBurst)

	router := handler.Router(&handler.AppDeps{
		Coordinator:    coordinator,
		Config:         cfg,
		UpgradeLimiter: upgradeLimiter,
		Version:        version,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go runStatsLoop(ctx, coordinator, cfg.StatsInterval)

	go func() {
		logx.Info(fmt.Sprintf("Call relay server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// Hijacked WebSocket connections outlive server.Shutdown; the coordinator closes them.
	coordinator.Shutdown()
	upgradeLimiter.Stop()

	logx.Info("Server gracefully stopped.")
}

// runStatsLoop logs a coordinator snapshot every interval until ctx is done.
func runStatsLoop(ctx context.Context, coordinator *presence.Coordinator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			coordinator.LogStats()
		case <-ctx.Done():
			return
		}
	}
}
