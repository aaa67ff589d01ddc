/*
Package handler provides the HTTP handlers and routing setup for the relay server.

This file defines the main Router, applying the middleware chain (request ids, real IPs,
access logging, panic recovery, CORS) before delegating to the status endpoints, the
WebSocket endpoint and, when configured, the static client files.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"callrelay/internal/pkg/logx"
)

const (
	// UpgradeRate and UpgradeBurst bound WebSocket upgrades per client IP.
	UpgradeRate  = 1.0
	UpgradeBurst = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth())
	r.Get("/status", HandleStatus(deps))
	r.Get("/rooms/{roomID}", HandleRoomMembers(deps))

	ws := HandleWebSocket(deps, wsUpgrader)
	if deps.UpgradeLimiter != nil {
		ws = deps.UpgradeLimiter.Middleware(ws)
	}
	r.Method(http.MethodGet, "/ws", ws)

	if deps.Config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(deps.Config.StaticDir)))
	}

	return r
}
