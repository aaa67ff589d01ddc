package handler

import (
	"callrelay/internal/app/presence"
	"callrelay/internal/configs"
	"callrelay/internal/pkg/limiter"
)

// AppDeps carries everything the HTTP layer needs.
type AppDeps struct {
	Coordinator *presence.Coordinator
	Config      *configs.AppConfig

	// UpgradeLimiter throttles WebSocket upgrades per client IP. The owner stops it.
	UpgradeLimiter *limiter.IPRateLimiter

	Version string
}
