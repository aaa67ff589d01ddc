/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

HandleWebSocket upgrades the request and runs the socket client until the connection
closes. Room and user parameters arrive later as join events, not in the URL.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"callrelay/internal/app/socket"
	"callrelay/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("Failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		client := socket.NewClient(deps.Coordinator, conn, socket.DefaultEventRate, socket.DefaultEventBurst)
		client.Run()
	})
}
