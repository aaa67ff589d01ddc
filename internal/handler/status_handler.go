/*
Package handler provides HTTP handler functions for liveness and room status checks.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"callrelay/internal/app/user"
	"callrelay/internal/pkg/errs"
	"callrelay/internal/pkg/logx"
	"callrelay/internal/pkg/resp"
)

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	Status      string `json:"status"`
	ActiveRooms int    `json:"activeRooms"`
	TotalUsers  int    `json:"totalUsers"`
	Connections int    `json:"connections"`
	Uptime      int64  `json:"uptime"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// RoomResponse is the payload of GET /rooms/{roomID}.
type RoomResponse struct {
	RoomID       string      `json:"roomId"`
	Participants []user.User `json:"participants"`
}

// HandleHealth answers liveness probes.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logx.Debug("Health check endpoint hit")

		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "callrelay",
		})
	}
}

// HandleStatus reports room and user counts.
func HandleStatus(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := deps.Coordinator.Stats()

		resp.RespondSuccess(w, r, StatusResponse{
			Status:      "online",
			ActiveRooms: stats.ActiveRooms,
			TotalUsers:  stats.TotalUsers,
			Connections: stats.Connections,
			Uptime:      int64(stats.Uptime.Seconds()),
			Environment: deps.Config.Environment,
			Version:     deps.Version,
		})
	}
}

// HandleRoomMembers lists the participants of one room.
func HandleRoomMembers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		members, ok := deps.Coordinator.RoomMembers(roomID)
		if !ok {
			logx.Info("Room lookup failed: Room not found.", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		resp.RespondSuccess(w, r, RoomResponse{RoomID: roomID, Participants: members})
	}
}
