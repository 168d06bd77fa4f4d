package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openlaps/apexfantasy/live"
	"github.com/openlaps/apexfantasy/seasons"
)

type WebSocketHandler struct {
	hub    *live.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS для остального API настраивается на роутере; сокет принимает
	// любой Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve upgrades the connection and subscribes it to the requested
// season's settlement broadcasts (query parameter "season", defaulting
// to the current year).
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	season, err := parseYearQuery(r, "season", time.Now().Year())
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	if err := seasons.ValidateYear(season); err != nil {
		badRequestResponse(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}
	h.hub.Register(conn, season)
}
