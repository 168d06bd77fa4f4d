// Package live pushes settlement results to connected clients over
// websockets. Rooms are keyed by season: a client subscribes to one
// season and receives every settlement broadcast for it.
package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openlaps/apexfantasy/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message — конверт всех сообщений, уходящих клиентам.
type Message struct {
	Type    string      `json:"type"`
	Season  int         `json:"season"`
	Payload interface{} `json:"payload"`
}

// SettlementPayload is the body of a VALUES_UPDATED message.
type SettlementPayload struct {
	RaceID      int             `json:"race_id"`
	RoundNumber int             `json:"round_number"`
	RaceName    string          `json:"race_name"`
	PPMData     *models.PPMData `json:"ppm_data"`
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	season int
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[int]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[int]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.season]; !ok {
				h.rooms[client.season] = make(map[*Client]bool)
			}
			h.rooms[client.season][client] = true
			h.mu.Unlock()
			h.logger.Debug("live client joined", slog.Int("season", client.season))

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.season]; ok {
				if _, active := room[client]; active {
					close(client.send)
					delete(room, client)
					if len(room) == 0 {
						delete(h.rooms, client.season)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("live client left", slog.Int("season", client.season))
		}
	}
}

// Register attaches a new websocket connection to a season room and starts
// its pumps.
func (h *Hub) Register(conn *websocket.Conn, season int) {
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 16),
		season: season,
	}
	h.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastSettlement implements the settlement engine's notifier hook.
func (h *Hub) BroadcastSettlement(season int, race *models.Race) {
	h.broadcast(season, Message{
		Type:   "VALUES_UPDATED",
		Season: season,
		Payload: SettlementPayload{
			RaceID:      race.ID,
			RoundNumber: race.RoundNumber,
			RaceName:    race.Name,
			PPMData:     race.PPMData,
		},
	})
}

func (h *Hub) broadcast(season int, message Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal live message", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[season] {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; drop the message rather than block settlement.
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Inbound payloads are ignored; the socket is one-way.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
