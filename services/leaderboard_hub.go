package services

import (
	"encoding/json"
	"sync"

	"github.com/znehraks/mini-game-heaven/models"

	"github.com/gorilla/websocket"
)

type WSClient struct {
	GameID string
	Conn   *websocket.Conn

	writeMu sync.Mutex
}

// Write serializes writes to the connection; gorilla allows only one
// concurrent writer.
func (c *WSClient) Write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// LeaderboardHub fans new score rows out to websocket viewers of the
// same game's leaderboard.
type LeaderboardHub struct {
	mu      sync.RWMutex
	clients map[string]map[*WSClient]struct{}
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{clients: make(map[string]map[*WSClient]struct{})}
}

func (h *LeaderboardHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.GameID] == nil {
		h.clients[c.GameID] = make(map[*WSClient]struct{})
	}
	h.clients[c.GameID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *LeaderboardHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.GameID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.GameID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

func (h *LeaderboardHub) BroadcastScore(score models.Score) {
	msg, _ := json.Marshal(map[string]any{
		"kind":  "score.created",
		"score": score,
	})
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[score.GameID] {
		_ = c.Write(websocket.TextMessage, msg)
	}
}
