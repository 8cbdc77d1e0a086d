package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"splitstream/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WS upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	client := &Client{conn: conn, send: make(chan WSMessage, 256)}

	// History goes out before the client can receive live lines.
	s.sendLogHistory(client)
	s.sendStats(client)
	s.AddClient(client)
	defer s.RemoveClient(client)

	logger.Debug("WS Client connected", "remote", r.RemoteAddr)

	// Read loop (Client -> Server)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("WS read failed", "remote", r.RemoteAddr, "err", err)
				}
				return
			}
			switch msg.Type {
			case "get_stats":
				s.sendStats(client)
			case "get_logs":
				s.sendLogHistory(client)
			}
		}
	}()

	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	// Write loop (Server -> Client)
	for {
		select {
		case <-gone:
			return
		case <-s.done:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
			return
		case <-ticker.C:
			s.sendStats(client)
		case msg := <-client.send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendStats(client *Client) {
	payload, _ := json.Marshal(s.collectStats())
	select {
	case client.send <- WSMessage{Type: "stats", Payload: payload}:
	default:
	}
}

func (s *Server) sendLogHistory(client *Client) {
	payload, _ := json.Marshal(logger.GetHistory())
	select {
	case client.send <- WSMessage{Type: "log_history", Payload: payload}:
	default:
	}
}
