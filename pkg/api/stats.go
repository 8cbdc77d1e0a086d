package api

import (
	"time"

	"splitstream/pkg/session"
)

// SystemStats represents the current state of the server
type SystemStats struct {
	Timestamp time.Time     `json:"timestamp"`
	Name      string        `json:"name"`
	Size      int64         `json:"size"`
	Parts     int           `json:"parts"`
	Entries   int           `json:"entries"`
	Clients   int           `json:"ws_clients"`
	Pool      session.Stats `json:"pool"`
}

// collectStats gathers metrics from all sources
func (s *Server) collectStats() SystemStats {
	s.clientsMu.Lock()
	clients := len(s.clients)
	s.clientsMu.Unlock()

	return SystemStats{
		Timestamp: time.Now(),
		Name:      s.stream.Name,
		Size:      s.stream.Size,
		Parts:     len(s.stream.Parts),
		Entries:   len(s.stream.Entries),
		Clients:   clients,
		Pool:      s.pool.Stats(),
	}
}
