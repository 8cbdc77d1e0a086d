package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"splitstream/pkg/archive"
	"splitstream/pkg/concat"
	"splitstream/pkg/logger"
	"splitstream/pkg/session"
)

// Stream describes the concatenated stream the server exposes.
type Stream struct {
	Name    string
	Size    int64
	Parts   []concat.Part
	Entries []archive.Entry // nil when the stream is not a listed archive
}

// Server serves one concatenated stream over HTTP.
type Server struct {
	stream Stream
	pool   *session.Pool

	// WebSocket Client Registry
	clients   map[*Client]bool
	clientsMu sync.Mutex
	logCh     chan string
	done      chan struct{}
	closeOnce sync.Once

	statsInterval time.Duration
}

type Client struct {
	conn *websocket.Conn
	send chan WSMessage
}

// NewServer creates a new API server and starts forwarding log lines to
// websocket clients.
func NewServer(stream Stream, pool *session.Pool) *Server {
	s := &Server{
		stream:        stream,
		pool:          pool,
		clients:       make(map[*Client]bool),
		logCh:         make(chan string, 100),
		done:          make(chan struct{}),
		statsInterval: time.Second,
	}

	logger.SetBroadcast(s.logCh)
	go s.broadcastLogs()

	return s
}

// Close stops the log broadcaster. Connected websocket clients are dropped.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		logger.SetBroadcast(nil)
		close(s.done)
	})
}

func (s *Server) broadcastLogs() {
	for {
		select {
		case <-s.done:
			return
		case line := <-s.logCh:
			payload, _ := json.Marshal(line)
			msg := WSMessage{Type: "log_entry", Payload: payload}

			s.clientsMu.Lock()
			for client := range s.clients {
				select {
				case client.send <- msg:
				default:
					// Drop message if client buffer is full
				}
			}
			s.clientsMu.Unlock()
		}
	}
}

// AddClient registers a new websocket client
func (s *Server) AddClient(client *Client) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

// RemoveClient unregisters a websocket client
func (s *Server) RemoveClient(client *Client) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
}

// Handler returns the HTTP handler for the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /api/parts", s.handleParts)
	mux.HandleFunc("GET /api/entries", s.handleEntries)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/logs/ws", s.handleWebSocket)

	return mux
}

// clientKey identifies a returning player. Range requests from one player
// share a key and so a warm reader.
func clientKey(r *http.Request, entry string) string {
	clientIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	if clientIP == "" {
		clientIP = r.RemoteAddr
	}
	return clientIP + "|" + entry
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	entry := r.URL.Query().Get("entry")
	key := clientKey(r, entry)

	reader, err := s.pool.Acquire(key)
	if err != nil {
		logger.Error("Failed to open stream", "err", err)
		http.Error(w, "failed to open stream", http.StatusInternalServerError)
		return
	}

	name := s.stream.Name
	var content io.ReadSeeker = reader
	if entry != "" {
		sec, err := archive.OpenStored(reader, s.stream.Entries, entry)
		if err != nil {
			s.pool.Release(key, reader)
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, archive.ErrEntryNotFound):
				status = http.StatusNotFound
			case errors.Is(err, archive.ErrNotStored):
				status = http.StatusUnprocessableEntity
			}
			http.Error(w, err.Error(), status)
			return
		}
		name = entry
		content = sec
	}

	counted := &countingSeeker{ReadSeeker: content}
	logger.Debug("Serving stream", "name", name, "range", r.Header.Get("Range"), "remote", r.RemoteAddr)

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.ServeContent(w, r, name, time.Time{}, counted)

	if counted.err != nil && !errors.Is(counted.err, io.EOF) {
		logger.Warn("Stream read failed, dropping reader", "name", name, "err", counted.err)
		s.pool.Discard(reader)
		return
	}
	s.pool.Release(key, reader)
	logger.Debug("Finished serving stream", "name", name, "bytes", counted.n)
}

// countingSeeker records how much was served and the last read error.
type countingSeeker struct {
	io.ReadSeeker
	n   int64
	err error
}

func (c *countingSeeker) Read(p []byte) (int, error) {
	n, err := c.ReadSeeker.Read(p)
	c.n += int64(n)
	if err != nil {
		c.err = err
	}
	return n, err
}

type partsResponse struct {
	Name  string        `json:"name"`
	Size  int64         `json:"size"`
	Parts []concat.Part `json:"parts"`
}

func (s *Server) handleParts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, partsResponse{Name: s.stream.Name, Size: s.stream.Size, Parts: s.stream.Parts})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if s.stream.Entries == nil {
		http.Error(w, "stream is not an archive", http.StatusNotFound)
		return
	}
	writeJSON(w, s.stream.Entries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.collectStats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "err", err)
	}
}
