// Package ui serves a small live-status dashboard over a websocket,
// broadcasting proxyscraperchecker's AppState snapshots to any connected
// browser. Adapted from grishkovelli-httptines's web.go (upgrader/clients
// map/broadcast-channel shape), replacing its raw Payload{Kind, Body}
// messages with whole-state JSON snapshots since this app's progress model
// is a single mutable AppState rather than a stream of independent events.
package ui

import (
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	proxyscraperchecker "github.com/grishkovelli/proxyscraperchecker"
)

// Server hosts the dashboard page, a websocket endpoint, and a broadcast
// loop fanning state snapshots out to every connected client. It implements
// proxyscraperchecker.Broadcaster.
type Server struct {
	state *proxyscraperchecker.AppState

	upgrader  websocket.Upgrader
	broadcast chan []byte

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewServer builds a Server reading snapshots from state on every Publish.
func NewServer(state *proxyscraperchecker.AppState) *Server {
	return &Server{
		state:     state,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		broadcast: make(chan []byte, 64),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Publish implements proxyscraperchecker.Broadcaster: every event triggers
// one fresh state snapshot pushed to all connected clients.
func (s *Server) Publish(proxyscraperchecker.AppEvent) {
	body, err := s.state.Snapshot()
	if err != nil {
		log.Printf("ui: snapshot state: %v", err)
		return
	}
	select {
	case s.broadcast <- body:
	default: // a slow/absent consumer never blocks the pipeline
	}
}

// ListenAndServe starts the HTTP+websocket server on port, blocking until it
// returns an error (typically http.ErrServerClosed on shutdown).
func (s *Server) ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/ws", s.wsHandler)

	go s.handleMessages()

	log.Printf("ui: dashboard listening on :%d", port)
	return http.ListenAndServe(":"+strconv.Itoa(port), mux)
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ui: upgrade: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	if body, err := s.state.Snapshot(); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, body)
	}
}

func (s *Server) handleMessages() {
	for msg := range s.broadcast {
		s.mu.Lock()
		for c := range s.clients {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				delete(s.clients, c)
			}
		}
		s.mu.Unlock()
	}
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, nil); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
