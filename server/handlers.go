package server

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// Handler returns the HTTP routes: /progress (websocket) and /status (JSON)
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/progress", s.handleProgress)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("WebSocket upgrade failed", "error", err.Error())
		return
	}
	c := newClient(s, conn)
	select {
	case s.register <- c:
	case <-s.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"clients": s.ClientCount(),
		"drops":   s.Drops(),
		"latest":  s.Latest(),
	})
}

// localOrigin accepts same-host and loopback origins, plus clients that send none
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return u.Host == r.Host
}
