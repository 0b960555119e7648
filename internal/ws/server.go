package ws

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websockets and hands each
// connection a freshly minted handle.
type Server struct {
	relay    *Relay
	upgrader *websocket.Upgrader
}

func NewServer(relay *Relay) *Server {
	return &Server{
		relay: relay,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Mobile clients connect from app webviews, no origin to pin.
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	connID := uuid.NewString()
	log.Printf("client connected: %s", connID)

	c := NewConnection(s.relay, conn, connID)
	if err := c.Handle(r.Context()); err != nil {
		log.Printf("connection %s closed with error: %v", connID, err)
		return
	}
	log.Printf("client disconnected: %s", connID)
}
