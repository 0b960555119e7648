package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"ringlink/internal/api"
	"ringlink/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(apiHandlers *api.API, wsServer *ws.Server, addr string) *APIServer {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", apiHandlers.RegisterHandler)
	mux.HandleFunc("POST /register-fcm", apiHandlers.RegisterFCMHandler)
	mux.HandleFunc("POST /register-player", apiHandlers.RegisterPlayerHandler)
	mux.HandleFunc("POST /register-voip", apiHandlers.RegisterVoIPHandler)
	mux.HandleFunc("GET /users", apiHandlers.UsersHandler)
	mux.HandleFunc("POST /notify-call", apiHandlers.NotifyCallHandler)
	mux.HandleFunc("POST /cancel-call", apiHandlers.CancelCallHandler)
	mux.HandleFunc("GET /health", apiHandlers.HealthHandler)
	mux.HandleFunc("GET /rooms", apiHandlers.RoomsHandler)
	mux.HandleFunc("GET /turn-credentials", apiHandlers.TurnCredentialsHandler)

	// WebSocket signaling endpoint
	mux.HandleFunc("/ws", wsServer.HandleConnections)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
