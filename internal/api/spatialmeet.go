package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/spatialmeet/server/internal/config"
	"github.com/spatialmeet/server/internal/database"
	"github.com/spatialmeet/server/internal/server"
)

type SpatialMeetApp struct {
	log            *log.Logger
	db             database.SpatialMeetRepository
	mux            *http.Server
	ss             *server.SpatialServer
	signingKey     []byte
	allowedOrigins []string
	// generateRoomCode is replaceable in tests
	generateRoomCode func() (string, error)
}

func NewSpatialMeetApp(mux *http.ServeMux, logger *log.Logger, ss *server.SpatialServer,
	db database.SpatialMeetRepository, cfg *config.Config) *SpatialMeetApp {
	s := &SpatialMeetApp{
		log:            logger,
		db:             db,
		ss:             ss,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}
	s.generateRoomCode = s.newRoomCode

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/guest/enter", s.enterAsGuest)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.requireAccount(s.createRoom)))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.listPublicRooms))
	mux.Handle("GET /api/rooms/my", s.authMiddleware(s.requireAccount(s.listMyRooms)))
	mux.Handle("GET /api/rooms/{roomCode}", s.authMiddleware(s.getRoom))
	mux.Handle("GET /api/rooms/{roomCode}/participants", s.authMiddleware(s.getRoomParticipants))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *SpatialMeetApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SpatialMeetApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
