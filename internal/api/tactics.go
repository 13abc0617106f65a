package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/tactics-board/internal/auth"
	"github.com/npezzotti/tactics-board/internal/config"
	"github.com/npezzotti/tactics-board/internal/database"
	"github.com/npezzotti/tactics-board/internal/server"
)

type TacticsApp struct {
	log            *log.Logger
	db             database.TacticsRepository
	mux            *http.Server
	store          *server.RoomStore
	jwt            *auth.JWT
	allowedOrigins []string
}

func NewTacticsApp(mux *http.ServeMux, logger *log.Logger, store *server.RoomStore, db database.TacticsRepository, jwt *auth.JWT, cfg *config.Config) *TacticsApp {
	s := &TacticsApp{
		log:            logger,
		db:             db,
		store:          store,
		jwt:            jwt,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/rooms", s.authMiddleware(s.getRoom))
	mux.HandleFunc("GET /api/rooms/list", s.authMiddleware(s.listRooms))
	mux.HandleFunc("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.HandleFunc("POST /api/rooms/announce", s.authMiddleware(s.announce))
	mux.HandleFunc("POST /api/formations", s.authMiddleware(s.createFormation))
	mux.HandleFunc("GET /api/formations", s.authMiddleware(s.listFormations))
	mux.HandleFunc("DELETE /api/formations", s.authMiddleware(s.deleteFormation))
	mux.HandleFunc("GET /api/archives", s.authMiddleware(s.listArchives))
	// tokens are verified per message once the socket is open
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	h = handlers.LoggingHandler(logger.Writer(), h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *TacticsApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *TacticsApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
