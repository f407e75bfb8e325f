package httpapi

import (
	"net/http"

	"otpboard/api/internal/auth"
	"otpboard/api/internal/config"
	"otpboard/api/internal/metrics"
	"otpboard/api/internal/store"

	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg    config.Config
	boards store.BoardStore
	auth   *auth.Service
	mailer auth.Mailer
	log    logrus.FieldLogger
	mux    *http.ServeMux
}

func NewServer(cfg config.Config, boards store.BoardStore, authSvc *auth.Service, mailer auth.Mailer, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:    cfg,
		boards: boards,
		auth:   authSvc,
		mailer: mailer,
		log:    log.WithField("component", "http"),
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler wraps the routes with middleware. The timeout wrapper is outermost
// so the logging middleware sees the same request the mux annotates with its
// matched pattern.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoverMiddleware(s.log, h)
	h = requestIDMiddleware(h)
	h = loggingMiddleware(s.log, h)
	h = timeoutMiddleware(s.cfg.RequestTimeout, h)
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())

	s.mux.HandleFunc("GET /api", s.handleIndex)
	s.mux.HandleFunc("POST /api/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/verify-otp", s.handleVerifyOTP)
	s.mux.HandleFunc("POST /api/form-data", s.handleFormData)

	s.mux.HandleFunc("GET /api/boards", s.handleBoardsList)
	s.mux.HandleFunc("POST /api/boards/{id}/cards", s.handleCardAdd)
	s.mux.HandleFunc("DELETE /api/boards/{id}/cards/{cardId}", s.handleCardDelete)
	s.mux.HandleFunc("POST /api/boards/{id}/move/{destId}", s.handleCardMove)
}
