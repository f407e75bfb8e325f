package httpapi

import (
	"net/http"
	"strings"
	"time"

	"otpboard/api/internal/auth"
	"otpboard/api/internal/mail"
	"otpboard/api/internal/metrics"
	"otpboard/api/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "API server"})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !readJSON(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user created",
		"user":    user,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !readJSON(w, r, &req) {
		return
	}

	res, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Please verify the OTP",
		"id":            res.UserID,
		"pendingUserId": res.UserID,
	})
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
	ID  string `json:"id"`
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OTP) == "" {
		writeError(w, http.StatusBadRequest, "otp_required", "otp is required")
		return
	}

	res, err := s.auth.VerifyOTP(r.Context(), auth.VerifyInput{Code: req.OTP, UserID: req.ID})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "OTP verified",
		"verify":        res.Authenticated,
		"authenticated": res.Authenticated,
	})
}

func (s *Server) handleFormData(w http.ResponseWriter, r *http.Request) {
	var req mail.ContactForm
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and message are required")
		return
	}

	if err := s.mailer.Send(r.Context(), mail.ContactMessage(s.cfg.Mail.ContactTo, req)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Form data submitted successfully"})
}

func (s *Server) handleBoardsList(w http.ResponseWriter, r *http.Request) {
	boards, err := s.boards.ListBoards(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

type cardRequest struct {
	Card *model.Card `json:"card"`
}

// readCard decodes {"card": {...}} and rejects a missing card.
func readCard(w http.ResponseWriter, r *http.Request) (model.Card, bool) {
	var req cardRequest
	if !readJSON(w, r, &req) {
		return model.Card{}, false
	}
	if req.Card == nil {
		writeError(w, http.StatusBadRequest, "card_required", "card is required")
		return model.Card{}, false
	}
	return *req.Card, true
}

func (s *Server) handleCardAdd(w http.ResponseWriter, r *http.Request) {
	card, ok := readCard(w, r)
	if !ok {
		return
	}

	board, err := s.boards.AddCard(r.Context(), r.PathValue("id"), card)
	metrics.BoardMutations.WithLabelValues("add", metrics.Result(err)).Inc()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"board": board})
}

func (s *Server) handleCardDelete(w http.ResponseWriter, r *http.Request) {
	err := s.boards.DeleteCard(r.Context(), r.PathValue("id"), r.PathValue("cardId"))
	metrics.BoardMutations.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "card deleted"})
}

func (s *Server) handleCardMove(w http.ResponseWriter, r *http.Request) {
	card, ok := readCard(w, r)
	if !ok {
		return
	}

	err := s.boards.MoveCard(r.Context(), r.PathValue("id"), r.PathValue("destId"), card)
	metrics.BoardMutations.WithLabelValues("move", metrics.Result(err)).Inc()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "card moved"})
}
