package httpapi

import (
	"context"
	"errors"
	"net/http"

	"otpboard/api/internal/auth"
	"otpboard/api/internal/mail"
	"otpboard/api/internal/store"
)

// writeServiceError maps domain errors onto the JSON error envelope.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var authInvalid *auth.ValidationError
	var storeInvalid store.ValidationError

	switch {
	case errors.As(err, &authInvalid):
		writeError(w, http.StatusBadRequest, authInvalid.Code, authInvalid.Message)
	case errors.As(err, &storeInvalid):
		writeError(w, http.StatusBadRequest, string(storeInvalid), string(storeInvalid))
	case errors.Is(err, auth.ErrDuplicateKey), errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "username or email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
	case errors.Is(err, auth.ErrInvalidOTP):
		writeError(w, http.StatusUnauthorized, "invalid_otp", "invalid or expired OTP")
	case errors.Is(err, auth.ErrDeliveryFailed), errors.Is(err, mail.ErrDelivery), errors.Is(err, mail.ErrClosed):
		writeError(w, http.StatusBadGateway, "delivery_failed", "failed to send email")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", "board changed concurrently, retry")
	case errors.Is(err, store.ErrStorage):
		s.log.WithError(err).WithField("path", r.URL.Path).Error("storage failure")
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", "request timed out")
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
