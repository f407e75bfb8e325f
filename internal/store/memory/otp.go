package memory

import (
	"context"
	"strings"
	"time"

	"otpboard/api/internal/model"
	"otpboard/api/internal/store"
)

func (s *Store) CreateOTP(_ context.Context, o model.OTP) (model.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(o.UserID) == "" {
		return model.OTP{}, store.ValidationError("user_id_required")
	}
	if strings.TrimSpace(o.Code) == "" {
		return model.OTP{}, store.ValidationError("code_required")
	}

	o.ID = newID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.otps[o.ID] = o
	return o, nil
}

func (s *Store) ConsumeOTP(_ context.Context, q store.OTPLookup) (*model.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match *model.OTP
	for _, o := range s.otps {
		if o.Code != q.Code {
			continue
		}
		if q.UserID != "" && o.UserID != q.UserID {
			continue
		}
		if !o.CreatedAt.After(q.IssuedAfter) {
			continue
		}
		if match == nil || o.CreatedAt.Before(match.CreatedAt) {
			found := o
			match = &found
		}
	}
	if match == nil {
		return nil, store.ErrNotFound
	}

	delete(s.otps, match.ID)
	return match, nil
}

func (s *Store) PurgeOTPsBefore(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, o := range s.otps {
		if !o.CreatedAt.After(before) {
			delete(s.otps, id)
			removed++
		}
	}
	return removed, nil
}
