package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"otpboard/api/internal/metrics"
	"otpboard/api/internal/model"
	"otpboard/api/internal/store"

	"github.com/sirupsen/logrus"
)

// ErrInvalid covers wrong, expired, already-used and unknown codes alike.
var ErrInvalid = errors.New("invalid_otp")

const (
	DefaultTTL = 10 * time.Minute

	codeMin  = 100000
	codeSpan = 900000
)

type Ledger struct {
	store store.OTPStore
	ttl   time.Duration
	now   func() time.Time
	log   logrus.FieldLogger
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Ledger) { l.log = log }
}

func NewLedger(s store.OTPStore, ttl time.Duration, opts ...Option) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l := &Ledger{
		store: s,
		ttl:   ttl,
		now:   time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.WithField("component", "otp")
	return l
}

func (l *Ledger) TTL() time.Duration { return l.ttl }

// Issue stores a fresh code for userID and returns it. Earlier codes for the
// same user stay valid until they expire or are used.
func (l *Ledger) Issue(ctx context.Context, userID string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	o, err := l.store.CreateOTP(ctx, model.OTP{
		UserID:    userID,
		Code:      code,
		CreatedAt: l.now(),
	})
	if err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	metrics.OTPIssued.Inc()
	l.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"expires_at": o.ExpiresAt(l.ttl),
	}).Debug("otp issued")
	return code, nil
}

// Verify consumes a live record with the given code and returns its owner.
func (l *Ledger) Verify(ctx context.Context, code string) (string, error) {
	return l.consume(ctx, store.OTPLookup{Code: code})
}

// VerifyForUser is Verify restricted to codes issued to userID.
func (l *Ledger) VerifyForUser(ctx context.Context, userID, code string) (string, error) {
	if userID == "" {
		return "", ErrInvalid
	}
	return l.consume(ctx, store.OTPLookup{Code: code, UserID: userID})
}

func (l *Ledger) consume(ctx context.Context, q store.OTPLookup) (string, error) {
	if !wellFormed(q.Code) {
		metrics.OTPVerifications.WithLabelValues("invalid").Inc()
		return "", ErrInvalid
	}

	q.IssuedAfter = l.now().Add(-l.ttl)
	o, err := l.store.ConsumeOTP(ctx, q)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.OTPVerifications.WithLabelValues("invalid").Inc()
			return "", ErrInvalid
		}
		metrics.OTPVerifications.WithLabelValues("error").Inc()
		return "", fmt.Errorf("consume otp: %w", err)
	}

	metrics.OTPVerifications.WithLabelValues("ok").Inc()
	return o.UserID, nil
}

// Purge deletes records whose lifetime has elapsed.
func (l *Ledger) Purge(ctx context.Context) (int, error) {
	n, err := l.store.PurgeOTPsBefore(ctx, l.now().Add(-l.ttl))
	if err != nil {
		return 0, err
	}
	metrics.OTPPurged.Add(float64(n))
	return n, nil
}

// RunReaper purges once immediately and then every interval until ctx is done.
func (l *Ledger) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	runOnce := func() {
		ctxPurge, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		n, err := l.Purge(ctxPurge)
		if err != nil {
			if ctx.Err() == nil {
				l.log.WithError(err).Warn("otp purge failed")
			}
			return
		}
		if n > 0 {
			l.log.WithField("removed", n).Info("expired otps purged")
		}
	}

	runOnce()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runOnce()
		}
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", codeMin+n.Int64()), nil
}

func wellFormed(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
