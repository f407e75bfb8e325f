package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"otpboard/api/internal/logging"
	"otpboard/api/internal/mail"
	"otpboard/api/internal/model"
	"otpboard/api/internal/otp"
	"otpboard/api/internal/store"
	"otpboard/api/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var codeInBody = regexp.MustCompile(`[0-9]{6}$`)

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	code := codeInBody.FindString(m.sent[len(m.sent)-1].Text)
	require.NotEmpty(t, code)
	return code
}

type fixture struct {
	svc    *Service
	mailer *fakeMailer
	store  *memory.Store
	now    time.Time
	clock  func() time.Time
	mu     *sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mailer: &fakeMailer{},
		store:  memory.NewStore(),
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		mu:     &sync.Mutex{},
	}
	f.clock = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}

	ledger := otp.NewLedger(f.store, 10*time.Minute, otp.WithClock(f.clock), otp.WithLogger(logging.Discard()))
	svc, err := NewService(f.store, ledger, f.mailer, bcrypt.MinCost, logging.Discard())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) register(t *testing.T) model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Secret!1",
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "Secret!1", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Secret!1")))
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "other@example.com", Password: "Secret!1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = f.svc.Register(context.Background(), RegisterInput{Username: "bob", Email: "ALICE@example.com", Password: "Secret!1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		in   RegisterInput
		code string
	}{
		{"short username", RegisterInput{Username: "al", Email: "a@example.com", Password: "Secret!1"}, "invalid_username"},
		{"bad username chars", RegisterInput{Username: "al ice", Email: "a@example.com", Password: "Secret!1"}, "invalid_username"},
		{"bad email", RegisterInput{Username: "alice", Email: "not-an-email", Password: "Secret!1"}, "invalid_email"},
		{"display name email", RegisterInput{Username: "alice", Email: "Alice <a@example.com>", Password: "Secret!1"}, "invalid_email"},
		{"short password", RegisterInput{Username: "alice", Email: "a@example.com", Password: "S!1"}, "invalid_password"},
		{"password over 72 bytes", RegisterInput{Username: "alice", Email: "a@example.com", Password: "Aa!" + strings.Repeat("x", 80)}, "invalid_password"},
		{"no uppercase", RegisterInput{Username: "alice", Email: "a@example.com", Password: "secret!1"}, "invalid_password"},
		{"no special", RegisterInput{Username: "alice", Email: "a@example.com", Password: "Secret11"}, "invalid_password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tc.in)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.code, ve.Code)
		})
	}
}

func TestRegister_PasswordAtBcryptLimit(t *testing.T) {
	f := newFixture(t)

	pw := "Aa!" + strings.Repeat("x", 69)
	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: pw})
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "alice", pw)
	assert.NoError(t, err)
}

func TestLogin_SendsOTP(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)

	res, err := f.svc.Login(context.Background(), "alice", "Secret!1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.UserID)
	assert.Equal(t, model.AuthStateAwaitingOTP, res.State)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Login OTP Verification", msg.Subject)
	assert.Regexp(t, `^Your OTP for login is [0-9]{6}$`, msg.Text)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, errWrong := f.svc.Login(context.Background(), "alice", "Wrong!1")
	_, errUnknown := f.svc.Login(context.Background(), "nobody", "Secret!1")

	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
	assert.Empty(t, f.mailer.sent)
}

func TestLogin_DeliveryFailureKeepsOTP(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	f.mailer.err = mail.ErrDelivery

	_, err := f.svc.Login(context.Background(), "alice", "Secret!1")
	require.ErrorIs(t, err, ErrDeliveryFailed)

	// The issued record is still there and can be purged only after expiry.
	n, err := f.store.PurgeOTPsBefore(context.Background(), f.now.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = f.store.PurgeOTPsBefore(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVerifyOTP(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)

	_, err := f.svc.Login(context.Background(), "alice", "Secret!1")
	require.NoError(t, err)
	code := f.mailer.lastCode(t)

	res, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Code: code})
	require.NoError(t, err)
	assert.True(t, res.Authenticated)
	assert.Equal(t, u.ID, res.UserID)
	assert.Equal(t, model.AuthStateAuthenticated, res.State)

	_, err = f.svc.VerifyOTP(context.Background(), VerifyInput{Code: code})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_Expired(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.svc.Login(context.Background(), "alice", "Secret!1")
	require.NoError(t, err)
	code := f.mailer.lastCode(t)

	f.advance(11 * time.Minute)
	_, err = f.svc.VerifyOTP(context.Background(), VerifyInput{Code: code})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_ScopedToUser(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)

	_, err := f.svc.Login(context.Background(), "alice", "Secret!1")
	require.NoError(t, err)
	code := f.mailer.lastCode(t)

	_, err = f.svc.VerifyOTP(context.Background(), VerifyInput{Code: code, UserID: "someone-else"})
	assert.ErrorIs(t, err, ErrInvalidOTP)

	res, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Code: code, UserID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.UserID)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyOTP(context.Background(), VerifyInput{Code: "000000"})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

type brokenUsers struct{ store.UserStore }

func (brokenUsers) GetUserByUsername(context.Context, string) (*model.User, error) {
	return nil, store.ErrStorage
}

func TestLogin_StorageErrorPassesThrough(t *testing.T) {
	svc, err := NewService(brokenUsers{}, nil, &fakeMailer{}, bcrypt.MinCost, logging.Discard())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alice", "Secret!1")
	assert.ErrorIs(t, err, store.ErrStorage)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
