package auth

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"regexp"
	"strings"
	"unicode"

	"otpboard/api/internal/mail"
	"otpboard/api/internal/model"
	"otpboard/api/internal/otp"
	"otpboard/api/internal/store"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrValidation         = errors.New("validation_error")
	ErrDuplicateKey       = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidOTP         = errors.New("invalid_otp")
	ErrDeliveryFailed     = errors.New("delivery_failed")
)

const otpSubject = "Login OTP Verification"

// bcrypt only looks at the first 72 bytes and rejects longer input.
const maxPasswordBytes = 72

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// ValidationError carries a machine code and a human message. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(code, msg string) error {
	return &ValidationError{Code: code, Message: msg}
}

type Ledger interface {
	Issue(ctx context.Context, userID string) (string, error)
	Verify(ctx context.Context, code string) (string, error)
	VerifyForUser(ctx context.Context, userID, code string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, m mail.Message) error
}

type Service struct {
	users     store.UserStore
	ledger    Ledger
	mailer    Mailer
	cost      int
	dummyHash []byte
	log       logrus.FieldLogger
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	UserID string
	State  model.AuthState
}

// VerifyInput.UserID is optional. When set the code must belong to that user.
type VerifyInput struct {
	Code   string
	UserID string
}

type VerifyResult struct {
	UserID        string
	Authenticated bool
	State         model.AuthState
}

func NewService(users store.UserStore, ledger Ledger, mailer Mailer, cost int, log logrus.FieldLogger) (*Service, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}

	return &Service{
		users:     users,
		ledger:    ledger,
		mailer:    mailer,
		cost:      cost,
		dummyHash: dummy,
		log:       log.WithField("component", "auth"),
	}, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if !usernameRegex.MatchString(in.Username) {
		return model.User{}, invalid("invalid_username", "username must be 3-30 characters (letters, numbers, _, -)")
	}
	if !validEmail(in.Email) {
		return model.User{}, invalid("invalid_email", "email address is not valid")
	}
	if msg := validatePassword(in.Password); msg != "" {
		return model.User{}, invalid("invalid_password", msg)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.User{}, ErrDuplicateKey
		}
		var ve store.ValidationError
		if errors.As(err, &ve) {
			return model.User{}, invalid(string(ve), string(ve))
		}
		return model.User{}, err
	}

	s.log.WithField("user_id", u.ID).Info("user registered")
	return u, nil
}

// Login checks the password, issues an OTP and waits for it to be handed to
// the mail server. A failed send leaves the issued OTP in place.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same cost as a real comparison.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	code, err := s.ledger.Issue(ctx, u.ID)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.mailer.Send(ctx, mail.Message{
		To:      u.Email,
		Subject: otpSubject,
		Text:    "Your OTP for login is " + code,
	}); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("otp email not delivered")
		return LoginResult{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	return LoginResult{UserID: u.ID, State: model.AuthStateAwaitingOTP}, nil
}

func (s *Service) VerifyOTP(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	code := strings.TrimSpace(in.Code)
	userID := strings.TrimSpace(in.UserID)

	var (
		owner string
		err   error
	)
	if userID != "" {
		owner, err = s.ledger.VerifyForUser(ctx, userID, code)
	} else {
		owner, err = s.ledger.Verify(ctx, code)
	}
	if err != nil {
		if errors.Is(err, otp.ErrInvalid) {
			return VerifyResult{}, ErrInvalidOTP
		}
		return VerifyResult{}, err
	}

	s.log.WithField("user_id", owner).Info("otp verified")
	return VerifyResult{UserID: owner, Authenticated: true, State: model.AuthStateAuthenticated}, nil
}

func validatePassword(pw string) string {
	if len(pw) < 6 {
		return "password must be at least 6 characters"
	}
	if len(pw) > maxPasswordBytes {
		return "password must be at most 72 bytes"
	}
	hasUpper := false
	hasSpecial := false
	for _, r := range pw {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			hasSpecial = true
		}
	}
	if !hasUpper {
		return "password must contain at least one uppercase letter"
	}
	if !hasSpecial {
		return "password must contain at least one special character"
	}
	return ""
}

// validEmail accepts a bare RFC 5322 address with a dotted domain.
func validEmail(email string) bool {
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}
