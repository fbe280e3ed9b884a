package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/bolchaal/bolchaal-backend/internal/messaging"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

var (
	// ErrInvalidPhone is returned for phone numbers that are not E.164.
	ErrInvalidPhone = errors.New("auth: invalid phone number")
	// ErrInvalidCode is returned when a code does not match, expired, or
	// was already used.
	ErrInvalidCode = errors.New("auth: invalid or expired code")
	// ErrTooManyRequests is returned once a phone number exhausts its
	// hourly OTP budget.
	ErrTooManyRequests = errors.New("auth: too many code requests")
)

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// CodeStore is the slice of OTP persistence the service needs.
type CodeStore interface {
	Insert(ctx context.Context, phoneNumber, codeHash string, expiresAt time.Time) error
	CountRecent(ctx context.Context, phoneNumber string, since time.Time) (int, error)
	Consume(ctx context.Context, phoneNumber, codeHash string, now time.Time) error
}

// ProfileProvisioner creates or fetches the profile for a verified phone.
type ProfileProvisioner interface {
	EnsureProfile(ctx context.Context, phoneNumber string) (*users.Profile, error)
}

// ServiceConfig tunes OTP issuance.
type ServiceConfig struct {
	CodeLength int
	CodeTTL    time.Duration
	MaxPerHour int
}

func (c *ServiceConfig) applyDefaults() {
	if c.CodeLength < 4 || c.CodeLength > 8 {
		c.CodeLength = 6
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = 5 * time.Minute
	}
	if c.MaxPerHour <= 0 {
		c.MaxPerHour = 5
	}
}

// Service implements phone-number OTP sign-in.
type Service struct {
	codes    CodeStore
	profiles ProfileProvisioner
	sender   messaging.SMSSender
	tokens   *Manager
	logger   *logging.Logger
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService wires the OTP flow together.
func NewService(codes CodeStore, profiles ProfileProvisioner, sender messaging.SMSSender, tokens *Manager, logger *logging.Logger, cfg ServiceConfig) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		codes:    codes,
		profiles: profiles,
		sender:   sender,
		tokens:   tokens,
		logger:   logger.WithComponent("auth"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// RequestCode generates a one-time code, stores its hash, and texts it to
// the given phone number.
func (s *Service) RequestCode(ctx context.Context, phoneNumber string) error {
	if !phonePattern.MatchString(phoneNumber) {
		return ErrInvalidPhone
	}

	now := s.now()
	recent, err := s.codes.CountRecent(ctx, phoneNumber, now.Add(-time.Hour))
	if err != nil {
		return err
	}
	if recent >= s.cfg.MaxPerHour {
		return ErrTooManyRequests
	}

	code, err := generateCode(s.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("auth: generate code: %w", err)
	}

	if err := s.codes.Insert(ctx, phoneNumber, hashCode(code), now.Add(s.cfg.CodeTTL)); err != nil {
		return err
	}

	body := fmt.Sprintf("Your BolChaal verification code is %s. It expires in %d minutes.", code, int(s.cfg.CodeTTL.Minutes()))
	if _, err := s.sender.SendSMS(ctx, phoneNumber, body); err != nil {
		return fmt.Errorf("auth: send otp sms: %w", err)
	}

	s.logger.Info("otp code issued", "phone", maskPhone(phoneNumber))
	return nil
}

// VerifyResult is returned after a successful code verification.
type VerifyResult struct {
	Token   string
	Profile *users.Profile
}

// VerifyCode checks a submitted code, provisions the profile on first
// sign-in, and returns a session token.
func (s *Service) VerifyCode(ctx context.Context, phoneNumber, code string) (*VerifyResult, error) {
	if !phonePattern.MatchString(phoneNumber) {
		return nil, ErrInvalidPhone
	}
	if code == "" {
		return nil, ErrInvalidCode
	}

	now := s.now()
	if err := s.codes.Consume(ctx, phoneNumber, hashCode(code), now); err != nil {
		return nil, err
	}

	profile, err := s.profiles.EnsureProfile(ctx, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("auth: provision profile: %w", err)
	}

	token, err := s.tokens.Issue(now, profile.ID, profile.PhoneNumber)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in", "user_id", profile.ID, "phone", maskPhone(phoneNumber))
	return &VerifyResult{Token: token, Profile: profile}, nil
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
