package auth

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolchaal/bolchaal-backend/internal/messaging"
	"github.com/bolchaal/bolchaal-backend/internal/users"
)

type memCodeStore struct {
	mu    sync.Mutex
	codes []struct {
		phone     string
		hash      string
		expiresAt time.Time
		consumed  bool
		createdAt time.Time
	}
	now func() time.Time
}

func (s *memCodeStore) Insert(_ context.Context, phone, hash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, struct {
		phone     string
		hash      string
		expiresAt time.Time
		consumed  bool
		createdAt time.Time
	}{phone, hash, expiresAt, false, s.now()})
	return nil
}

func (s *memCodeStore) CountRecent(_ context.Context, phone string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, c := range s.codes {
		if c.phone == phone && !c.createdAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memCodeStore) Consume(_ context.Context, phone, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.codes {
		c := &s.codes[i]
		if c.phone == phone && c.hash == hash && c.expiresAt.After(now) && !c.consumed {
			c.consumed = true
			return nil
		}
	}
	return ErrInvalidCode
}

type captureSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *captureSender) SendSMS(_ context.Context, _, body string) (*messaging.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, body)
	return &messaging.SendResult{MessageSID: "SM123", Status: "queued"}, nil
}

func (s *captureSender) last(t *testing.T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.messages)
	return s.messages[len(s.messages)-1]
}

type fakeProvisioner struct {
	profiles map[string]*users.Profile
}

func (f *fakeProvisioner) EnsureProfile(_ context.Context, phone string) (*users.Profile, error) {
	if f.profiles == nil {
		f.profiles = map[string]*users.Profile{}
	}
	if p, ok := f.profiles[phone]; ok {
		return p, nil
	}
	p := &users.Profile{ID: uuid.New(), PhoneNumber: phone, SubscriptionTier: users.TierFree}
	f.profiles[phone] = p
	return p, nil
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func newTestService(t *testing.T) (*Service, *memCodeStore, *captureSender, *time.Time) {
	t.Helper()
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	store := &memCodeStore{}
	sender := &captureSender{}
	tokens, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	svc := NewService(store, &fakeProvisioner{}, sender, tokens, nil, ServiceConfig{MaxPerHour: 3})
	svc.now = func() time.Time { return now }
	store.now = svc.now
	return svc, store, sender, &now
}

func TestRequestAndVerifyCode(t *testing.T) {
	svc, _, sender, _ := newTestService(t)

	const phone = "+919876543210"
	require.NoError(t, svc.RequestCode(context.Background(), phone))

	match := codePattern.FindStringSubmatch(sender.last(t))
	require.NotNil(t, match, "SMS should contain a 6-digit code")

	result, err := svc.VerifyCode(context.Background(), phone, match[1])
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, phone, result.Profile.PhoneNumber)
}

func TestVerifyCodeRejectsWrongCode(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	const phone = "+919876543210"
	require.NoError(t, svc.RequestCode(context.Background(), phone))

	_, err := svc.VerifyCode(context.Background(), phone, "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestCodeIsSingleUse(t *testing.T) {
	svc, _, sender, _ := newTestService(t)

	const phone = "+919876543210"
	require.NoError(t, svc.RequestCode(context.Background(), phone))
	code := codePattern.FindStringSubmatch(sender.last(t))[1]

	_, err := svc.VerifyCode(context.Background(), phone, code)
	require.NoError(t, err)

	_, err = svc.VerifyCode(context.Background(), phone, code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestExpiredCodeRejected(t *testing.T) {
	svc, _, sender, now := newTestService(t)

	const phone = "+919876543210"
	require.NoError(t, svc.RequestCode(context.Background(), phone))
	code := codePattern.FindStringSubmatch(sender.last(t))[1]

	*now = now.Add(6 * time.Minute)
	_, err := svc.VerifyCode(context.Background(), phone, code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestHourlyRateLimit(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	const phone = "+919876543210"
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RequestCode(context.Background(), phone))
	}
	assert.ErrorIs(t, svc.RequestCode(context.Background(), phone), ErrTooManyRequests)
}

func TestRequestCodeRejectsBadPhone(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	for _, phone := range []string{"", "12345", "9876543210", "+0123", "not-a-phone"} {
		assert.ErrorIs(t, svc.RequestCode(context.Background(), phone), ErrInvalidPhone, phone)
	}
}
