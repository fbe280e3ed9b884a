package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	userID := uuid.New()

	token, err := m.Issue(now, userID, "+919876543210")
	require.NoError(t, err)

	claims, err := m.Verify(token, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "+919876543210", claims.PhoneNumber)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	token, err := m.Issue(now, uuid.New(), "+919876543210")
	require.NoError(t, err)

	_, err = m.Verify(token, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m1, err := NewManager("secret-one", time.Hour)
	require.NoError(t, err)
	m2, err := NewManager("secret-two", time.Hour)
	require.NoError(t, err)

	now := time.Now()
	token, err := m1.Issue(now, uuid.New(), "+919876543210")
	require.NoError(t, err)

	_, err = m2.Verify(token, now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	_, err = m.Verify("not-a-token", time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("", time.Hour)
	assert.Error(t, err)
}
