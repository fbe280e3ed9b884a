package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolchaal/bolchaal-backend/internal/users"
)

type fakeSeconds struct {
	seconds int
	err     error
}

func (f *fakeSeconds) WeeklySecondsUsed(ctx context.Context, userID uuid.UUID, windowStart time.Time) (int, error) {
	return f.seconds, f.err
}

func freeProfile() *users.Profile {
	return &users.Profile{ID: uuid.New(), SubscriptionTier: users.TierFree}
}

func TestFreeUserUnderCap(t *testing.T) {
	gate := NewGate(&fakeSeconds{seconds: 20 * 60}, 25)

	st, err := gate.StatusFor(context.Background(), freeProfile())
	require.NoError(t, err)

	assert.True(t, st.HasMinutes)
	assert.Equal(t, 20, st.MinutesUsed)
	assert.Equal(t, 5, st.MinutesRemaining)
	assert.False(t, st.NeedsUpgrade)
	assert.Equal(t, 300, gate.MaxCallDurationSeconds(st))
}

func TestFreeUserAtCap(t *testing.T) {
	gate := NewGate(&fakeSeconds{seconds: 25 * 60}, 25)

	st, err := gate.StatusFor(context.Background(), freeProfile())
	require.NoError(t, err)

	assert.False(t, st.HasMinutes)
	assert.Equal(t, 0, st.MinutesRemaining)
	assert.True(t, st.NeedsUpgrade)
	assert.Equal(t, 0, gate.MaxCallDurationSeconds(st))
}

func TestFreeUserOverCap(t *testing.T) {
	gate := NewGate(&fakeSeconds{seconds: 40 * 60}, 25)

	st, err := gate.StatusFor(context.Background(), freeProfile())
	require.NoError(t, err)

	assert.False(t, st.HasMinutes)
	assert.Equal(t, 0, st.MinutesRemaining)
	assert.True(t, st.NeedsUpgrade)
}

func TestPartialMinutesRoundUp(t *testing.T) {
	gate := NewGate(&fakeSeconds{seconds: 61}, 25)

	st, err := gate.StatusFor(context.Background(), freeProfile())
	require.NoError(t, err)

	assert.Equal(t, 2, st.MinutesUsed)
	assert.Equal(t, 23, st.MinutesRemaining)
}

func TestProUserAlwaysHasMinutes(t *testing.T) {
	// Usage far beyond the free cap must not matter for pro.
	gate := NewGate(&fakeSeconds{seconds: 1000 * 60}, 25)

	st, err := gate.StatusFor(context.Background(), &users.Profile{
		ID:               uuid.New(),
		SubscriptionTier: users.TierPro,
	})
	require.NoError(t, err)

	assert.True(t, st.HasMinutes)
	assert.True(t, st.Unlimited)
	assert.Equal(t, UnlimitedMinutes, st.MinutesRemaining)
	assert.False(t, st.NeedsUpgrade)
	assert.Equal(t, 0, gate.MaxCallDurationSeconds(st))
}

func TestExpiredTrialNeedsUpgrade(t *testing.T) {
	expired := time.Now().Add(-24 * time.Hour)
	gate := NewGate(&fakeSeconds{seconds: 0}, 25)

	st, err := gate.StatusFor(context.Background(), &users.Profile{
		ID:               uuid.New(),
		SubscriptionTier: users.TierTrial,
		TrialExpiresAt:   &expired,
	})
	require.NoError(t, err)

	assert.False(t, st.HasMinutes)
	assert.True(t, st.NeedsUpgrade)
}
