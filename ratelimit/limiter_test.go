package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errStore struct{}

func (errStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("store unreachable")
}

func TestLimiterAdmitsUpToLimitThenDenies(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 60, time.Minute, nil)

	for i := 0; i < 60; i++ {
		dec, err := l.Allow(context.Background(), "tenant-a")
		require.NoError(t, err)
		require.True(t, dec.Allowed, "request %d should be admitted", i+1)
	}

	dec, err := l.Allow(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
	assert.Equal(t, 60, dec.Limit)
	// Reset must land within the window so callers can schedule a retry.
	assert.LessOrEqual(t, time.Until(dec.Reset), time.Minute)
	assert.Positive(t, time.Until(dec.Reset))
}

func TestLimiterRemainingDecreases(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 3, time.Minute, nil)

	dec, err := l.Allow(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, dec.Remaining)

	dec, err = l.Allow(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 1, dec.Remaining)
}

func TestLimiterTierOverrides(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 1, time.Minute, map[string]int{"tenant-vip": 3})

	// Default tier exhausts after one request.
	dec, err := l.Allow(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	dec, err = l.Allow(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	// Override tier gets its own budget.
	for i := 0; i < 3; i++ {
		dec, err = l.Allow(context.Background(), "tenant-vip")
		require.NoError(t, err)
		require.True(t, dec.Allowed)
	}
	dec, err = l.Allow(context.Background(), "tenant-vip")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestLimiterSurfacesStoreErrors(t *testing.T) {
	l := NewLimiter(errStore{}, 60, time.Minute, nil)

	_, err := l.Allow(context.Background(), "tenant-a")
	assert.Error(t, err)
}

func TestLimiterWindowResetRestoresQuota(t *testing.T) {
	window := 20 * time.Millisecond
	l := NewLimiter(NewMemoryStore(), 1, window, nil)

	dec, err := l.Allow(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	dec, err = l.Allow(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.False(t, dec.Allowed)

	time.Sleep(window + 5*time.Millisecond)

	dec, err = l.Allow(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}
