package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDynamicLimiter_BlocksAtLimit(t *testing.T) {
	l := NewDynamicLimiter(1)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.False(t, l.TryAcquire())

	acquired := make(chan struct{})
	go func() {
		_ = l.Acquire(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()
	select {
	case <-acquired:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("second acquire should have proceeded after release")
	}
	require.Equal(t, 1, l.InFlight())
	l.Release()
	require.Zero(t, l.InFlight())
}

func TestDynamicLimiter_RaisingLimitWakesWaiters(t *testing.T) {
	l := NewDynamicLimiter(1)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	done := make(chan struct{})
	go func() {
		_ = l.Acquire(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("acquire should block while limit is 1")
	case <-time.After(50 * time.Millisecond):
	}

	l.SetLimit(2)
	select {
	case <-done:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("waiter should have been woken by SetLimit")
	}
	require.Equal(t, 2, l.Limit())
}

func TestDynamicLimiter_LoweringLimitKeepsHolders(t *testing.T) {
	l := NewDynamicLimiter(3)
	for i := 0; i < 3; i++ {
		require.True(t, l.TryAcquire())
	}

	l.SetLimit(1)
	require.Equal(t, 3, l.InFlight())
	require.False(t, l.TryAcquire())

	l.Release()
	l.Release()
	require.False(t, l.TryAcquire(), "still at the new limit")
	l.Release()
	require.True(t, l.TryAcquire())

	l.SetLimit(0)
	require.Equal(t, 1, l.Limit())
}

func TestDynamicLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewDynamicLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
