package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountdownTimerTicksAndExpiresOnce(t *testing.T) {
	timer := NewCountdownTimer(10 * time.Millisecond)

	var (
		mu      sync.Mutex
		ticks   []int
		expires int
	)

	timer.Arm(80*time.Millisecond,
		func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
		func() {
			mu.Lock()
			expires++
			mu.Unlock()
		},
	)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return expires == 1
	}, time.Second, 5*time.Millisecond)

	// Allow any stray goroutine to misbehave before checking counts.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, expires, "expiry must fire exactly once")
	require.NotEmpty(t, ticks)
	for i := 1; i < len(ticks); i++ {
		require.LessOrEqual(t, ticks[i], ticks[i-1], "remaining seconds must be non-increasing")
	}
	require.Equal(t, 0, ticks[len(ticks)-1])
	require.False(t, timer.Armed())
}

func TestCountdownTimerDisarmIsIdempotent(t *testing.T) {
	timer := NewCountdownTimer(10 * time.Millisecond)

	timer.Disarm() // never armed
	timer.Disarm()

	var mu sync.Mutex
	expires := 0
	timer.Arm(50*time.Millisecond, nil, func() {
		mu.Lock()
		expires++
		mu.Unlock()
	})
	timer.Disarm()
	timer.Disarm()

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, expires, "a disarmed timer must never expire")
	require.False(t, timer.Armed())
}

func TestCountdownTimerRearmReplacesCountdown(t *testing.T) {
	timer := NewCountdownTimer(10 * time.Millisecond)

	var mu sync.Mutex
	firstExpires, secondExpires := 0, 0

	timer.Arm(time.Hour, nil, func() {
		mu.Lock()
		firstExpires++
		mu.Unlock()
	})
	timer.Arm(40*time.Millisecond, nil, func() {
		mu.Lock()
		secondExpires++
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return secondExpires == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, firstExpires, "replaced countdown must not fire")
}

func TestSecondsUntilDriftCorrection(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := base.Add(60 * time.Second)

	// Remaining is derived from the deadline, not from how many ticks
	// were delivered, so a stalled clock reads correctly on resume.
	require.Equal(t, 60, secondsUntil(deadline, base))
	require.Equal(t, 30, secondsUntil(deadline, base.Add(30*time.Second)))
	require.Equal(t, 31, secondsUntil(deadline, base.Add(29500*time.Millisecond)), "partial seconds round up")
	require.Equal(t, 1, secondsUntil(deadline, base.Add(59900*time.Millisecond)))
	require.Equal(t, 0, secondsUntil(deadline, base.Add(60*time.Second)))
	require.Equal(t, 0, secondsUntil(deadline, base.Add(5*time.Minute)), "past deadline clamps at zero")
}
