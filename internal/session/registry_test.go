package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func registryEntry(t *testing.T) *Entry {
	t.Helper()
	remote := NewRemote()
	m, err := NewMachine(Config{
		Exam:         testDefinition(),
		UserID:       7,
		Fullscreen:   remote,
		Submitter:    &fakeSubmitter{},
		Emitter:      remote,
		TickInterval: time.Hour,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return &Entry{Machine: m, Remote: remote}
}

func TestRegistryGetOrCreateReusesEntry(t *testing.T) {
	reg := NewRegistry()
	examID := uuid.New()

	builds := 0
	build := func() (*Entry, error) {
		builds++
		return registryEntry(t), nil
	}

	first, err := reg.GetOrCreate(examID, 7, build)
	require.NoError(t, err)
	second, err := reg.GetOrCreate(examID, 7, build)
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, builds)
	require.Equal(t, 1, reg.Len())
	require.Same(t, first, reg.Get(examID, 7))

	// A different user on the same exam gets their own session.
	_, err = reg.GetOrCreate(examID, 8, build)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	reg.Remove(examID, 7)
	reg.Remove(examID, 8)
}

func TestRegistryBuildFailureStoresNothing(t *testing.T) {
	reg := NewRegistry()
	examID := uuid.New()

	_, err := reg.GetOrCreate(examID, 7, func() (*Entry, error) {
		return nil, errors.New("exam unavailable")
	})
	require.Error(t, err)
	require.Equal(t, 0, reg.Len())
	require.Nil(t, reg.Get(examID, 7))
}

func TestRegistryEvictsTerminalSessions(t *testing.T) {
	reg := NewRegistry()
	examID := uuid.New()
	userID := 7

	entry, err := reg.GetOrCreate(examID, userID, func() (*Entry, error) {
		remote := NewRemote()
		remote.SetHooks(Hooks{
			Terminal: func(State) { reg.Remove(examID, userID) },
		})
		m, err := NewMachine(Config{
			Exam:         testDefinition(),
			UserID:       userID,
			Fullscreen:   remote,
			Submitter:    &fakeSubmitter{},
			Emitter:      remote,
			TickInterval: time.Hour,
			Logger:       zerolog.Nop(),
		})
		if err != nil {
			return nil, err
		}
		return &Entry{Machine: m, Remote: remote}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	entry.Machine.Confirm()
	waitState(t, entry.Machine, StateActive)
	entry.Machine.Submit()
	waitState(t, entry.Machine, StateSubmitted)

	// The finished machine must not linger: its entry is gone and its
	// event loop is closed, so later events are dropped.
	require.Eventually(t, func() bool { return reg.Len() == 0 },
		2*time.Second, 2*time.Millisecond)
	require.Nil(t, reg.Get(examID, userID))
	entry.Machine.Retry()
	drain(t, entry.Machine)
	require.Equal(t, StateSubmitted, entry.Machine.State())
}

func TestRegistryRemoveClosesMachine(t *testing.T) {
	reg := NewRegistry()
	examID := uuid.New()

	entry, err := reg.GetOrCreate(examID, 7, func() (*Entry, error) {
		return registryEntry(t), nil
	})
	require.NoError(t, err)

	reg.Remove(examID, 7)
	require.Equal(t, 0, reg.Len())

	// Events posted after removal are dropped by the closed machine.
	entry.Machine.Confirm()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateConfirming, entry.Machine.State())

	reg.Remove(examID, 7) // absent key is a no-op
}
