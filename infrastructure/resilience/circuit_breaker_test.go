package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{MaxFailures: 2, Timeout: time.Hour, HalfOpenMax: 1})
	failing := errors.New("rpc down")

	require.ErrorIs(t, cb.Execute(func() error { return failing }), failing)
	require.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Execute(func() error { return failing }), failing)
	require.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenRecoversOnSuccess(t *testing.T) {
	cb := New(Config{MaxFailures: 1, Timeout: time.Millisecond, HalfOpenMax: 1})

	require.Error(t, cb.Execute(func() error { return errors.New("fail") }))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(2 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	cb := New(Config{MaxFailures: 1, Timeout: time.Millisecond, HalfOpenMax: 2})

	require.Error(t, cb.Execute(func() error { return errors.New("fail") }))
	time.Sleep(2 * time.Millisecond)

	require.Error(t, cb.Execute(func() error { return errors.New("still failing") }))
	require.Equal(t, StateOpen, cb.State())
}
