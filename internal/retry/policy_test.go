package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, BackoffLinear, p.Mode)
	assert.Equal(t, time.Second, p.Initial)
	assert.Equal(t, 30*time.Second, p.Max)
	assert.Equal(t, 2, p.MaxRetries)
	require.NoError(t, p.Validate())
}

func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(BackoffFixed, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial, "initial is clamped to max")
	assert.Equal(t, 2*time.Second, p.Max)
	assert.Equal(t, BackoffFixed, p.Mode)
	assert.Equal(t, 5, p.MaxRetries)

	assert.Equal(t, BackoffLinear, NewPolicy("bogus", 0, 0, -1).Mode)
}

func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(BackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 100*time.Millisecond, fixed.Delay(i))
	}

	linear := NewPolicy(BackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	for attempt, want := range map[int]time.Duration{0: 0, 1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 250 * time.Millisecond} {
		assert.Equal(t, want, linear.Delay(attempt), attempt)
	}

	exp := NewPolicy(BackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	for attempt, want := range map[int]time.Duration{1: 50 * time.Millisecond, 2: 100 * time.Millisecond, 3: 160 * time.Millisecond, 70: 160 * time.Millisecond} {
		assert.Equal(t, want, exp.Delay(attempt), attempt)
	}
}

func TestValidate(t *testing.T) {
	require.Error(t, Policy{Initial: 0, Max: time.Second}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: 0}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
}

var errTransient = errors.New("transient")

func TestDo(t *testing.T) {
	p := NewPolicy(BackoffFixed, time.Millisecond, time.Millisecond, 2)
	always := func(error) bool { return true }

	calls := 0
	err := p.Do(context.Background(), always, func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = p.Do(context.Background(), always, func() error { calls++; return errTransient })
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls, "one attempt plus two retries")

	calls = 0
	permanent := errors.New("denied")
	err = p.Do(context.Background(), func(e error) bool { return e == errTransient }, func() error { calls++; return permanent })
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPolicy(BackoffFixed, time.Hour, time.Hour, 3)
	calls := 0
	err := p.Do(ctx, func(error) bool { return true }, func() error {
		calls++
		cancel()
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]BackoffMode{"": BackoffLinear, "Fixed": BackoffFixed, " exponential ": BackoffExponential} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("jittered")
	require.Error(t, err)
}
