package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recordingPolicy(p Policy, slept *[]time.Duration) Policy {
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return p
}

func TestExponential(t *testing.T) {
	b := Exponential(2*time.Second, 10*time.Second)
	require.Equal(t, 2*time.Second, b(1))
	require.Equal(t, 4*time.Second, b(2))
	require.Equal(t, 8*time.Second, b(3))
	require.Equal(t, 10*time.Second, b(4))
	require.Equal(t, 10*time.Second, b(10))
}

func TestDoExhaustsWithDefaultSchedule(t *testing.T) {
	var slept []time.Duration
	p := recordingPolicy(Default(), &slept)
	calls := 0
	boom := errors.New("boom")
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, attempts)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestDoSucceedsAfterFailure(t *testing.T) {
	var slept []time.Duration
	p := recordingPolicy(Default(), &slept)
	calls := 0
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Len(t, slept, 1)
}

func TestDoPermanentStops(t *testing.T) {
	var slept []time.Duration
	p := recordingPolicy(Default(), &slept)
	bad := errors.New("bad request")
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		return Permanent(bad)
	})
	require.Equal(t, 1, attempts)
	require.Equal(t, bad, err)
	require.Empty(t, slept)
	require.NoError(t, Permanent(nil))
}

func TestDoRetryableFilter(t *testing.T) {
	var slept []time.Duration
	p := recordingPolicy(Default(), &slept)
	p.Retryable = func(err error) bool { return false }
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("no")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Backoff: Exponential(time.Hour, time.Hour)}
	calls := 0
	start := time.Now()
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	attempts, err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
	require.Less(t, time.Since(start), time.Minute)
}
