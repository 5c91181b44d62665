package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffDurations(t *testing.T) {
	req := require.New(t)
	b := NewExponentialBackoff(time.Millisecond, 8*time.Millisecond)

	ctx := context.Background()
	expected := []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
		8 * time.Millisecond, // capped
	}
	for _, want := range expected {
		req.Equal(want, b.NextDuration)
		req.NoError(b.Backoff(ctx))
	}

	b.Reset()
	req.Equal(time.Millisecond, b.NextDuration)
}

func TestBackoffCancel(t *testing.T) {
	req := require.New(t)
	b := NewConstantBackoff(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := b.Backoff(ctx)
	req.ErrorIs(err, context.Canceled)
}
