package embedder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("nil limiter never blocks", func(t *testing.T) {
		var r *RateLimiter
		assert.True(t, r.Allow())
		assert.NoError(t, r.Wait(context.Background()))
		r.RecordRateLimitError(time.Second)
	})

	t.Run("burst then throttle", func(t *testing.T) {
		r := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
		assert.True(t, r.Allow())
		assert.True(t, r.Allow())
		assert.False(t, r.Allow())
	})

	t.Run("rate limit error pauses callers", func(t *testing.T) {
		r := NewRateLimiter(RateLimitConfig{})
		r.RecordRateLimitError(time.Hour)
		assert.False(t, r.Allow())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := r.Wait(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
