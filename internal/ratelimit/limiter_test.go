package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(max int, window time.Duration) (*MemoryStore, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(max, window)
	s.now = clk.Now
	return s, clk
}

func TestMemoryStore_AllowsUpToMaxThenRejects(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(3, time.Minute)
	lim := New(store)

	for i := 0; i < 3; i++ {
		d, err := lim.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
	}

	d, err := lim.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	// still rejected inside the window
	d, _ = lim.Allow(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)
}

func TestMemoryStore_WindowResets(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(2, time.Minute)
	lim := New(store)

	lim.Allow(ctx, "a")
	lim.Allow(ctx, "a")
	d, _ := lim.Allow(ctx, "a")
	require.False(t, d.Allowed)

	// exactly at the deadline the window is still closed
	clk.Advance(time.Minute)
	d, _ = lim.Allow(ctx, "a")
	assert.False(t, d.Allowed)

	clk.Advance(time.Millisecond)
	d, _ = lim.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, clk.Now().Add(time.Minute), d.ResetAt)
}

func TestMemoryStore_IdentifiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(1, time.Minute)
	lim := New(store)

	d, _ := lim.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = lim.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	d, _ = lim.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestLimiter_RemainingAndResetTime(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(5, time.Minute)
	lim := New(store)

	rem, err := lim.Remaining(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 5, rem)

	reset, err := lim.ResetTime(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), reset)

	lim.Allow(ctx, "x")
	lim.Allow(ctx, "x")
	rem, _ = lim.Remaining(ctx, "x")
	assert.Equal(t, 3, rem)
	reset, _ = lim.ResetTime(ctx, "x")
	assert.Equal(t, clk.Now().Add(time.Minute), reset)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(5, time.Minute)
	lim := New(store)

	for i := 0; i < 4; i++ {
		lim.Allow(ctx, fmt.Sprintf("client-%d", i))
	}
	clk.Advance(30 * time.Second)
	lim.Allow(ctx, "late")

	clk.Advance(45 * time.Second)
	assert.Equal(t, 4, lim.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestNewMemoryStore_Defaults(t *testing.T) {
	s := NewMemoryStore(0, 0)
	assert.Equal(t, DefaultMax, s.max)
	assert.Equal(t, DefaultWindow, s.window)
}
