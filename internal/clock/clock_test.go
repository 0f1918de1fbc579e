package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClockNow(t *testing.T) {
	t.Parallel()

	before := time.Now()
	now := RealClock{}.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestFakeClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	clk := NewFakeClock(start)
	assert.Equal(t, start, clk.Now())

	clk.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clk.Now())

	pinned := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk.Set(pinned)
	assert.Equal(t, pinned, clk.Now())
}
