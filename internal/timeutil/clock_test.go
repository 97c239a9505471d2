package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	assert.False(t, got.Before(before))
	assert.InDelta(t, 0, c.Since(got).Seconds(), 1.0)
}

func TestMockClockSetAndAdvance(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	assert.Equal(t, base, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, base.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(base))

	c.Set(base)
	assert.Equal(t, base, c.Now())
}

func TestMockClockAfterDoesNotBlock(t *testing.T) {
	c := NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	select {
	case tm := <-c.After(time.Hour):
		assert.Equal(t, c.Now().Add(time.Hour), tm)
	case <-time.After(time.Second):
		t.Fatal("mock After blocked")
	}
}
