package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_TimerFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	timer := c.NewTimer(30 * time.Second)

	c.Advance(29 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case at := <-timer.C():
		assert.Equal(t, start.Add(30*time.Second), at)
	default:
		t.Fatal("timer did not fire")
	}
}

func TestFake_StopAndReset(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	timer := c.NewTimer(time.Second)

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}

	timer.Reset(time.Second)
	assert.Equal(t, 1, c.ActiveTimers())
	c.Advance(time.Second)
	select {
	case <-timer.C():
	default:
		t.Fatal("reset timer did not fire")
	}
	assert.Equal(t, 0, c.ActiveTimers())
}

func TestFake_WaitForTimers(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	go c.NewTimer(time.Second)
	require.True(t, c.WaitForTimers(1, time.Second))
}

func TestReal_Now(t *testing.T) {
	c := Real()
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))

	timer := c.NewTimer(time.Millisecond)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
