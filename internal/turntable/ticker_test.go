package turntable

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tick loop did not exit")
	}
}

func TestTickerStopsWhenFnReturnsFalse(t *testing.T) {
	var dts []float64
	h := Ticker{Clock: FixedClock{Step: 0.25}}.Start(func(dt float64) bool {
		dts = append(dts, dt)
		return len(dts) < 4
	})
	waitDone(t, h)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, dts)
}

func TestTickerCancel(t *testing.T) {
	var n atomic.Int64
	h := Ticker{Interval: time.Millisecond, Clock: FixedClock{Step: 1}}.Start(func(float64) bool {
		n.Add(1)
		return true
	})
	require.Eventually(t, func() bool { return n.Load() > 2 }, 5*time.Second, time.Millisecond)

	h.Cancel()
	h.Cancel()
	waitDone(t, h)

	after := n.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, n.Load())
}

func TestTickerDrivesDriver(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDriver(anim(10, "right"), &fakeRenderer{}, rec)
	require.NoError(t, d.Load(&fakeModel{}))

	h := Ticker{Clock: FixedClock{Step: 1.0 / 60}}.Start(func(dt float64) bool {
		if err := d.Tick(dt); err != nil {
			return false
		}
		return d.Phase() != Stopped
	})
	waitDone(t, h)

	assert.Equal(t, Stopped, d.Phase())
	assert.Equal(t, 189, rec.pushed)
}

func TestWallClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := &WallClock{now: func() time.Time { return now }}

	assert.Equal(t, 0.0, c.Delta())
	now = now.Add(250 * time.Millisecond)
	assert.InDelta(t, 0.25, c.Delta(), 1e-9)
	assert.Equal(t, 0.0, c.Delta())
}
