package turntable

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/turntable/internal/config"
)

type fakeModel struct {
	rotations []float64
}

func (m *fakeModel) SetRotationY(rad float64) {
	m.rotations = append(m.rotations, rad)
}

type fakeRenderer struct {
	calls int
	err   error
}

func (r *fakeRenderer) Render() (image.Image, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

type fakeRecorder struct {
	beginErr error
	inactive bool

	begins  int
	format  config.Format
	pushed  int
	stops   int
	aborts  int
	onProg  func(float64)
	onDone  func()
	stopped bool
}

func (r *fakeRecorder) Begin(f config.Format, onProgress func(float64), onComplete func()) error {
	r.begins++
	if r.beginErr != nil {
		return r.beginErr
	}
	r.format = f
	r.onProg = onProgress
	r.onDone = onComplete
	return nil
}

func (r *fakeRecorder) IsActive() bool {
	return !r.inactive && !r.stopped && r.begins > 0
}

func (r *fakeRecorder) PushFrame(image.Image) error {
	r.pushed++
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.stops++
	r.stopped = true
	r.onDone()
	return nil
}

func (r *fakeRecorder) Abort() error {
	r.aborts++
	r.stopped = true
	return nil
}

func anim(speed int, dir config.Direction) config.AnimationConfig {
	return config.AnimationConfig{Speed: speed, Direction: dir, Format: config.WebM}
}

func TestStep(t *testing.T) {
	tests := []struct {
		dt    float64
		speed int
		dir   config.Direction
		want  float64
	}{
		{1, 5, config.Right, 1},
		{1, 5, config.Left, -1},
		{0.5, 10, config.Right, 1},
		{1.0 / 60, 1, config.Left, -0.2 / 60},
		{0, 7, config.Right, 0},
	}
	for _, tt := range tests {
		got := Step(tt.dt, tt.speed, tt.dir)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Step(%v, %d, %s) = %v, want %v", tt.dt, tt.speed, tt.dir, got, tt.want)
		}
	}
}

func TestShouldStop(t *testing.T) {
	assert.False(t, ShouldStop(RightStop-1e-9, config.Right))
	assert.True(t, ShouldStop(RightStop, config.Right))
	assert.True(t, ShouldStop(RightStop+1, config.Right))
	assert.False(t, ShouldStop(LeftStop, config.Right))

	assert.False(t, ShouldStop(LeftStop+1e-9, config.Left))
	assert.True(t, ShouldStop(LeftStop, config.Left))
	assert.True(t, ShouldStop(LeftStop-1, config.Left))
	assert.False(t, ShouldStop(RightStop, config.Left))
}

func TestDegToRad(t *testing.T) {
	assert.InDelta(t, 3*math.Pi/2, DegToRad(270), 1e-12)
	assert.InDelta(t, -5*math.Pi/2, DegToRad(-450), 1e-12)
	assert.InDelta(t, InitialRotation, DegToRad(-90), 1e-12)
}

// runToStop ticks a loaded driver with a constant dt and checks that every
// tick before the last stayed short of the stop angle.
func runToStop(t *testing.T, d *Driver, dt float64, dir config.Direction) int {
	t.Helper()
	for i := 0; i < 100000; i++ {
		before := d.State().Rotation
		require.False(t, ShouldStop(before, dir), "tick %d started past the stop angle", i)
		require.NoError(t, d.Tick(dt))
		if d.Phase() == Stopped {
			return i + 1
		}
	}
	t.Fatal("driver never stopped")
	return 0
}

func TestScenarioRightSpeed5(t *testing.T) {
	model := &fakeModel{}
	rec := &fakeRecorder{}
	completed := 0
	d := NewDriver(anim(5, config.Right), &fakeRenderer{}, rec, WithComplete(func() { completed++ }))

	require.NoError(t, d.Load(model))
	assert.Equal(t, Recording, d.Phase())
	assert.Equal(t, []float64{InitialRotation}, model.rotations)

	dt := 1.0 / 60
	ticks := runToStop(t, d, dt, config.Right)

	// 2π at 1 rad/s
	want := int(math.Ceil(2 * math.Pi / Step(dt, 5, config.Right)))
	assert.Equal(t, want, ticks)
	assert.Equal(t, 377, ticks)

	st := d.State()
	assert.GreaterOrEqual(t, st.Rotation, RightStop)
	assert.Less(t, st.Rotation-Step(dt, 5, config.Right), RightStop)
	assert.False(t, st.Recording)
	assert.Equal(t, ticks, st.Frames)
	assert.Equal(t, ticks, rec.pushed)
	assert.InDelta(t, float64(ticks)*dt, st.Elapsed, 1e-9)
	assert.Equal(t, 1, rec.stops)
	assert.Equal(t, 1, completed)

	// rotation applied to the model before every render
	assert.Len(t, model.rotations, ticks+1)
	assert.Equal(t, st.Rotation, model.rotations[len(model.rotations)-1])
}

func TestScenarioLeftSpeed10(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDriver(anim(10, config.Left), &fakeRenderer{}, rec)
	require.NoError(t, d.Load(&fakeModel{}))

	dt := 1.0 / 60
	ticks := runToStop(t, d, dt, config.Left)

	// 2π at 2 rad/s
	assert.Equal(t, 189, ticks)
	assert.LessOrEqual(t, d.State().Rotation, LeftStop)
	assert.Equal(t, ticks, rec.pushed)
	assert.Equal(t, 1, rec.stops)
}

func TestNoFramesAfterStop(t *testing.T) {
	rec := &fakeRecorder{}
	r := &fakeRenderer{}
	d := NewDriver(anim(10, config.Right), r, rec)
	require.NoError(t, d.Load(&fakeModel{}))
	runToStop(t, d, 0.1, config.Right)

	pushed, renders, st := rec.pushed, r.calls, d.State()
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Tick(0.1))
	}
	assert.Equal(t, pushed, rec.pushed)
	assert.Equal(t, renders, r.calls)
	assert.Equal(t, st, d.State())
	assert.Equal(t, 1, rec.stops)
}

func TestTickWhileIdleIsNoop(t *testing.T) {
	rec := &fakeRecorder{}
	r := &fakeRenderer{}
	d := NewDriver(anim(5, config.Right), r, rec)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Tick(1.0/60))
	}
	assert.Equal(t, Idle, d.Phase())
	assert.Equal(t, 0, r.calls)
	assert.Equal(t, 0, rec.begins)
	assert.Equal(t, State{}, d.State())
}

func TestBeginFailureStaysIdle(t *testing.T) {
	rec := &fakeRecorder{beginErr: errors.New("no encoder")}
	d := NewDriver(anim(5, config.Left), &fakeRenderer{}, rec)

	err := d.Load(&fakeModel{})
	require.Error(t, err)
	assert.Equal(t, Idle, d.Phase())
	require.NoError(t, d.Tick(1))
	assert.Equal(t, 0, rec.pushed)
}

func TestLoadTwice(t *testing.T) {
	d := NewDriver(anim(5, config.Left), &fakeRenderer{}, &fakeRecorder{})
	require.NoError(t, d.Load(&fakeModel{}))
	assert.ErrorIs(t, d.Load(&fakeModel{}), ErrAlreadyLoaded)
}

func TestInactiveRecorderGetsNoFrames(t *testing.T) {
	rec := &fakeRecorder{inactive: true}
	r := &fakeRenderer{}
	d := NewDriver(anim(10, config.Right), r, rec)
	require.NoError(t, d.Load(&fakeModel{}))

	for i := 0; i < 100; i++ {
		require.NoError(t, d.Tick(0.1))
	}
	// rotation keeps going, nothing is captured and nothing stops
	assert.Equal(t, 0, rec.pushed)
	assert.Equal(t, 0, rec.stops)
	assert.Equal(t, 100, r.calls)
	assert.Equal(t, Recording, d.Phase())
}

func TestRenderErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	rec := &fakeRecorder{}
	d := NewDriver(anim(5, config.Right), &fakeRenderer{err: boom}, rec)
	require.NoError(t, d.Load(&fakeModel{}))

	assert.ErrorIs(t, d.Tick(0.1), boom)
	assert.Equal(t, 0, rec.pushed)
}

func TestNegativeDtClamps(t *testing.T) {
	d := NewDriver(anim(5, config.Right), &fakeRenderer{}, &fakeRecorder{})
	require.NoError(t, d.Load(&fakeModel{}))
	require.NoError(t, d.Tick(-1))
	assert.Equal(t, InitialRotation, d.State().Rotation)
	assert.Equal(t, 0.0, d.State().Elapsed)
}

func TestCloseAbortsRecording(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDriver(anim(5, config.Right), &fakeRenderer{}, rec)
	require.NoError(t, d.Load(&fakeModel{}))
	require.NoError(t, d.Tick(0.1))

	require.NoError(t, d.Close())
	assert.Equal(t, Stopped, d.Phase())
	assert.Equal(t, 1, rec.aborts)
	assert.Equal(t, 0, rec.stops)

	require.NoError(t, d.Close())
	assert.Equal(t, 1, rec.aborts)
}

func TestCloseAfterStopDoesNotAbort(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDriver(anim(10, config.Left), &fakeRenderer{}, rec)
	require.NoError(t, d.Load(&fakeModel{}))
	runToStop(t, d, 0.5, config.Left)

	require.NoError(t, d.Close())
	assert.Equal(t, 0, rec.aborts)
}

func TestProgressCallbackIsForwarded(t *testing.T) {
	rec := &fakeRecorder{}
	var got []float64
	d := NewDriver(anim(5, config.Right), &fakeRenderer{}, rec, WithProgress(func(f float64) { got = append(got, f) }))
	require.NoError(t, d.Load(&fakeModel{}))

	rec.onProg(0.42)
	assert.Equal(t, []float64{0.42}, got)
	assert.Equal(t, config.WebM, rec.format)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "recording", Recording.String())
	assert.Equal(t, "stopped", Stopped.String())
}
