package turntable

import (
	"errors"
	"image"
	"math"

	"github.com/rs/zerolog"

	"github.com/ivlev/turntable/internal/config"
)

const (
	// SpeedFactor converts the 1..10 speed setting into radians per second.
	SpeedFactor = 0.2

	RightStop = 3 * math.Pi / 2
	LeftStop  = -5 * math.Pi / 2

	// InitialRotation is the Y rotation applied to the model on load.
	InitialRotation = -math.Pi / 2
)

var (
	ErrAlreadyLoaded = errors.New("turntable: model already loaded")
	ErrNotRecording  = errors.New("turntable: not recording")
)

type Phase int

const (
	Idle Phase = iota
	Recording
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Model is anything that can be turned about its vertical axis.
type Model interface {
	SetRotationY(rad float64)
}

type Renderer interface {
	Render() (image.Image, error)
}

// Recorder captures frames and exports them once stopped. onComplete must be
// called exactly once per Begin.
type Recorder interface {
	Begin(format config.Format, onProgress func(float64), onComplete func()) error
	IsActive() bool
	PushFrame(frame image.Image) error
	Stop() error
}

// Aborter is implemented by recorders that can drop a capture without
// producing an artifact.
type Aborter interface {
	Abort() error
}

type State struct {
	Rotation  float64
	Elapsed   float64
	Recording bool
	Frames    int
}

// Step returns the rotation delta for one tick.
func Step(dt float64, speed int, dir config.Direction) float64 {
	return dt * float64(speed) * SpeedFactor * dir.Sign()
}

// ShouldStop reports whether a turn in dir has reached its end angle.
func ShouldStop(rotation float64, dir config.Direction) bool {
	if dir == config.Right {
		return rotation >= RightStop
	}
	return rotation <= LeftStop
}

func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

type Option func(*Driver)

func WithProgress(fn func(float64)) Option {
	return func(d *Driver) { d.onProgress = fn }
}

func WithComplete(fn func()) Option {
	return func(d *Driver) { d.onComplete = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver advances the turntable one tick at a time and feeds rendered frames
// to the recorder until the stop angle is crossed. It is not safe for
// concurrent use; a single ticker goroutine owns it.
type Driver struct {
	cfg      config.AnimationConfig
	renderer Renderer
	recorder Recorder

	onProgress func(float64)
	onComplete func()
	log        zerolog.Logger

	model Model
	phase Phase
	state State
}

func NewDriver(cfg config.AnimationConfig, r Renderer, rec Recorder, opts ...Option) *Driver {
	d := &Driver{
		cfg:        cfg,
		renderer:   r,
		recorder:   rec,
		onProgress: func(float64) {},
		onComplete: func() {},
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Load takes the freshly loaded model, turns it to the initial angle and
// starts recording. If the recorder refuses to begin the driver stays Idle.
func (d *Driver) Load(m Model) error {
	if d.model != nil || d.phase != Idle {
		return ErrAlreadyLoaded
	}
	d.state = State{Rotation: InitialRotation}
	m.SetRotationY(d.state.Rotation)

	if err := d.recorder.Begin(d.cfg.Format, d.onProgress, d.onComplete); err != nil {
		d.state = State{}
		return err
	}
	d.model = m
	d.phase = Recording
	d.state.Recording = true
	d.log.Debug().
		Str("direction", string(d.cfg.Direction)).
		Int("speed", d.cfg.Speed).
		Str("format", string(d.cfg.Format)).
		Msg("recording started")
	return nil
}

// Tick advances the animation by dt seconds. It is a no-op before Load and
// after the stop angle has been reached.
func (d *Driver) Tick(dt float64) error {
	if d.phase != Recording {
		return nil
	}
	if dt < 0 {
		dt = 0
	}
	d.state.Rotation += Step(dt, d.cfg.Speed, d.cfg.Direction)
	d.state.Elapsed += dt
	d.model.SetRotationY(d.state.Rotation)

	frame, err := d.renderer.Render()
	if err != nil {
		return err
	}
	if !d.recorder.IsActive() {
		return nil
	}
	if err := d.recorder.PushFrame(frame); err != nil {
		return err
	}
	d.state.Frames++

	if ShouldStop(d.state.Rotation, d.cfg.Direction) {
		d.phase = Stopped
		d.state.Recording = false
		d.log.Debug().
			Float64("rotation", d.state.Rotation).
			Int("frames", d.state.Frames).
			Float64("elapsed", d.state.Elapsed).
			Msg("stop angle reached")
		return d.recorder.Stop()
	}
	return nil
}

// Close ends the run. A capture still in progress is aborted.
func (d *Driver) Close() error {
	if d.phase != Recording {
		d.phase = Stopped
		return nil
	}
	d.phase = Stopped
	d.state.Recording = false
	if a, ok := d.recorder.(Aborter); ok {
		return a.Abort()
	}
	return nil
}

func (d *Driver) Phase() Phase {
	return d.phase
}

func (d *Driver) State() State {
	return d.state
}
