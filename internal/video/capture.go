// Package video captures rendered frames and exports them as a webm video
// (through ffmpeg) or as a looping GIF.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ivlev/turntable/internal/config"
	"github.com/ivlev/turntable/internal/system"
)

var (
	ErrBusy      = errors.New("recorder: capture already in progress")
	ErrNotActive = errors.New("recorder: not capturing")
	ErrAborted   = errors.New("recorder: capture aborted")
)

// Recorder is the frame capture contract the turntable driver talks to.
// onComplete is called exactly once for every successful Begin, whether the
// export succeeded, failed or was aborted; Err tells which.
type Recorder interface {
	Begin(format config.Format, onProgress func(float64), onComplete func()) error
	IsActive() bool
	PushFrame(frame image.Image) error
	Stop() error
	Abort() error
	Err() error
}

type Options struct {
	Width   int
	Height  int
	FPS     int
	Output  string
	Encoder string
	Quality int
	Workers int
	// GIFScale downsizes GIF frames; 0 or 1 keeps the render size.
	GIFScale   float64
	FFmpegPath string
	Pool       *system.ImagePool
	Log        zerolog.Logger
}

type sink interface {
	push(img image.Image) error
	finish(ctx context.Context, frames int, progress func(float64)) error
	abort()
}

// Capture records one export at a time.
type Capture struct {
	opts Options

	mu         sync.Mutex
	active     bool
	exporting  bool
	format     config.Format
	sink       sink
	path       string
	frames     int
	started    time.Time
	progress   *progressReporter
	onComplete func()
	completed  bool
	done       chan struct{}
	err        error
	cancel     context.CancelFunc

	framesPushed metric.Int64Counter
	exports      metric.Int64Counter
	exportTime   metric.Float64Histogram
}

func NewCapture(opts Options) (*Capture, error) {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Encoder == "" {
		opts.Encoder = "libvpx-vp9"
	}
	if opts.Pool == nil {
		opts.Pool = system.NewImagePool()
	}
	c := &Capture{opts: opts, done: make(chan struct{})}
	close(c.done)

	m := meter()
	var err error
	c.framesPushed, err = m.Int64Counter(
		"recorder.frames.pushed",
		metric.WithDescription("Frames handed to the recorder"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	c.exports, err = m.Int64Counter(
		"recorder.exports.completed",
		metric.WithDescription("Exports finished, by format and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating exports counter: %w", err)
	}
	c.exportTime, err = m.Float64Histogram(
		"recorder.export.duration",
		metric.WithDescription("Time from Stop to a finished export"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating export duration histogram: %w", err)
	}
	return c, nil
}

// OutputPath returns path with its extension replaced to match format.
func OutputPath(path string, format config.Format) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, format.Ext()) {
		return path
	}
	return strings.TrimSuffix(path, ext) + format.Ext()
}

func (c *Capture) Begin(format config.Format, onProgress func(float64), onComplete func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active || c.exporting {
		return ErrBusy
	}

	path := OutputPath(c.opts.Output, format)
	var s sink
	switch format {
	case config.WebM:
		fs, err := startFFmpeg(c.opts, path)
		if err != nil {
			return err
		}
		s = fs
	case config.GIF:
		s = newGIFSink(c.opts, path)
	default:
		return fmt.Errorf("recorder: unsupported format %q", format)
	}

	if onProgress == nil {
		onProgress = func(float64) {}
	}
	if onComplete == nil {
		onComplete = func() {}
	}
	c.active = true
	c.format = format
	c.sink = s
	c.path = path
	c.frames = 0
	c.started = time.Time{}
	c.err = nil
	c.progress = &progressReporter{fn: onProgress}
	c.onComplete = onComplete
	c.completed = false
	c.done = make(chan struct{})
	c.opts.Log.Debug().Str("format", string(format)).Str("output", path).Msg("capture started")
	return nil
}

func (c *Capture) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Capture) PushFrame(frame image.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return ErrNotActive
	}
	if err := c.sink.push(frame); err != nil {
		return err
	}
	c.frames++
	c.framesPushed.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("format", string(c.format))))
	return nil
}

// Stop ends capturing and exports in the background.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return ErrNotActive
	}
	c.active = false
	c.exporting = true
	c.started = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	s, frames, progress := c.sink, c.frames, c.progress
	go func() {
		defer cancel()
		err := s.finish(ctx, frames, progress.report)
		if err == nil {
			progress.report(1)
		}
		c.complete(err)
	}()
	return nil
}

// Abort drops the capture, or cancels an export in progress, without
// leaving a file behind.
func (c *Capture) Abort() error {
	c.mu.Lock()
	switch {
	case c.active:
		c.active = false
		s := c.sink
		c.mu.Unlock()
		s.abort()
		c.complete(ErrAborted)
		return nil
	case c.exporting:
		cancel := c.cancel
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.mu.Unlock()
	return nil
}

// progressReporter forwards export progress, clamped to [0, 1] and never
// decreasing. Sinks may report from several goroutines.
type progressReporter struct {
	mu   sync.Mutex
	last float64
	fn   func(float64)
}

func (p *progressReporter) report(frac float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frac = min(max(frac, 0), 1)
	if frac < p.last {
		return
	}
	p.last = frac
	p.fn(frac)
}

func (c *Capture) complete(err error) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	c.completed = true
	c.exporting = false
	c.err = err
	onComplete, format, started, path := c.onComplete, c.format, c.started, c.path
	done := c.done
	c.mu.Unlock()

	status := "ok"
	switch {
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		status = "aborted"
	case err != nil:
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("format", string(format)),
		attribute.String("status", status),
	)
	c.exports.Add(context.Background(), 1, attrs)
	if !started.IsZero() {
		c.exportTime.Record(context.Background(), time.Since(started).Seconds(), attrs)
	}

	ev := c.opts.Log.Info()
	if err != nil {
		ev = c.opts.Log.Warn().Err(err)
	}
	ev.Str("output", path).Str("status", status).Msg("export finished")

	onComplete()
	close(done)
}

// Err returns the outcome of the last export once it has completed.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the current export has completed.
func (c *Capture) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Output returns the file the last Begin writes to.
func (c *Capture) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Frames returns how many frames the current capture holds.
func (c *Capture) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}
