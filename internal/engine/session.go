package engine

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/turntable/internal/config"
	"github.com/ivlev/turntable/internal/notify"
	"github.com/ivlev/turntable/internal/renderer"
	"github.com/ivlev/turntable/internal/report"
	"github.com/ivlev/turntable/internal/scene"
	"github.com/ivlev/turntable/internal/source"
	"github.com/ivlev/turntable/internal/system"
	"github.com/ivlev/turntable/internal/turntable"
	"github.com/ivlev/turntable/internal/video"
)

// Recorder is what a session needs from the frame recorder on top of the
// driver's contract.
type Recorder interface {
	turntable.Recorder
	Abort() error
	Err() error
}

// RendererFunc builds the renderer for a loaded scene.
type RendererFunc func(s *scene.Scene, width, height int) (turntable.Renderer, error)

func defaultRenderer(s *scene.Scene, width, height int) (turntable.Renderer, error) {
	return renderer.New(s, width, height)
}

// Session owns one turntable run: model, renderer, driver and recorder.
type Session struct {
	Config      *config.Config
	Provider    source.Provider
	Recorder    Recorder
	Notifier    notify.Notifier
	Fixer       *scene.ColorFixer
	NewRenderer RendererFunc
	Log         zerolog.Logger
}

func NewSession(cfg *config.Config, p source.Provider, rec Recorder, n notify.Notifier, log zerolog.Logger) *Session {
	return &Session{
		Config:      cfg,
		Provider:    p,
		Recorder:    rec,
		Notifier:    n,
		Fixer:       scene.DefaultColorFixer(),
		NewRenderer: defaultRenderer,
		Log:         log,
	}
}

// Run loads the model, spins it until the stop angle and waits for the
// export. The returned report is non-nil whenever the model was requested,
// even on failure.
func (p *Session) Run(ctx context.Context) (*report.Report, error) {
	startTime := time.Now()
	cfg := p.Config
	anim := cfg.Animation

	rep := &report.Report{
		Version:   cfg.BuildVersion,
		Model:     anim.ModelPath,
		Output:    video.OutputPath(cfg.OutputPath, anim.Format),
		Format:    string(anim.Format),
		Speed:     anim.Speed,
		Direction: string(anim.Direction),
	}
	fail := func(err error) (*report.Report, error) {
		rep.Error = err.Error()
		rep.WallSeconds = time.Since(startTime).Seconds()
		p.Notifier.Complete(notify.Result{Output: rep.Output, Err: err})
		p.finishReport(rep, startTime)
		return rep, err
	}

	// Ошибка чтения модели: анимация не запускается, запись не начинается.
	model, err := p.Provider.Load(ctx, anim.ModelPath)
	if err != nil {
		p.Log.Error().Err(err).Str("model", anim.ModelPath).Msg("model load failed")
		return fail(err)
	}

	if anim.FixColors && p.Fixer != nil {
		rep.ColorsFixed = p.Fixer.Apply(model)
		p.Log.Info().Int("materials", rep.ColorsFixed).Msg("colours fixed")
	}

	newRenderer := p.NewRenderer
	if newRenderer == nil {
		newRenderer = defaultRenderer
	}
	r, err := newRenderer(model, cfg.Width, cfg.Height)
	if err != nil {
		return fail(fmt.Errorf("renderer: %w", err))
	}

	r = &framingCheck{Renderer: r, log: p.Log}

	completed := make(chan struct{}, 1)
	driver := turntable.NewDriver(anim, r, p.Recorder,
		turntable.WithProgress(p.Notifier.Progress),
		turntable.WithComplete(func() { completed <- struct{}{} }),
		turntable.WithLogger(p.Log),
	)
	if err := driver.Load(model); err != nil {
		return fail(fmt.Errorf("recorder: %w", err))
	}
	p.Notifier.Start()

	var tickErr error
	handle := p.ticker().Start(func(dt float64) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := driver.Tick(dt); err != nil {
			tickErr = err
			return false
		}
		return driver.Phase() == turntable.Recording
	})

	select {
	case <-handle.Done():
	case <-ctx.Done():
		handle.Cancel()
		<-handle.Done()
	}

	st := driver.State()
	rep.Frames = st.Frames
	rep.Rotation = st.Rotation
	rep.SimulatedSeconds = st.Elapsed

	// Запись не дошла до угла остановки: отменяем без артефакта.
	wasRecording := driver.Phase() == turntable.Recording
	stoppedCleanly := !wasRecording && tickErr == nil
	if err := driver.Close(); err != nil {
		p.Log.Warn().Err(err).Msg("recorder abort failed")
	}
	if wasRecording || stoppedCleanly {
		p.waitExport(ctx, completed)
	}

	runErr := tickErr
	if runErr == nil && wasRecording {
		runErr = ctx.Err()
	}
	if runErr == nil {
		runErr = p.Recorder.Err()
	}
	if runErr != nil {
		return fail(runErr)
	}

	rep.WallSeconds = time.Since(startTime).Seconds()
	p.Notifier.Complete(notify.Result{Output: rep.Output, Frames: rep.Frames})
	p.finishReport(rep, startTime)
	return rep, nil
}

// framingCheck warns once if the first frame shows no model or cuts it off.
type framingCheck struct {
	turntable.Renderer
	log     zerolog.Logger
	checked bool
}

func (c *framingCheck) Render() (image.Image, error) {
	img, err := c.Renderer.Render()
	if err != nil || c.checked {
		return img, err
	}
	c.checked = true
	f := renderer.Analyze(img, renderer.DefaultLitThreshold)
	switch {
	case !f.Visible():
		c.log.Warn().Msg("first frame is empty, model is not in view")
	case f.Clipped:
		c.log.Warn().Str("bounds", f.Bounds.String()).Msg("model touches the frame border")
	}
	return img, nil
}

func (p *Session) ticker() turntable.Ticker {
	fps := p.Config.FPS
	if p.Config.Realtime {
		return turntable.Ticker{
			Interval: time.Second / time.Duration(fps),
			Clock:    turntable.NewWallClock(),
		}
	}
	return turntable.Ticker{Clock: turntable.FixedClock{Step: 1 / float64(fps)}}
}

// waitExport blocks until the recorder reports completion. Cancelling ctx
// aborts a running export; completion still follows.
func (p *Session) waitExport(ctx context.Context, completed <-chan struct{}) {
	select {
	case <-completed:
		return
	case <-ctx.Done():
	}
	if err := p.Recorder.Abort(); err != nil {
		p.Log.Warn().Err(err).Msg("export abort failed")
	}
	<-completed
}

func (p *Session) finishReport(rep *report.Report, startTime time.Time) {
	if p.Config.ShowStats {
		st := system.CollectStats(startTime, rep.Frames)
		rep.Stats = &st
		p.Log.Info().
			Str("build", p.Config.BuildVersion).
			Float64("total", st.WallSeconds).
			Float64("fps", st.EffectiveFPS).
			Float64("cpu", st.CPUPercent).
			Uint64("rss", st.RSSBytes).
			Msg("performance report")
	}
	if p.Config.ReportPath == "" {
		return
	}
	if err := report.Write(rep, p.Config.ReportPath); err != nil {
		p.Log.Warn().Err(err).Str("path", p.Config.ReportPath).Msg("не удалось записать отчёт")
	}
}
