package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"math"
	"os"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/turntable/internal/system"
)

var ErrNoFrames = errors.New("no frames captured")

// gifSink keeps copies of every frame and encodes them on finish.
type gifSink struct {
	path    string
	rect    image.Rectangle
	delay   int
	workers int
	pool    *system.ImagePool
	frames  []*image.RGBA
}

func newGIFSink(opts Options, path string) *gifSink {
	scale := opts.GIFScale
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	w := max(1, int(math.Round(float64(opts.Width)*scale)))
	h := max(1, int(math.Round(float64(opts.Height)*scale)))
	return &gifSink{
		path:    path,
		rect:    image.Rect(0, 0, w, h),
		delay:   gifDelay(opts.FPS),
		workers: max(1, opts.Workers),
		pool:    opts.Pool,
	}
}

// gifDelay converts fps to the GIF frame delay in 1/100 s. Viewers slow
// delays below 2 down to 10, so 2 is the floor.
func gifDelay(fps int) int {
	if fps <= 0 {
		return 10
	}
	return max(2, int(math.Round(100/float64(fps))))
}

func (s *gifSink) push(img image.Image) error {
	dst := s.pool.Get(s.rect)
	if img.Bounds().Size() == s.rect.Size() {
		xdraw.Draw(dst, s.rect, img, img.Bounds().Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, s.rect, img, img.Bounds(), xdraw.Src, nil)
	}
	s.frames = append(s.frames, dst)
	return nil
}

func (s *gifSink) finish(ctx context.Context, _ int, progress func(float64)) error {
	defer s.release()
	n := len(s.frames)
	if n == 0 {
		return ErrNoFrames
	}

	paletted := make([]*image.Paletted, n)
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, frame := range s.frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := image.NewPaletted(s.rect, palette.Plan9)
			xdraw.FloydSteinberg.Draw(p, s.rect, frame, image.Point{})
			paletted[i] = p
			// квантование занимает почти всё время экспорта
			progress(0.95 * float64(done.Add(1)) / float64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	delays := make([]int, n)
	for i := range delays {
		delays[i] = s.delay
	}
	return writeGIF(s.path, &gif.GIF{Image: paletted, Delay: delays, LoopCount: 0})
}

func writeGIF(path string, anim *gif.GIF) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("gif encode error: %w", err)
	}
	return f.Close()
}

func (s *gifSink) abort() {
	s.release()
}

func (s *gifSink) release() {
	for _, f := range s.frames {
		s.pool.Put(f)
	}
	s.frames = nil
}
