package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ffmpegSink пишет кадры в stdin ffmpeg как rawvideo и собирает webm.
type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc
	path   string
	width  int
	height int
	stderr bytes.Buffer

	mu       sync.Mutex
	total    int
	progress func(float64)
	readDone chan struct{}
}

func buildFFmpegArgs(width, height, fps int, outputPath, encoderName string, quality int) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.Itoa(fps),
		"-i", "-",
		"-an",
		"-c:v", encoderName,
	}

	// Качество в зависимости от энкодера
	switch encoderName {
	case "vp9_qsv":
		args = append(args, "-global_quality", strconv.Itoa(quality))
	default: // libvpx-vp9: constant quality режим требует -b:v 0
		args = append(args, "-crf", strconv.Itoa(quality), "-b:v", "0", "-row-mt", "1")
	}

	args = append(args,
		"-pix_fmt", "yuv420p",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	)
	return args
}

func startFFmpeg(opts Options, path string) (*ffmpegSink, error) {
	ctx, cancel := context.WithCancel(context.Background())
	args := buildFFmpegArgs(opts.Width, opts.Height, opts.FPS, path, opts.Encoder, opts.Quality)
	s := &ffmpegSink{
		cmd:      exec.CommandContext(ctx, opts.FFmpegPath, args...),
		cancel:   cancel,
		path:     path,
		width:    opts.Width,
		height:   opts.Height,
		readDone: make(chan struct{}),
	}
	s.cmd.Stderr = &s.stderr

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	s.stdin = stdin

	if err := s.cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	go s.readProgress(stdout)
	return s, nil
}

// readProgress читает блоки -progress; пока экспорт не запрошен, номера
// кадров только пропускаются.
func (s *ffmpegSink) readProgress(r io.Reader) {
	defer close(s.readDone)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		n, ok := parseProgressFrame(sc.Text())
		if !ok {
			continue
		}
		s.mu.Lock()
		total, progress := s.total, s.progress
		s.mu.Unlock()
		if total > 0 && progress != nil {
			progress(float64(n) / float64(total))
		}
	}
}

func parseProgressFrame(line string) (int, bool) {
	v, ok := strings.CutPrefix(strings.TrimSpace(line), "frame=")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *ffmpegSink) push(img image.Image) error {
	if b := img.Bounds(); b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("frame size %dx%d, stream is %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	return nil
}

func (s *ffmpegSink) finish(ctx context.Context, frames int, progress func(float64)) error {
	s.mu.Lock()
	s.total = frames
	s.progress = progress
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer s.cancel()

	s.stdin.Close()
	<-s.readDone
	if err := s.cmd.Wait(); err != nil {
		os.Remove(s.path)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		}
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

func (s *ffmpegSink) abort() {
	s.cancel()
	s.stdin.Close()
	<-s.readDone
	s.cmd.Wait()
	os.Remove(s.path)
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	// Проверяем, является ли изображение уже RGBA и имеет ли стандартный шаг (stride)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
