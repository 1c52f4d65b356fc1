package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ivlev/turntable/internal/scene"
	"github.com/ivlev/turntable/internal/vrml"
)

var (
	// ErrReadAborted means the read was cancelled before the file was fully read.
	ErrReadAborted = errors.New("model read aborted")
	// ErrReadFailed covers open, read and parse failures.
	ErrReadFailed        = errors.New("model read failed")
	ErrUnsupportedFormat = errors.New("unsupported model format")
)

// Provider loads a model file into a scene.
type Provider interface {
	Load(ctx context.Context, path string) (*scene.Scene, error)
}

// readChunk bounds how much is read between cancellation checks.
const readChunk = 256 << 10

// FileProvider reads models from the local filesystem.
type FileProvider struct {
	// STLZUp rotates STL files from Z-up (CAD convention) to Y-up.
	STLZUp bool
	Log    zerolog.Logger
}

func NewFileProvider(stlZUp bool, log zerolog.Logger) *FileProvider {
	return &FileProvider{STLZUp: stlZUp, Log: log}
}

// Extensions lists the model file types Load understands.
func Extensions() []string {
	return []string{".wrl", ".vrml", ".stl"}
}

// Supported reports whether path has a known model extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

func (p *FileProvider) Load(ctx context.Context, path string) (*scene.Scene, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var s *scene.Scene
	switch ext {
	case ".stl":
		s, err = parseSTL(name, bytes.NewReader(data), p.STLZUp)
	default:
		var stats vrml.Stats
		s, stats, err = vrml.Parse(name, data)
		if err == nil {
			p.Log.Debug().Str("file", path).Stringer("stats", stats).Msg("vrml parsed")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, path, err)
	}
	if s.Empty() {
		return nil, fmt.Errorf("%w: %s: no drawable geometry", ErrReadFailed, path)
	}

	p.Log.Info().
		Str("file", path).
		Int("parts", len(s.Parts)).
		Int("triangles", s.TriangleCount()).
		Int("materials", len(s.Materials())).
		Msg("model loaded")
	return s, nil
}

// readFile reads the whole file, giving up between chunks if ctx is done.
func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadAborted, path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if fi, err := f.Stat(); err == nil {
		buf.Grow(int(fi.Size()))
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrReadAborted, path, err)
		}
		_, err := io.CopyN(&buf, f, readChunk)
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, path, err)
		}
	}
}
