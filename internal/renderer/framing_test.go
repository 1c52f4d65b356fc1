package renderer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.False(t, Analyze(img, DefaultLitThreshold).Visible())

	img.Set(3, 4, color.RGBA{200, 200, 200, 255})
	img.Set(6, 2, color.RGBA{0, 120, 0, 255})
	f := Analyze(img, DefaultLitThreshold)
	assert.True(t, f.Visible())
	assert.Equal(t, image.Rect(3, 2, 7, 5), f.Bounds)
	assert.False(t, f.Clipped)

	img.Set(9, 5, color.RGBA{255, 255, 255, 255})
	assert.True(t, Analyze(img, DefaultLitThreshold).Clipped)
}

func TestAnalyzeIgnoresDimNoise(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{5, 5, 5, 255})
	assert.False(t, Analyze(img, DefaultLitThreshold).Visible())
}
