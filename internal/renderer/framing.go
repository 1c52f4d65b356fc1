package renderer

import (
	"image"
	"image/color"
)

// Framing describes where the model landed in a frame.
type Framing struct {
	Bounds  image.Rectangle // lit pixels; empty when nothing was drawn
	Clipped bool            // the model touches the frame border
}

// Visible reports whether any part of the model was drawn.
func (f Framing) Visible() bool {
	return !f.Bounds.Empty()
}

// DefaultLitThreshold is the grey level above which a pixel counts as model
// rather than background.
const DefaultLitThreshold = 8

// Analyze finds the bounding box of pixels brighter than threshold on the
// black background.
func Analyze(img image.Image, threshold uint8) Framing {
	bounds := img.Bounds()
	box := image.Rectangle{}
	found := false

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y <= threshold {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if !found {
				box, found = px, true
			} else {
				box = box.Union(px)
			}
		}
	}

	f := Framing{Bounds: box}
	if found {
		f.Clipped = box.Min.X == bounds.Min.X || box.Min.Y == bounds.Min.Y ||
			box.Max.X == bounds.Max.X || box.Max.Y == bounds.Max.Y
	}
	return f
}
