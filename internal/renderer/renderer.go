// Package renderer draws a scene from a fixed viewpoint with the render3d ray
// caster.
package renderer

import (
	"errors"
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/unixpickle/model3d/model3d"
	"github.com/unixpickle/model3d/render3d"

	"github.com/ivlev/turntable/internal/scene"
)

const (
	// FieldOfView is the vertical camera angle in degrees.
	FieldOfView = 60.0

	// frameMargin leaves some room around the bounding sphere.
	frameMargin = 1.1
)

var (
	// camera and key light directions, relative to the model centre
	cameraDir   = model3d.XYZ(-40, 5, 10)
	keyLightDir = model3d.XYZ(-1, 1.75, 1)
)

var ErrEmptyScene = errors.New("renderer: scene has no parts")

// View is the camera placement for one frame.
type View struct {
	Eye    model3d.Coord3D
	Target model3d.Coord3D
	Key    model3d.Coord3D
}

// Renderer draws the current rotation of a scene. The model's Y rotation is
// drawn by orbiting camera and lights the opposite way around the centre,
// so meshes are built once.
type Renderer struct {
	scene  *scene.Scene
	object render3d.Object
	width  int
	height int

	center   model3d.Coord3D
	distance float64

	img   *render3d.Image
	frame *image.RGBA
}

func New(s *scene.Scene, width, height int) (*Renderer, error) {
	if s.Empty() {
		return nil, ErrEmptyScene
	}
	r := &Renderer{
		scene:  s,
		width:  width,
		height: height,
		center: s.Center(),
		img:    render3d.NewImage(width, height),
	}
	r.distance = FitDistance(s.Radius(), width, height)

	var objs render3d.JoinedObject
	for _, p := range s.Parts {
		objs = append(objs, partObject(p))
	}
	r.object = objs
	return r, nil
}

// FitDistance returns how far the camera must be for a sphere of the given
// radius to fit the narrower side of the frame.
func FitDistance(radius float64, width, height int) float64 {
	if radius <= 0 {
		radius = 1
	}
	half := FieldOfView * math.Pi / 360
	if width < height {
		// horizontal angle is the narrower one
		half = math.Atan(math.Tan(half) * float64(width) / float64(height))
	}
	return frameMargin * radius / math.Sin(half)
}

// partObject reads the material at shading time so colour fixes applied
// after construction are still picked up.
func partObject(p *scene.Part) render3d.Object {
	mat := p.Material
	collider := model3d.MeshToCollider(p.Mesh)
	return render3d.Objectify(collider, func(model3d.Coord3D, model3d.RayCollision) render3d.Color {
		return colorOf(mat.Diffuse)
	})
}

func colorOf(c colorful.Color) render3d.Color {
	c = c.Clamped()
	return render3d.NewColorRGB(c.R, c.G, c.B)
}

// rotateY turns v by angle radians about the vertical axis.
func rotateY(v model3d.Coord3D, angle float64) model3d.Coord3D {
	s, c := math.Sin(angle), math.Cos(angle)
	return model3d.XYZ(c*v.X+s*v.Z, v.Y, -s*v.X+c*v.Z)
}

// ViewAt returns where camera and key light sit for a model rotated by
// rotation radians about Y.
func (r *Renderer) ViewAt(rotation float64) View {
	eye := rotateY(cameraDir.Normalize(), -rotation).Scale(r.distance)
	key := rotateY(keyLightDir.Normalize(), -rotation).Scale(r.distance * 10)
	return View{
		Eye:    r.center.Add(eye),
		Target: r.center,
		Key:    r.center.Add(key),
	}
}

// Render draws the scene at its current rotation. The returned image is
// reused by the next call.
func (r *Renderer) Render() (image.Image, error) {
	v := r.ViewAt(r.scene.RotationY())
	caster := &render3d.RayCaster{
		Camera: render3d.NewCameraAt(v.Eye, v.Target, FieldOfView*math.Pi/180),
		Lights: []*render3d.PointLight{
			{Origin: v.Key, Color: render3d.NewColor(0.8)},
			{Origin: v.Eye, Color: render3d.NewColor(0.4)},
		},
	}
	caster.Render(r.img, r.object)
	r.frame = r.img.RGBA()
	return r.frame, nil
}

// Frame returns the last rendered frame, or nil before the first Render.
func (r *Renderer) Frame() image.Image {
	if r.frame == nil {
		return nil
	}
	return r.frame
}

func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}
