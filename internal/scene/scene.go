// Package scene holds the loaded model: parts with their materials and the
// single mutable property the turntable animates, the rotation about Y.
package scene

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/unixpickle/model3d/model3d"
)

// Material is a Phong-like surface description as found in VRML files.
type Material struct {
	Name      string
	Diffuse   colorful.Color
	Specular  colorful.Color
	Shininess float64
}

// DefaultMaterial mirrors the VRML Material node defaults.
func DefaultMaterial() *Material {
	return &Material{
		Name:      "default",
		Diffuse:   colorful.Color{R: 0.8, G: 0.8, B: 0.8},
		Specular:  colorful.Color{},
		Shininess: 0.2,
	}
}

// Part is one mesh drawn with one material.
type Part struct {
	Name     string
	Mesh     *model3d.Mesh
	Material *Material
}

// Scene is the object graph handed to the renderer.
type Scene struct {
	Name  string
	Parts []*Part

	rotationY float64
}

func New(name string) *Scene {
	return &Scene{Name: name}
}

// AddPart appends a part; empty meshes are dropped.
func (s *Scene) AddPart(p *Part) {
	if p == nil || p.Mesh == nil || len(p.Mesh.TriangleSlice()) == 0 {
		return
	}
	if p.Material == nil {
		p.Material = DefaultMaterial()
	}
	s.Parts = append(s.Parts, p)
}

// SetRotationY sets the model orientation about the vertical axis, in radians.
func (s *Scene) SetRotationY(rad float64) {
	s.rotationY = rad
}

func (s *Scene) RotationY() float64 {
	return s.rotationY
}

// Traverse calls fn for every part in order.
func (s *Scene) Traverse(fn func(*Part)) {
	for _, p := range s.Parts {
		fn(p)
	}
}

// Materials returns every distinct material once, in first-use order.
func (s *Scene) Materials() []*Material {
	seen := make(map[*Material]bool)
	var out []*Material
	s.Traverse(func(p *Part) {
		if !seen[p.Material] {
			seen[p.Material] = true
			out = append(out, p.Material)
		}
	})
	return out
}

func (s *Scene) TriangleCount() int {
	n := 0
	s.Traverse(func(p *Part) {
		n += len(p.Mesh.TriangleSlice())
	})
	return n
}

// Empty reports whether the scene has nothing to draw.
func (s *Scene) Empty() bool {
	return len(s.Parts) == 0
}

// Bounds returns the axis-aligned bounding box of all parts.
func (s *Scene) Bounds() (min, max model3d.Coord3D) {
	min = model3d.XYZ(math.Inf(1), math.Inf(1), math.Inf(1))
	max = model3d.XYZ(math.Inf(-1), math.Inf(-1), math.Inf(-1))
	s.Traverse(func(p *Part) {
		min = min.Min(p.Mesh.Min())
		max = max.Max(p.Mesh.Max())
	})
	return min, max
}

// Center returns the middle of the bounding box.
func (s *Scene) Center() model3d.Coord3D {
	min, max := s.Bounds()
	return min.Add(max).Scale(0.5)
}

// Radius returns the radius of the sphere around Center enclosing the bounding box.
func (s *Scene) Radius() float64 {
	min, max := s.Bounds()
	return max.Dist(min) / 2
}
