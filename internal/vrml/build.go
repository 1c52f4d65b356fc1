package vrml

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/unixpickle/model3d/model3d"

	"github.com/ivlev/turntable/internal/scene"
)

var ErrUnsupportedVersion = errors.New("vrml: only VRML 2.0 is supported")

// Stats counts what the builder saw but could not draw.
type Stats struct {
	Shapes            int
	SkippedGeometries int
	BadIndices        int
}

var groupingNodes = map[string]bool{
	"Transform": true,
	"Group":     true,
	"Collision": true,
	"Anchor":    true,
	"Billboard": true,
}

// Parse reads a VRML 2.0 document and flattens its shapes into a scene with
// every part in world coordinates.
func Parse(name string, src []byte) (*scene.Scene, Stats, error) {
	if bytes.HasPrefix(src, []byte("#VRML V1.0")) {
		return nil, Stats{}, ErrUnsupportedVersion
	}
	nodes, err := ParseNodes(src)
	if err != nil {
		return nil, Stats{}, err
	}
	b := &builder{
		scene:     scene.New(name),
		materials: make(map[*Node]*scene.Material),
	}
	for _, n := range nodes {
		b.visit(n, identity())
	}
	return b.scene, b.stats, nil
}

type builder struct {
	scene     *scene.Scene
	materials map[*Node]*scene.Material
	stats     Stats
}

func (b *builder) visit(n *Node, m affine) {
	switch {
	case n.Type == "Shape":
		b.shape(n, m)
	case n.Type == "Transform":
		b.children(n, m.mul(transformOf(n)))
	case groupingNodes[n.Type]:
		b.children(n, m)
	case n.Type == "Switch":
		choice := n.Field("choice")
		which := int(firstOr(n.Numbers("whichChoice"), -1))
		if choice != nil && which >= 0 && which < len(choice.Nodes) {
			b.visit(choice.Nodes[which], m)
		}
	case n.Type == "LOD":
		// highest detail level only
		if lvl := n.Field("level"); lvl != nil && len(lvl.Nodes) > 0 {
			b.visit(lvl.Nodes[0], m)
		}
	}
}

func (b *builder) children(n *Node, m affine) {
	v := n.Field("children")
	if v == nil {
		return
	}
	for _, c := range v.Nodes {
		b.visit(c, m)
	}
}

func (b *builder) shape(n *Node, m affine) {
	geom := n.Node("geometry")
	if geom == nil {
		return
	}
	if geom.Type != "IndexedFaceSet" {
		b.stats.SkippedGeometries++
		return
	}
	mesh := b.faceSet(geom, m)
	b.stats.Shapes++
	b.scene.AddPart(&scene.Part{
		Name:     n.Name,
		Mesh:     mesh,
		Material: b.material(n.Node("appearance").Node("material")),
	})
}

func (b *builder) material(n *Node) *scene.Material {
	if n == nil {
		return scene.DefaultMaterial()
	}
	if mat, ok := b.materials[n]; ok {
		return mat
	}
	mat := scene.DefaultMaterial()
	mat.Name = n.Name
	if c := n.Numbers("diffuseColor"); len(c) >= 3 {
		mat.Diffuse = colorful.Color{R: c[0], G: c[1], B: c[2]}
	}
	if c := n.Numbers("specularColor"); len(c) >= 3 {
		mat.Specular = colorful.Color{R: c[0], G: c[1], B: c[2]}
	}
	if s := n.Numbers("shininess"); len(s) > 0 {
		mat.Shininess = s[0]
	}
	b.materials[n] = mat
	return mat
}

func (b *builder) faceSet(n *Node, m affine) *model3d.Mesh {
	mesh := model3d.NewMesh()
	pts := n.Node("coord").Numbers("point")
	if len(pts) < 9 {
		return mesh
	}
	world := make([]model3d.Coord3D, len(pts)/3)
	for i := range world {
		world[i] = m.apply(model3d.XYZ(pts[3*i], pts[3*i+1], pts[3*i+2]))
	}
	ccw := n.Bool("ccw", true)

	var face []int
	flush := func() {
		for i := 1; i+1 < len(face); i++ {
			a, c1, c2 := face[0], face[i], face[i+1]
			if !ccw {
				c1, c2 = c2, c1
			}
			mesh.Add(&model3d.Triangle{world[a], world[c1], world[c2]})
		}
		face = face[:0]
	}
	for _, f := range n.Numbers("coordIndex") {
		idx := int(f)
		if idx < 0 {
			flush()
			continue
		}
		if idx >= len(world) {
			b.stats.BadIndices++
			continue
		}
		face = append(face, idx)
	}
	flush()
	return mesh
}

func firstOr(v []float64, def float64) float64 {
	if len(v) == 0 {
		return def
	}
	return v[0]
}

// affine is a 3x3 linear part plus a translation.
type affine struct {
	m [9]float64
	t model3d.Coord3D
}

func identity() affine {
	return affine{m: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

func (a affine) apply(c model3d.Coord3D) model3d.Coord3D {
	return model3d.XYZ(
		a.m[0]*c.X+a.m[1]*c.Y+a.m[2]*c.Z+a.t.X,
		a.m[3]*c.X+a.m[4]*c.Y+a.m[5]*c.Z+a.t.Y,
		a.m[6]*c.X+a.m[7]*c.Y+a.m[8]*c.Z+a.t.Z,
	)
}

// mul returns a*o, i.e. o applied first.
func (a affine) mul(o affine) affine {
	var r affine
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.m[3*i+j] = a.m[3*i]*o.m[j] + a.m[3*i+1]*o.m[3+j] + a.m[3*i+2]*o.m[6+j]
		}
	}
	r.t = a.apply(o.t)
	return r
}

func translation(v model3d.Coord3D) affine {
	a := identity()
	a.t = v
	return a
}

func scaling(s model3d.Coord3D) affine {
	return affine{m: [9]float64{s.X, 0, 0, 0, s.Y, 0, 0, 0, s.Z}}
}

// rotation builds an axis-angle rotation (Rodrigues).
func rotation(axis model3d.Coord3D, angle float64) affine {
	if axis.Norm() == 0 || angle == 0 {
		return identity()
	}
	u := axis.Normalize()
	c, s := math.Cos(angle), math.Sin(angle)
	k := 1 - c
	return affine{m: [9]float64{
		c + u.X*u.X*k, u.X*u.Y*k - u.Z*s, u.X*u.Z*k + u.Y*s,
		u.Y*u.X*k + u.Z*s, c + u.Y*u.Y*k, u.Y*u.Z*k - u.X*s,
		u.Z*u.X*k - u.Y*s, u.Z*u.Y*k + u.X*s, c + u.Z*u.Z*k,
	}}
}

func vec3(v []float64, def model3d.Coord3D) model3d.Coord3D {
	if len(v) < 3 {
		return def
	}
	return model3d.XYZ(v[0], v[1], v[2])
}

// transformOf returns T * C * R * S * -C for a Transform node.
// scaleOrientation is ignored.
func transformOf(n *Node) affine {
	t := vec3(n.Numbers("translation"), model3d.Coord3D{})
	c := vec3(n.Numbers("center"), model3d.Coord3D{})
	s := vec3(n.Numbers("scale"), model3d.XYZ(1, 1, 1))
	r := n.Numbers("rotation")
	rot := identity()
	if len(r) >= 4 {
		rot = rotation(model3d.XYZ(r[0], r[1], r[2]), r[3])
	}
	return translation(t).
		mul(translation(c)).
		mul(rot).
		mul(scaling(s)).
		mul(translation(c.Scale(-1)))
}

func (s Stats) String() string {
	return fmt.Sprintf("shapes=%d skipped=%d badIndices=%d", s.Shapes, s.SkippedGeometries, s.BadIndices)
}
