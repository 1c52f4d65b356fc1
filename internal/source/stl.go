package source

import (
	"io"

	"github.com/unixpickle/model3d/model3d"

	"github.com/ivlev/turntable/internal/scene"
)

// parseSTL reads an ASCII or binary STL file as a single grey part.
func parseSTL(name string, r io.Reader, zUp bool) (*scene.Scene, error) {
	tris, err := model3d.ReadSTL(r)
	if err != nil {
		return nil, err
	}
	mesh := model3d.NewMeshTriangles(tris)
	if zUp {
		// (x, y, z) -> (x, z, -y)
		mesh = mesh.MapCoords(func(c model3d.Coord3D) model3d.Coord3D {
			return model3d.XYZ(c.X, c.Z, -c.Y)
		})
	}
	s := scene.New(name)
	mat := scene.DefaultMaterial()
	mat.Name = "stl"
	s.AddPart(&scene.Part{Name: name, Mesh: mesh, Material: mat})
	return s, nil
}
