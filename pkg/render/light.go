package render

import (
	"math"

	"github.com/taigrr/softrast/pkg/math3d"
)

// Light is a point light.
type Light struct {
	Position  math3d.Vec3
	Intensity float64
}

// Matrix returns the light-space transform: a view from the light towards
// center followed by an orthographic box of half-size r = |Position-center|
// + margin, reaching 2r deep. Depths follow the camera convention, 1 at the
// light and 0 at the far face.
//
// If up is parallel to the light direction another axis is used instead.
func (l Light) Matrix(center, up math3d.Vec3, margin float64) math3d.Mat4 {
	dir := l.Position.Sub(center)
	r := dir.Len() + margin

	if dir.Normalize().Cross(up).Len() < 1e-6 {
		up = math3d.V3(0, 0, 1)
		if math.Abs(dir.Normalize().Z) > 0.9 {
			up = math3d.V3(1, 0, 0)
		}
	}

	view := math3d.LookAt(l.Position, center, up)
	ortho := math3d.Orthographic(-r, r, -r, r, 0, -2*r)
	return ortho.Mul(view)
}
