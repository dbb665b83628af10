package render

import (
	"github.com/taigrr/softrast/pkg/math3d"
)

// Plane is Normal·p + D = 0, with the normal pointing into the frustum.
type Plane struct {
	Normal math3d.Vec3
	D      float64
}

// Normalize scales the plane so the normal has unit length.
func (p *Plane) Normalize() {
	l := p.Normal.Len()
	if l < math3d.Epsilon {
		return
	}
	p.Normal = p.Normal.Scale(1 / l)
	p.D /= l
}

// DistanceToPoint returns the signed distance from the plane to a point.
// Positive = inside (same side as normal).
func (p Plane) DistanceToPoint(point math3d.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Frustum holds the six inward-facing planes of a view volume.
type Frustum struct {
	Planes [6]Plane
}

// Plane indices.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// NewFrustumFromMatrix extracts the planes of a view-projection matrix
// built with math3d.Perspective (Gribb/Hartmann). That projection leaves
// W negative in front of the eye and maps depth to [0,1], so the rows are
// negated first and the depth planes are z ≥ 0 (far) and w - z ≥ 0 (near).
func NewFrustumFromMatrix(m math3d.Mat4) Frustum {
	// row(i) of -m, for column-major storage
	row := func(i int) (math3d.Vec3, float64) {
		return math3d.V3(-m[i], -m[i+4], -m[i+8]), -m[i+12]
	}
	x, xd := row(0)
	y, yd := row(1)
	z, zd := row(2)
	w, wd := row(3)

	var f Frustum
	f.Planes[FrustumLeft] = Plane{Normal: w.Add(x), D: wd + xd}
	f.Planes[FrustumRight] = Plane{Normal: w.Sub(x), D: wd - xd}
	f.Planes[FrustumBottom] = Plane{Normal: w.Add(y), D: wd + yd}
	f.Planes[FrustumTop] = Plane{Normal: w.Sub(y), D: wd - yd}
	f.Planes[FrustumNear] = Plane{Normal: w.Sub(z), D: wd - zd}
	f.Planes[FrustumFar] = Plane{Normal: z, D: zd}

	for i := range f.Planes {
		f.Planes[i].Normalize()
	}
	return f
}

// Frustum returns the camera's current view frustum.
func (c *Camera) Frustum() Frustum {
	return NewFrustumFromMatrix(c.ViewProjectionMatrix())
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min math3d.Vec3
	Max math3d.Vec3
}

// Center returns the center of the AABB.
func (b AABB) Center() math3d.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Radius returns half the diagonal length.
func (b AABB) Radius() float64 {
	return b.Max.Sub(b.Min).Len() / 2
}

// Union returns the smallest box containing both.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// ContainsPoint tests whether p lies in the frustum.
func (f Frustum) ContainsPoint(p math3d.Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

// IntersectAABB reports whether any part of box may be inside the
// frustum. For each plane it tests the corner furthest along the normal.
func (f Frustum) IntersectAABB(box AABB) bool {
	for i := range f.Planes {
		plane := f.Planes[i]
		p := math3d.V3(
			selectComponent(plane.Normal.X >= 0, box.Max.X, box.Min.X),
			selectComponent(plane.Normal.Y >= 0, box.Max.Y, box.Min.Y),
			selectComponent(plane.Normal.Z >= 0, box.Max.Z, box.Min.Z),
		)
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

func selectComponent(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
