package render

import (
	"math"

	"github.com/taigrr/softrast/pkg/math3d"
)

// Shadow test parameters.
const (
	ShadowLit       = 1.0
	ShadowOccluded  = 0.3
	MinShadowBias   = 0.005
	SlopeShadowBias = 0.05
)

// ShadowMap is the depth of the nearest surface seen from a light.
type ShadowMap struct {
	Light  Light
	Matrix math3d.Mat4
	Depth  *DepthBuffer
}

// NewShadowMap allocates a width×height map for light aimed at center.
func NewShadowMap(width, height int, light Light, center, up math3d.Vec3, margin float64) *ShadowMap {
	return &ShadowMap{
		Light:  light,
		Matrix: light.Matrix(center, up, margin),
		Depth:  NewDepthBuffer(width, height),
	}
}

// Project maps a world point to light texel space: x and y in texels, z in
// light depth.
func (s *ShadowMap) Project(world math3d.Vec4) math3d.Vec3 {
	p := s.Matrix.MulVec4(world).PerspectiveDivide()
	return math3d.V3(
		(p.X+1)*float64(s.Depth.Width)*0.5,
		(p.Y+1)*float64(s.Depth.Height)*0.5,
		p.Z,
	)
}

// Rasterize records the triangle's depth as seen from the light, keeping
// the largest depth per texel. It returns the number of texels updated.
func (s *ShadowMap) Rasterize(tri *Triangle) int {
	var pts [3]math3d.Vec3
	for i := range pts {
		pts[i] = s.Project(tri.V[i].World)
	}

	minX, maxX, minY, maxY, ok := boundingBox(pts[0], pts[1], pts[2], s.Depth.Width, s.Depth.Height)
	if !ok {
		return 0
	}

	written := 0
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			bc, inside := barycentric(pts[0], pts[1], pts[2], float64(x)+0.5, float64(y)+0.5)
			if !inside {
				continue
			}
			z := pts[0].Z*bc.X + pts[1].Z*bc.Y + pts[2].Z*bc.Z
			if s.Depth.TestAndSet(x, y, z) {
				written++
			}
		}
	}
	return written
}

// Factor returns ShadowOccluded if a surface nearer to the light than world
// (by more than the slope-scaled bias) was recorded at its texel, and
// ShadowLit otherwise. normal must be unit length.
func (s *ShadowMap) Factor(world math3d.Vec4, normal math3d.Vec3) float64 {
	p := s.Project(world)
	// Clamped by DepthBuffer.At
	stored := s.Depth.At(int(math.Floor(p.X)), int(math.Floor(p.Y)))

	toLight := s.Light.Position.Sub(world.Vec3()).Normalize()
	bias := math.Max(MinShadowBias, SlopeShadowBias*(1-normal.Dot(toLight)))

	if stored-bias > p.Z {
		return ShadowOccluded
	}
	return ShadowLit
}
