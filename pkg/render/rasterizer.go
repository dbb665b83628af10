package render

import (
	"math"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
)

// Rasterizer fills camera-space triangles into a Context.
type Rasterizer struct {
	ctx   *Context
	Stats RasterStats
}

// RasterStats counts work done by a Rasterizer.
type RasterStats struct {
	Triangles   int // Triangles submitted
	Skipped     int // Degenerate, off-screen or behind the eye
	Fragments   int // Pixels that passed the depth test and were shaded
	DepthFailed int // Covered pixels rejected by the depth test
	Clipped     int // Covered pixels with depth outside [0,1]
}

// NewRasterizer creates a rasterizer drawing into ctx.
func NewRasterizer(ctx *Context) *Rasterizer {
	return &Rasterizer{ctx: ctx}
}

// DrawTriangle scan-converts tri, shading each visible pixel with sh. m
// supplies texture maps and the normal matrix; nil means no maps.
func (r *Rasterizer) DrawTriangle(tri *Triangle, m *models.Model, sh Shader) {
	r.Stats.Triangles++
	ctx := r.ctx
	v := &tri.V

	for i := range v {
		if v[i].W < math3d.Epsilon {
			r.Stats.Skipped++
			return
		}
	}
	if v[0].Behind && v[1].Behind && v[2].Behind {
		r.Stats.Skipped++
		return
	}

	s0, s1, s2 := v[0].Screen.Vec3(), v[1].Screen.Vec3(), v[2].Screen.Vec3()
	minX, maxX, minY, maxY, ok := boundingBox(s0, s1, s2, ctx.Width, ctx.Height)
	if !ok {
		r.Stats.Skipped++
		return
	}

	hasDiffuse := m != nil && m.HasDiffuse
	hasSpecular := m != nil && m.HasSpecular
	hasNormalMap := m != nil && m.HasNormalMap
	tangentMap := hasNormalMap && m.TangentNormals

	var tangent, bitangent math3d.Vec3
	if tangentMap {
		tangent, bitangent, _ = tangentBasis(tri)
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			bc, inside := barycentric(s0, s1, s2, float64(x)+0.5, float64(y)+0.5)
			if !inside {
				continue
			}

			z, pc := perspectiveCorrect(bc, v[0].W, v[1].W, v[2].W, s0.Z, s1.Z, s2.Z)
			// Outside the near/far range, including corners wrapped from
			// behind the eye.
			if z < 0 || z > 1 || math.IsNaN(z) {
				r.Stats.Clipped++
				continue
			}
			// Committed before shading so overlapping triangles resolve by depth alone.
			if !ctx.Depth.TestAndSet(x, y, z) {
				r.Stats.DepthFailed++
				continue
			}

			f := Fragment{
				Screen: math3d.V4(float64(x)+0.5, float64(y)+0.5, z, 1),
				World:  math3d.Bary4(v[0].World, v[1].World, v[2].World, pc),
				UV:     math3d.Bary2(v[0].UV, v[1].UV, v[2].UV, pc),
			}
			f.W = 1 / (bc.X/v[0].W + bc.Y/v[1].W + bc.Z/v[2].W)

			n := math3d.Bary4(v[0].Normal, v[1].Normal, v[2].Normal, pc).Vec3().Normalize()
			switch {
			case tangentMap:
				nm := m.NormalMap.Normal(f.UV)
				n = tangent.Scale(nm.X).Add(bitangent.Scale(nm.Y)).Add(n.Scale(nm.Z)).Normalize()
			case hasNormalMap:
				nm := m.NormalMap.Normal(f.UV)
				n = m.NormalMatrix().MulVec3Dir(nm).Normalize()
			}
			f.Normal = math3d.Direction(n)

			if hasDiffuse {
				f.Albedo = m.Diffuse.Albedo(f.UV)
			} else {
				f.Albedo = math3d.Bary(v[0].Albedo, v[1].Albedo, v[2].Albedo, pc)
			}
			if hasSpecular {
				f.Specular = m.Specular.Scalar(f.UV)
			} else {
				f.Specular = v[0].Specular*pc.X + v[1].Specular*pc.Y + v[2].Specular*pc.Z
			}

			shadow := ShadowLit
			if len(ctx.Shadows) > 0 {
				shadow = ctx.ShadowFactor(f.World, n)
				if sm := ctx.firstShadow(); sm != nil {
					f.LightSpace = math3d.Point(sm.Project(f.World))
				}
			}

			ctx.Frame.SetPixel(x, y, sh.Shade(ctx, &f, shadow))
			r.Stats.Fragments++
		}
	}
}

// boundingBox returns the pixel rectangle covering the three points,
// clamped to a width×height grid. ok is false when the clamped box is empty
// or a coordinate is not finite.
func boundingBox(a, b, c math3d.Vec3, width, height int) (minX, maxX, minY, maxY int, ok bool) {
	for _, f := range [...]float64{a.X, a.Y, b.X, b.Y, c.X, c.Y} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, 0, 0, 0, false
		}
	}

	loX := math.Floor(min(a.X, b.X, c.X))
	hiX := math.Ceil(max(a.X, b.X, c.X))
	loY := math.Floor(min(a.Y, b.Y, c.Y))
	hiY := math.Ceil(max(a.Y, b.Y, c.Y))

	if hiX < 0 || hiY < 0 || loX > float64(width-1) || loY > float64(height-1) {
		return 0, 0, 0, 0, false
	}

	minX = int(math.Max(0, loX))
	maxX = int(math.Min(float64(width-1), hiX))
	minY = int(math.Max(0, loY))
	maxY = int(math.Min(float64(height-1), hiY))
	return minX, maxX, minY, maxY, minX <= maxX && minY <= maxY
}

// barycentric solves P = A + u·(B-A) + v·(C-A) for the point (px, py) and
// returns the weights (1-u-v, u, v). inside is false when any weight is
// negative or the triangle has no area.
func barycentric(a, b, c math3d.Vec3, px, py float64) (math3d.Vec3, bool) {
	ex := math3d.V3(b.X-a.X, c.X-a.X, a.X-px)
	ey := math3d.V3(b.Y-a.Y, c.Y-a.Y, a.Y-py)
	q := ex.Cross(ey)
	if math.Abs(q.Z) < math3d.Epsilon {
		return math3d.Vec3{}, false
	}

	u := q.X / q.Z
	v := q.Y / q.Z
	bc := math3d.V3(1-u-v, u, v)
	return bc, bc.X >= 0 && bc.Y >= 0 && bc.Z >= 0
}

// perspectiveCorrect turns screen-space weights into depth and
// perspective-correct attribute weights:
//
//	zt = Σ bcᵢ/wᵢ,  z = Σ bcᵢ·zᵢ / zt,  pcᵢ = bcᵢ / (zt·wᵢ)
func perspectiveCorrect(bc math3d.Vec3, w0, w1, w2, z0, z1, z2 float64) (float64, math3d.Vec3) {
	zt := bc.X/w0 + bc.Y/w1 + bc.Z/w2
	z := (bc.X*z0 + bc.Y*z1 + bc.Z*z2) / zt
	pc := math3d.V3(bc.X/(zt*w0), bc.Y/(zt*w1), bc.Z/(zt*w2))
	return z, pc
}

// tangentBasis solves [du1 dv1; du2 dv2]·[T; B] = [E1; E2] over the
// triangle's world-space edges and UV deltas. Both vectors are unit length.
// ok is false, with zero vectors, when the UV mapping is degenerate.
func tangentBasis(tri *Triangle) (t, b math3d.Vec3, ok bool) {
	p0, p1, p2 := tri.V[0].World.Vec3(), tri.V[1].World.Vec3(), tri.V[2].World.Vec3()
	uv0, uv1, uv2 := tri.V[0].UV, tri.V[1].UV, tri.V[2].UV

	e1, e2 := p1.Sub(p0), p2.Sub(p0)
	du1, dv1 := uv1.X-uv0.X, uv1.Y-uv0.Y
	du2, dv2 := uv2.X-uv0.X, uv2.Y-uv0.Y

	det := du1*dv2 - du2*dv1
	if math.Abs(det) < math3d.Epsilon {
		return math3d.Vec3{}, math3d.Vec3{}, false
	}

	t = e1.Scale(dv2).Sub(e2.Scale(dv1)).Scale(1 / det).Normalize()
	b = e2.Scale(du1).Sub(e1.Scale(du2)).Scale(1 / det).Normalize()
	return t, b, true
}
