package render

import (
	"math"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
)

// DefaultAlbedo is the flat grey used for models without a diffuse map.
var DefaultAlbedo = math3d.V3(0.5, 0.5, 0.5)

// Vertex is the output of the vertex stage and, interpolated, the fragment
// handed to a Shader.
type Vertex struct {
	// Screen holds pixel x, pixel y and depth (larger is nearer).
	Screen math3d.Vec4
	// W is |clip w|, the perspective-correction divisor.
	W      float64
	// Behind is set when clip w >= 0. Points in front of the eye have a
	// negative clip w.
	Behind bool
	World  math3d.Vec4
	Normal math3d.Vec4
	UV     math3d.Vec2

	// Fragment attributes
	Albedo   math3d.Vec3 // 0..1
	Specular float64     // 0..1
	// LightSpace is the fragment in the first shadow map's texel space
	// (x, y, depth). Shadow factors are computed against every map.
	LightSpace math3d.Vec4
}

// Fragment is an interpolated Vertex at a covered pixel.
type Fragment = Vertex

// Triangle owns copies of its three vertices. Mesh vertices shared between
// faces are duplicated.
type Triangle struct {
	V [3]Vertex
}

// VertexStage transforms one corner of a face to screen space.
func VertexStage(ctx *Context, m *models.Model, face, corner int) Vertex {
	world := m.ModelMatrix().MulVec4(m.Position(face, corner))
	clip := ctx.ViewProjection.MulVec4(world)
	ndc := clip.PerspectiveDivide()

	v := Vertex{
		Screen: math3d.V4(
			(ndc.X+1)*float64(ctx.Width)/2,
			(ndc.Y+1)*float64(ctx.Height)/2,
			ndc.Z,
			1,
		),
		W:      math.Abs(clip.W),
		Behind: clip.W >= 0,
		World:  world,
		Normal: m.NormalMatrix().MulVec4(m.Normal(face, corner)).Normalize(),
		UV:     m.UV(face, corner),
	}
	if !m.HasDiffuse {
		v.Albedo = DefaultAlbedo
	}
	// Specular stays zero without a specular map.
	return v
}

// BuildTriangles runs the vertex stage over every face of m.
func BuildTriangles(ctx *Context, m *models.Model) []Triangle {
	tris := make([]Triangle, m.FaceCount())
	for f := range tris {
		for c := range 3 {
			tris[f].V[c] = VertexStage(ctx, m, f, c)
		}
	}
	return tris
}
