package render

import (
	"image/color"
	"math"

	"github.com/taigrr/softrast/pkg/math3d"
)

// Shader turns an interpolated fragment into a pixel color. shadow is the
// attenuation from the shadow maps, ShadowLit when unoccluded.
type Shader interface {
	Shade(ctx *Context, f *Fragment, shadow float64) color.RGBA
}

// BlinnPhong is ambient + per-light diffuse and half-vector specular with
// inverse-square falloff. Channels are accumulated in 0..255 display units.
type BlinnPhong struct {
	Ka        float64 // Ambient coefficient, scaled by Context.AmbientIntensity
	Shininess float64 // Specular exponent
}

// NewBlinnPhong returns a shader with ka 0.5 and exponent 512.
func NewBlinnPhong() BlinnPhong {
	return BlinnPhong{Ka: 0.5, Shininess: 512}
}

// Shade implements Shader.
func (s BlinnPhong) Shade(ctx *Context, f *Fragment, shadow float64) color.RGBA {
	amb := s.Ka * ctx.AmbientIntensity
	result := math3d.V3(amb, amb, amb)

	pos := f.World.Vec3()
	n := f.Normal.Vec3()
	eyeDir := ctx.Eye().Sub(pos)

	for _, l := range ctx.Lights {
		lightDir := l.Position.Sub(pos)
		r2 := lightDir.LenSq()
		if r2 < math3d.Epsilon {
			continue
		}
		att := l.Intensity / r2

		diff := math.Max(0, n.Dot(lightDir.Normalize()))
		spec := math.Pow(math.Max(0, n.Dot(lightDir.Add(eyeDir).Normalize())), s.Shininess)

		ld := f.Albedo.Scale(att * diff)
		ls := f.Specular * att * spec
		result = result.Add(ld.Add(math3d.V3(ls, ls, ls)).Scale(255))
	}

	return toRGBA(result.Scale(shadow))
}

// Unlit returns the fragment albedo, attenuated by shadow.
type Unlit struct{}

// Shade implements Shader.
func (Unlit) Shade(_ *Context, f *Fragment, shadow float64) color.RGBA {
	return toRGBA(f.Albedo.Scale(255 * shadow))
}

// NormalShader maps the world normal from [-1,1] to a color.
type NormalShader struct{}

// Shade implements Shader.
func (NormalShader) Shade(_ *Context, f *Fragment, _ float64) color.RGBA {
	n := f.Normal.Vec3()
	return toRGBA(n.Add(math3d.V3(1, 1, 1)).Scale(127.5))
}

// toRGBA rounds and clamps 0..255 channels; NaN maps to 0.
func toRGBA(c math3d.Vec3) color.RGBA {
	return color.RGBA{R: clamp255(c.X), G: clamp255(c.Y), B: clamp255(c.Z), A: 255}
}

func clamp255(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
