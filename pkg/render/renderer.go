package render

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/taigrr/softrast/pkg/logging"
	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
)

// Pass names reported to ProgressFunc.
const (
	PassShadow = "shadow"
	PassCamera = "camera"
)

// ProgressFunc is called after each triangle of a pass.
type ProgressFunc func(pass string, done, total int)

// Renderer runs the two passes over a set of models: one shadow map per
// light, then the camera pass.
type Renderer struct {
	Width  int
	Height int

	Camera           *Camera
	Lights           []Light
	AmbientIntensity float64
	Shader           Shader
	Background       color.RGBA

	// ShadowSize is the edge length of each square shadow map. Zero
	// disables shadows.
	ShadowSize int
	// ShadowMargin is added to the light's distance from the scene center
	// to size the light's box. Zero uses the scene's bounding radius.
	ShadowMargin float64

	// Cull skips models whose world bounds miss the view frustum in the
	// camera pass.
	Cull bool
	// Wireframe draws triangle edges and light markers over the shaded image.
	Wireframe      bool
	WireframeColor color.RGBA

	Progress ProgressFunc
}

// NewRenderer returns a renderer with a default camera, Blinn-Phong shading
// and shadow maps the size of the image.
func NewRenderer(width, height int) *Renderer {
	return &Renderer{
		Width:            width,
		Height:           height,
		Camera:           NewCamera(),
		AmbientIntensity: 15,
		Shader:           NewBlinnPhong(),
		Background:       color.RGBA{A: 255},
		ShadowSize:       max(width, height),
		WireframeColor:   color.RGBA{G: 255, A: 255},
	}
}

// Render draws ms and returns the filled context. It stops with ctx.Err()
// if the context is cancelled between triangles.
func (r *Renderer) Render(ctx context.Context, ms []*models.Model) (*Context, error) {
	rc, err := NewContext(r.Width, r.Height, r.Camera)
	if err != nil {
		return nil, err
	}
	rc.Lights = r.Lights
	rc.AmbientIntensity = r.AmbientIntensity
	rc.Reset(r.Background)

	tris := make([][]Triangle, len(ms))
	total := 0
	for i, m := range ms {
		tris[i] = BuildTriangles(rc, m)
		total += len(tris[i])
	}

	if r.ShadowSize > 0 && len(ms) > 0 {
		if err := r.shadowPass(ctx, rc, ms, tris, total); err != nil {
			return nil, err
		}
	}
	if err := r.cameraPass(ctx, rc, ms, tris, total); err != nil {
		return nil, err
	}
	return rc, nil
}

func (r *Renderer) shadowPass(ctx context.Context, rc *Context, ms []*models.Model, tris [][]Triangle, total int) error {
	bounds := sceneBounds(ms)
	center := bounds.Center()
	margin := r.ShadowMargin
	if margin <= 0 {
		margin = bounds.Radius()
	}

	rc.Shadows = make([]*ShadowMap, len(rc.Lights))
	for li, l := range rc.Lights {
		start := time.Now()
		sm := NewShadowMap(r.ShadowSize, r.ShadowSize, l, center, math3d.Up(), margin)

		done, texels := 0, 0
		for mi := range tris {
			for ti := range tris[mi] {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("shadow pass: %w", err)
				}
				texels += sm.Rasterize(&tris[mi][ti])
				done++
				r.report(PassShadow, done, total)
			}
		}
		rc.Shadows[li] = sm

		logging.Logger().Debug("shadow map built",
			"light", li,
			"triangles", done,
			"texels", texels,
			"elapsed", time.Since(start))
	}
	return nil
}

func (r *Renderer) cameraPass(ctx context.Context, rc *Context, ms []*models.Model, tris [][]Triangle, total int) error {
	start := time.Now()
	rast := NewRasterizer(rc)
	frustum := rc.Camera.Frustum()

	done := 0
	for mi, m := range ms {
		if r.Cull {
			lo, hi := m.WorldBounds()
			if !frustum.IntersectAABB(AABB{Min: lo, Max: hi}) {
				logging.Logger().Warn("model outside view frustum", "model", m.Name)
				done += len(tris[mi])
				r.report(PassCamera, done, total)
				continue
			}
		}
		for ti := range tris[mi] {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("camera pass: %w", err)
			}
			rast.DrawTriangle(&tris[mi][ti], m, r.Shader)
			done++
			r.report(PassCamera, done, total)
		}
		if r.Wireframe {
			DrawWireframe(rc.Frame, tris[mi], r.WireframeColor)
		}
	}
	if r.Wireframe {
		DrawLightMarkers(rc.Frame, rc.Camera, rc.Lights, r.WireframeColor)
	}

	logging.Logger().Debug("camera pass done",
		"triangles", rast.Stats.Triangles,
		"skipped", rast.Stats.Skipped,
		"fragments", rast.Stats.Fragments,
		"depth_failed", rast.Stats.DepthFailed,
		"clipped", rast.Stats.Clipped,
		"elapsed", time.Since(start))
	return nil
}

func (r *Renderer) report(pass string, done, total int) {
	if r.Progress != nil {
		r.Progress(pass, done, total)
	}
}

// sceneBounds returns the union of the models' world bounds.
func sceneBounds(ms []*models.Model) AABB {
	var b AABB
	for i, m := range ms {
		lo, hi := m.WorldBounds()
		if i == 0 {
			b = AABB{Min: lo, Max: hi}
			continue
		}
		b = b.Union(AABB{Min: lo, Max: hi})
	}
	return b
}
