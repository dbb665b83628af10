package render

import (
	"fmt"
	"image/color"

	"github.com/taigrr/softrast/pkg/math3d"
)

// Context is the state of one render: output buffers, the camera transform
// and the lights with their shadow maps. Every stage receives it
// explicitly; nothing is kept in package variables.
type Context struct {
	Width  int
	Height int

	Frame *Framebuffer
	Depth *DepthBuffer

	Camera         *Camera
	ViewProjection math3d.Mat4

	Lights []Light
	// Shadows holds one map per light, in the same order. A nil entry or a
	// short slice means that light casts no shadow.
	Shadows []*ShadowMap

	AmbientIntensity float64
}

// NewContext validates the camera and allocates width×height buffers.
func NewContext(width, height int, cam *Camera) (*Context, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render: invalid size %dx%d", width, height)
	}
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	return &Context{
		Width:          width,
		Height:         height,
		Frame:          NewFramebuffer(width, height),
		Depth:          NewDepthBuffer(width, height),
		Camera:         cam,
		ViewProjection: cam.ViewProjectionMatrix(),
	}, nil
}

// Eye returns the camera position used for specular highlights.
func (c *Context) Eye() math3d.Vec3 {
	return c.Camera.Eye
}

// Reset clears the color buffer to bg and the depth buffer to the sentinel.
func (c *Context) Reset(bg color.RGBA) {
	c.Frame.Clear(bg)
	c.Depth.Clear()
}

// ShadowFactor returns the smallest shadow factor over all lights for a
// world-space point with the given unit normal.
func (c *Context) ShadowFactor(world math3d.Vec4, normal math3d.Vec3) float64 {
	factor := ShadowLit
	for _, sm := range c.Shadows {
		if sm == nil {
			continue
		}
		factor = min(factor, sm.Factor(world, normal))
	}
	return factor
}

// firstShadow returns the first non-nil shadow map.
func (c *Context) firstShadow() *ShadowMap {
	for _, sm := range c.Shadows {
		if sm != nil {
			return sm
		}
	}
	return nil
}
