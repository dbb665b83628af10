package render

import (
	"errors"
	"fmt"

	"github.com/taigrr/softrast/pkg/math3d"
)

// ErrInvalidFrustum is returned for camera parameters that would produce a
// degenerate or flipped projection.
var ErrInvalidFrustum = errors.New("render: invalid camera frustum")

// Camera looks from Eye towards Target. Near and Far are positive distances
// along the view direction.
type Camera struct {
	Eye    math3d.Vec3
	Target math3d.Vec3
	Up     math3d.Vec3

	// Projection parameters
	FOV    float64 // Vertical field of view in degrees
	Aspect float64 // Width / Height
	Near   float64
	Far    float64

	// Cached matrices (computed on demand)
	viewMatrix     math3d.Mat4
	projMatrix     math3d.Mat4
	viewProjMatrix math3d.Mat4
	viewDirty      bool
	projDirty      bool
	viewProjDirty  bool
}

// NewCamera creates a camera at (1,1,3) looking at the origin with a 90°
// field of view, square aspect and clip planes at 0.1 and 50.
func NewCamera() *Camera {
	return &Camera{
		Eye:           math3d.V3(1, 1, 3),
		Target:        math3d.V3(0, 0, 0),
		Up:            math3d.Up(),
		FOV:           90,
		Aspect:        1,
		Near:          0.1,
		Far:           50,
		viewDirty:     true,
		projDirty:     true,
		viewProjDirty: true,
	}
}

// SetView sets the eye, target and up vector.
func (c *Camera) SetView(eye, target, up math3d.Vec3) {
	c.Eye = eye
	c.Target = target
	c.Up = up
	c.viewDirty = true
	c.viewProjDirty = true
}

// SetPerspective sets the field of view (degrees), aspect ratio and clip
// distances.
func (c *Camera) SetPerspective(fov, aspect, near, far float64) {
	c.FOV = fov
	c.Aspect = aspect
	c.Near = near
	c.Far = far
	c.projDirty = true
	c.viewProjDirty = true
}

// Validate rejects parameters that cannot form a frustum.
func (c *Camera) Validate() error {
	switch {
	case c.Near <= 0:
		return fmt.Errorf("%w: near %v must be positive", ErrInvalidFrustum, c.Near)
	case c.Far <= c.Near:
		return fmt.Errorf("%w: far %v must exceed near %v", ErrInvalidFrustum, c.Far, c.Near)
	case c.FOV <= 0 || c.FOV >= 180:
		return fmt.Errorf("%w: fov %v outside (0, 180)", ErrInvalidFrustum, c.FOV)
	case c.Aspect <= 0:
		return fmt.Errorf("%w: aspect %v must be positive", ErrInvalidFrustum, c.Aspect)
	case c.Eye.Sub(c.Target).Len() < math3d.Epsilon:
		return fmt.Errorf("%w: eye and target coincide", ErrInvalidFrustum)
	case c.Forward().Cross(c.Up).Len() < math3d.Epsilon:
		return fmt.Errorf("%w: up vector parallel to view direction", ErrInvalidFrustum)
	}
	return nil
}

// Forward returns the unit view direction.
func (c *Camera) Forward() math3d.Vec3 {
	return c.Target.Sub(c.Eye).Normalize()
}

// ViewMatrix returns the view matrix.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		c.viewMatrix = math3d.LookAt(c.Eye, c.Target, c.Up)
		c.viewDirty = false
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the projection matrix. Visible depths map to
// [0,1] with 1 at the near plane.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.projMatrix = math3d.Perspective(math3d.Deg2Rad(c.FOV), c.Aspect, c.Near, c.Far)
		c.projDirty = false
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns the combined view-projection matrix.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	if c.viewProjDirty {
		c.viewProjMatrix = c.ProjectionMatrix().Mul(c.ViewMatrix())
		c.viewProjDirty = false
	}
	return c.viewProjMatrix
}

// WorldToScreen maps a world point to pixel coordinates and depth for a
// width×height viewport. visible is false for points outside the view
// frustum, including everything behind the eye.
func (c *Camera) WorldToScreen(p math3d.Vec3, width, height int) (x, y, depth float64, visible bool) {
	clip := c.ViewProjectionMatrix().MulVec4(math3d.Point(p))
	// W is the view-space z, negative in front of the eye.
	if clip.W >= 0 || !c.Frustum().ContainsPoint(p) {
		return 0, 0, 0, false
	}
	ndc := clip.PerspectiveDivide()
	x = (ndc.X + 1) * float64(width) / 2
	y = (ndc.Y + 1) * float64(height) / 2
	return x, y, ndc.Z, true
}
