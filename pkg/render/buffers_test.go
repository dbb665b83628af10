package render

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/taigrr/softrast/pkg/math3d"
)

func TestFramebufferImageRoundTrip(t *testing.T) {
	fb := NewFramebuffer(3, 2)
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	fb.SetPixel(0, 0, red)  // bottom left
	fb.SetPixel(2, 1, blue) // top right

	img := fb.ToImage()
	if got := img.RGBAAt(0, 1); got != red {
		t.Errorf("bottom-left pixel in image = %v, want red", got)
	}
	if got := img.RGBAAt(2, 0); got != blue {
		t.Errorf("top-right pixel in image = %v, want blue", got)
	}

	back := FramebufferFromImage(img)
	for i := range fb.Pixels {
		if back.Pixels[i] != fb.Pixels[i] {
			t.Fatalf("pixel %d = %v, want %v", i, back.Pixels[i], fb.Pixels[i])
		}
	}
}

func TestFramebufferBounds(t *testing.T) {
	fb := NewFramebuffer(2, 2)
	fb.SetPixel(-1, 0, color.RGBA{R: 1})
	fb.SetPixel(0, 5, color.RGBA{R: 1})
	for i, p := range fb.Pixels {
		if p != (color.RGBA{}) {
			t.Errorf("pixel %d written by out-of-bounds SetPixel", i)
		}
	}
	if got := fb.GetPixel(9, 9); got != (color.RGBA{}) {
		t.Errorf("GetPixel out of bounds = %v", got)
	}
}

func TestDepthBufferTestAndSet(t *testing.T) {
	d := NewDepthBuffer(2, 2)

	steps := []struct {
		z    float64
		want bool
	}{
		{0.3, true},
		{0.2, false},
		{0.3, false},
		{0.9, true},
	}
	for _, s := range steps {
		if got := d.TestAndSet(1, 1, s.z); got != s.want {
			t.Errorf("TestAndSet(%v) = %v, want %v", s.z, got, s.want)
		}
	}
	if got := d.At(1, 1); got != 0.9 {
		t.Errorf("At = %v, want 0.9", got)
	}
	if d.TestAndSet(2, 0, 1) {
		t.Error("TestAndSet out of bounds should fail")
	}

	d.Clear()
	for i, v := range d.Values {
		if v != DepthSentinel {
			t.Errorf("value %d = %v after Clear", i, v)
		}
	}
}

func TestDepthVisualize(t *testing.T) {
	d := NewDepthBuffer(3, 2)
	d.TestAndSet(0, 0, 0.2)
	d.TestAndSet(1, 0, 0.8)
	d.TestAndSet(2, 0, 0.5)

	img := d.Visualize()

	tests := []struct {
		name string
		x, y int
		want uint8
	}{
		{"farthest", 0, 1, 1},
		{"nearest", 1, 1, 255},
		{"middle", 2, 1, 128},
		{"untouched", 0, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := img.GrayAt(tc.x, tc.y).Y; got != tc.want {
				t.Errorf("gray(%d,%d) = %d, want %d", tc.x, tc.y, got, tc.want)
			}
		})
	}

	if lo, hi, ok := d.Range(); !ok || lo != 0.2 || hi != 0.8 {
		t.Errorf("Range() = %v, %v, %v", lo, hi, ok)
	}
}

func TestDepthVisualizeEmpty(t *testing.T) {
	img := NewDepthBuffer(4, 4).Visualize()
	for _, v := range img.Pix {
		if v != 0 {
			t.Fatal("empty depth buffer should visualize as black")
		}
	}
}

func TestCameraValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Camera)
		ok     bool
	}{
		{"default", func(*Camera) {}, true},
		{"zero near", func(c *Camera) { c.Near = 0 }, false},
		{"far before near", func(c *Camera) { c.Far = 0.05 }, false},
		{"fov 180", func(c *Camera) { c.FOV = 180 }, false},
		{"negative aspect", func(c *Camera) { c.Aspect = -1 }, false},
		{"eye on target", func(c *Camera) { c.Target = c.Eye }, false},
		{"up along view", func(c *Camera) { c.Up = c.Target.Sub(c.Eye) }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCamera()
			tc.mutate(c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidFrustum) {
				t.Errorf("Validate() error = %v, want ErrInvalidFrustum", err)
			}
		})
	}
}

func TestCameraWorldToScreen(t *testing.T) {
	c := NewCamera()

	x, y, depth, visible := c.WorldToScreen(c.Target, 200, 100)
	if !visible {
		t.Fatal("target should be visible")
	}
	if math.Abs(x-100) > 1e-9 || math.Abs(y-50) > 1e-9 {
		t.Errorf("target maps to (%v, %v), want viewport center", x, y)
	}
	if depth <= 0 || depth >= 1 {
		t.Errorf("depth = %v, want inside (0, 1)", depth)
	}

	if _, _, _, visible := c.WorldToScreen(c.Eye.Sub(c.Forward()), 200, 100); visible {
		t.Error("point behind the eye should not be visible")
	}
	if _, _, _, visible := c.WorldToScreen(c.Eye.Add(c.Forward().Scale(100)), 200, 100); visible {
		t.Error("point beyond the far plane should not be visible")
	}
}

func TestCameraMatricesFollowSetters(t *testing.T) {
	c := NewCamera()
	before := c.ViewProjectionMatrix()

	c.SetPerspective(60, 2, 0.5, 10)
	if c.ViewProjectionMatrix() == before {
		t.Error("SetPerspective did not invalidate the cached matrix")
	}

	before = c.ViewProjectionMatrix()
	c.SetView(math3d.V3(0, 0, 5), math3d.Vec3{}, math3d.Up())
	if c.ViewProjectionMatrix() == before {
		t.Error("SetView did not invalidate the cached matrix")
	}
}

func TestLightMatrixDepth(t *testing.T) {
	l := Light{Position: math3d.V3(0, 1, 3)}
	m := l.Matrix(math3d.Vec3{}, math3d.Up(), 1)

	atLight := m.MulVec4(math3d.Point(l.Position))
	if math.Abs(atLight.Z-1) > 1e-9 {
		t.Errorf("light position depth = %v, want 1", atLight.Z)
	}
	atCenter := m.MulVec4(math3d.V4(0, 0, 0, 1))
	if math.Abs(atCenter.X) > 1e-9 || math.Abs(atCenter.Y) > 1e-9 {
		t.Errorf("center maps to (%v, %v), want origin", atCenter.X, atCenter.Y)
	}
	if atCenter.Z >= atLight.Z || atCenter.Z <= 0 {
		t.Errorf("center depth %v should lie in (0, %v)", atCenter.Z, atLight.Z)
	}
}

func TestLightMatrixOverhead(t *testing.T) {
	// Up parallel to the light direction falls back to another axis.
	m := Light{Position: math3d.V3(0, 5, 0)}.Matrix(math3d.Vec3{}, math3d.Up(), 1)
	for i, v := range m {
		if math.IsNaN(v) {
			t.Fatalf("matrix element %d is NaN", i)
		}
	}
	if got := m.MulVec4(math3d.V4(0, 0, 0, 1)); math.Abs(got.X) > 1e-9 || math.Abs(got.Y) > 1e-9 {
		t.Errorf("center maps to %v, want origin", got)
	}
}

func TestDrawWireframe(t *testing.T) {
	fb := NewFramebuffer(20, 20)
	green := color.RGBA{G: 255, A: 255}
	tris := []Triangle{
		screenTriangle(math3d.V2(2, 2), math3d.V2(15, 2), math3d.V2(2, 15), 0.5, DefaultAlbedo),
	}
	tris = append(tris, screenTriangle(math3d.V2(1, 1), math3d.V2(5, 1), math3d.V2(1, 5), 0.5, DefaultAlbedo))
	tris[1].V[2].W = 0 // behind the eye

	DrawWireframe(fb, tris, green)

	for _, p := range [][2]int{{2, 2}, {15, 2}, {2, 15}, {8, 2}, {2, 8}} {
		if got := fb.GetPixel(p[0], p[1]); got != green {
			t.Errorf("edge pixel %v = %v, want green", p, got)
		}
	}
	if got := fb.GetPixel(5, 5); got != (color.RGBA{}) {
		t.Errorf("interior pixel = %v, want untouched", got)
	}
	if got := fb.GetPixel(3, 1); got != (color.RGBA{}) {
		t.Errorf("skipped triangle drew pixel (3,1) = %v", got)
	}
}

func TestDrawWireframeSkipsBehindEye(t *testing.T) {
	fb := NewFramebuffer(20, 20)
	tri := screenTriangle(math3d.V2(2, 2), math3d.V2(15, 2), math3d.V2(2, 15), 0.5, DefaultAlbedo)
	tri.V[0].Behind = true

	DrawWireframe(fb, []Triangle{tri}, color.RGBA{G: 255, A: 255})

	for i, p := range fb.Pixels {
		if p != (color.RGBA{}) {
			t.Fatalf("pixel %d = %v, want untouched", i, p)
		}
	}
}

func TestDrawLightMarkers(t *testing.T) {
	cam := NewCamera()
	fb := NewFramebuffer(64, 64)
	green := color.RGBA{G: 255, A: 255}
	lights := []Light{
		{Position: cam.Target, Intensity: 1},
		{Position: cam.Eye.Sub(cam.Forward()), Intensity: 1}, // behind the camera
	}

	DrawLightMarkers(fb, cam, lights, green)

	x, y, _, _ := cam.WorldToScreen(cam.Target, 64, 64)
	cx, cy := pixel(x), pixel(y)
	if cx < 30 || cx > 33 || cy < 30 || cy > 33 {
		t.Fatalf("target projects to (%d,%d), want the viewport center", cx, cy)
	}
	const r = lightMarkerSize
	for _, p := range [][2]int{{cx, cy}, {cx - r, cy}, {cx + r, cy}, {cx, cy - r}, {cx, cy + r}} {
		if got := fb.GetPixel(p[0], p[1]); got != green {
			t.Errorf("marker pixel %v = %v, want green", p, got)
		}
	}

	drawn := 0
	for _, p := range fb.Pixels {
		if p == green {
			drawn++
		}
	}
	if want := 4*lightMarkerSize + 1; drawn != want {
		t.Errorf("%d pixels drawn, want %d for a single marker", drawn, want)
	}
}

func TestPixelSaturates(t *testing.T) {
	if got := pixel(math.Inf(1)); got != 1<<20 {
		t.Errorf("pixel(+Inf) = %d", got)
	}
	if got := pixel(math.NaN()); got != -(1 << 20) {
		t.Errorf("pixel(NaN) = %d", got)
	}
	if got := pixel(-0.5); got != -1 {
		t.Errorf("pixel(-0.5) = %d, want -1", got)
	}
}
