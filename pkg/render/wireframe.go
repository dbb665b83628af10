package render

import (
	"image/color"
	"math"
)

// DrawWireframe outlines the screen-space edges of tris on fb. Triangles
// with a vertex at or behind the eye plane are skipped. Edges are not depth
// tested.
func DrawWireframe(fb *Framebuffer, tris []Triangle, c color.RGBA) {
	for i := range tris {
		v := &tris[i].V
		if v[0].W <= 0 || v[1].W <= 0 || v[2].W <= 0 || v[0].Behind || v[1].Behind || v[2].Behind {
			continue
		}
		for e := range 3 {
			a, b := v[e].Screen, v[(e+1)%3].Screen
			fb.DrawLine(pixel(a.X), pixel(a.Y), pixel(b.X), pixel(b.Y), c)
		}
	}
}

// lightMarkerSize is the half-length in pixels of a light marker's arms.
const lightMarkerSize = 4

// DrawLightMarkers draws a cross at the screen position of every light the
// camera can see.
func DrawLightMarkers(fb *Framebuffer, cam *Camera, lights []Light, c color.RGBA) {
	for _, l := range lights {
		x, y, _, visible := cam.WorldToScreen(l.Position, fb.Width, fb.Height)
		if !visible {
			continue
		}
		px, py := pixel(x), pixel(y)
		fb.DrawLine(px-lightMarkerSize, py, px+lightMarkerSize, py, c)
		fb.DrawLine(px, py-lightMarkerSize, px, py+lightMarkerSize, c)
	}
}

// pixel truncates a screen coordinate to a pixel index, saturating values
// that would overflow int.
func pixel(v float64) int {
	const limit = 1 << 20
	switch {
	case math.IsNaN(v):
		return -limit
	case v > limit:
		return limit
	case v < -limit:
		return -limit
	}
	return int(math.Floor(v))
}
