package render

import (
	"image"
	"image/color"
	"math"
)

// DepthSentinel marks a depth or shadow texel no surface has reached. It is
// below every legal depth, so the first covering fragment always wins.
var DepthSentinel = math.Inf(-1)

// DepthBuffer is a row-major grid of depths where larger means nearer.
// Values only grow during a pass.
type DepthBuffer struct {
	Width  int
	Height int
	Values []float64
}

// NewDepthBuffer allocates a depth buffer cleared to DepthSentinel.
func NewDepthBuffer(width, height int) *DepthBuffer {
	d := &DepthBuffer{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
	}
	d.Clear()
	return d
}

// Clear resets every texel to DepthSentinel.
func (d *DepthBuffer) Clear() {
	if len(d.Values) == 0 {
		return
	}
	// Fill by doubling copies
	d.Values[0] = DepthSentinel
	for i := 1; i < len(d.Values); i *= 2 {
		copy(d.Values[i:], d.Values[:i])
	}
}

// At returns the depth at (x, y), clamping the coordinates to the buffer.
func (d *DepthBuffer) At(x, y int) float64 {
	if d.Width == 0 || d.Height == 0 {
		return DepthSentinel
	}
	x = clampInt(x, 0, d.Width-1)
	y = clampInt(y, 0, d.Height-1)
	return d.Values[y*d.Width+x]
}

// TestAndSet stores z at (x, y) if it is nearer than the current value and
// reports whether it did. Out-of-bounds coordinates never pass.
func (d *DepthBuffer) TestAndSet(x, y int, z float64) bool {
	if x < 0 || x >= d.Width || y < 0 || y >= d.Height {
		return false
	}
	i := y*d.Width + x
	if z <= d.Values[i] {
		return false
	}
	d.Values[i] = z
	return true
}

// Range returns the smallest and largest depths written since the last
// Clear. ok is false if nothing was written.
func (d *DepthBuffer) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range d.Values {
		if v == DepthSentinel {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// Visualize renders the buffer as grayscale with a top-left origin. Written
// depths are min-max normalized to 1..255 (nearest is brightest); untouched
// texels are black.
func (d *DepthBuffer) Visualize() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, d.Width, d.Height))
	lo, hi, ok := d.Range()
	if !ok {
		return img
	}
	span := hi - lo

	for y := range d.Height {
		for x := range d.Width {
			v := d.Values[y*d.Width+x]
			if v == DepthSentinel {
				continue
			}
			t := 1.0
			if span > 0 {
				t = (v - lo) / span
			}
			img.SetGray(x, d.Height-1-y, color.Gray{Y: uint8(1 + math.Round(t*254))})
		}
	}
	return img
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
