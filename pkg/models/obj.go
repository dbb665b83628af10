package models

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/taigrr/softrast/pkg/logging"
	"github.com/taigrr/softrast/pkg/math3d"
)

// LoadOBJ reads a Wavefront OBJ file. Only v, vt, vn and f records are
// used; every face must have exactly three corners.
func LoadOBJ(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj: %w", err)
	}
	defer f.Close()

	m, err := ParseOBJ(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// ParseOBJ reads OBJ records from r.
func ParseOBJ(r io.Reader, name string) (*Model, error) {
	m := New(name)
	// Corners without a vt or vn reference point at these, appended lazily.
	defaultUV := -1
	missingNormals := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.Positions = append(m.Positions, math3d.V4(v[0], v[1], v[2], 1))
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.UVs = append(m.UVs, math3d.V2(v[0], v[1]))
		case "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.Normals = append(m.Normals, math3d.Direction(math3d.V3(v[0], v[1], v[2])))
		case "f":
			corners := fields[1:]
			if len(corners) != 3 {
				return nil, fmt.Errorf("line %d: %w: %d corners", line, ErrNotTriangulated, len(corners))
			}
			var vi, ti, ni [3]int
			for c, corner := range corners {
				v, t, n, err := parseCorner(corner, len(m.Positions), len(m.UVs), len(m.Normals))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				if t < 0 {
					if defaultUV < 0 {
						defaultUV = len(m.UVs)
						m.UVs = append(m.UVs, math3d.Vec2{})
					}
					t = defaultUV
				}
				if n < 0 {
					missingNormals = true
					n = 0
				}
				vi[c], ti[c], ni[c] = v, t, n
			}
			m.AddFace(vi, ti, ni)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}

	if missingNormals || len(m.Normals) == 0 {
		logging.Logger().Debug("obj has no normals, computing smooth normals", "model", name)
		m.CalculateSmoothNormals()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.CalculateBounds()
	return m, nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d components, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := range n {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("parse component %q: %w", fields[i], err)
		}
		out[i] = v
	}
	return out, nil
}

// parseCorner parses "v", "v/t", "v//n" or "v/t/n" into zero-based indices.
// Absent references are returned as -1. Negative OBJ indices count back
// from the end of the arrays read so far.
func parseCorner(s string, nv, nt, nn int) (v, t, n int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("malformed face corner %q", s)
	}

	counts := [3]int{nv, nt, nn}
	idx := [3]int{-1, -1, -1}
	for i, p := range parts {
		if p == "" {
			continue
		}
		k, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("face corner %q: %w", s, err)
		}
		switch {
		case k > 0:
			k--
		case k < 0:
			k += counts[i]
		default:
			return 0, 0, 0, fmt.Errorf("face corner %q: %w", s, ErrIndexRange)
		}
		if k < 0 || k >= counts[i] {
			return 0, 0, 0, fmt.Errorf("face corner %q: %w", s, ErrIndexRange)
		}
		idx[i] = k
	}
	if idx[0] < 0 {
		return 0, 0, 0, fmt.Errorf("face corner %q has no position", s)
	}
	return idx[0], idx[1], idx[2], nil
}
