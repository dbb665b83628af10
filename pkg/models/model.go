// Package models holds triangulated meshes with their texture maps and
// model transform, and loads them from OBJ and glTF files.
package models

import (
	"errors"
	"fmt"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/texture"
)

var (
	// ErrNotTriangulated is returned for faces with other than three corners.
	ErrNotTriangulated = errors.New("models: face is not a triangle")
	// ErrIndexMismatch is returned when the three index arrays differ in
	// length or are not grouped in triples.
	ErrIndexMismatch = errors.New("models: face index arrays mismatch")
	// ErrIndexRange is returned when a face index points past its array.
	ErrIndexRange = errors.New("models: face index out of range")
)

// Transform describes a model placement: Scale first, then Rotation
// (degrees about X, Y, Z), then Translation.
type Transform struct {
	Scale       math3d.Vec3
	Rotation    math3d.Vec3
	Translation math3d.Vec3
	// Spin is a yaw in degrees about the world Y axis through the model's
	// origin, applied after Rotation.
	Spin float64
}

// IdentityTransform returns a unit-scale transform with no rotation or
// translation.
func IdentityTransform() Transform {
	return Transform{Scale: math3d.V3(1, 1, 1)}
}

// Model is a triangle mesh with separate index arrays per attribute. Face f
// corner c uses Positions[FaceVertices[3f+c]], UVs[FaceUVs[3f+c]] and
// Normals[FaceNormals[3f+c]].
type Model struct {
	Name string

	Positions []math3d.Vec4 // W=1
	UVs       []math3d.Vec2
	Normals   []math3d.Vec4 // W=0

	FaceVertices []int
	FaceUVs      []int
	FaceNormals  []int

	Diffuse   *texture.Texture
	NormalMap *texture.Texture
	Specular  *texture.Texture

	HasDiffuse   bool
	HasNormalMap bool
	HasSpecular  bool
	// TangentNormals selects tangent-space decoding of NormalMap. When
	// false the map stores world-space normals.
	TangentNormals bool

	// Bounding box in model space (calculated on load)
	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3

	modelMatrix  math3d.Mat4
	normalMatrix math3d.Mat4
}

// New creates an empty model with identity transforms.
func New(name string) *Model {
	return &Model{
		Name:         name,
		modelMatrix:  math3d.Identity(),
		normalMatrix: math3d.Identity(),
	}
}

// Validate checks the index array invariants.
func (m *Model) Validate() error {
	n := len(m.FaceVertices)
	if len(m.FaceUVs) != n || len(m.FaceNormals) != n || n%3 != 0 {
		return fmt.Errorf("%w: %d vertices, %d uvs, %d normals",
			ErrIndexMismatch, n, len(m.FaceUVs), len(m.FaceNormals))
	}
	for i := range n {
		if m.FaceVertices[i] < 0 || m.FaceVertices[i] >= len(m.Positions) {
			return fmt.Errorf("%w: vertex %d at slot %d", ErrIndexRange, m.FaceVertices[i], i)
		}
		if m.FaceUVs[i] < 0 || m.FaceUVs[i] >= len(m.UVs) {
			return fmt.Errorf("%w: uv %d at slot %d", ErrIndexRange, m.FaceUVs[i], i)
		}
		if m.FaceNormals[i] < 0 || m.FaceNormals[i] >= len(m.Normals) {
			return fmt.Errorf("%w: normal %d at slot %d", ErrIndexRange, m.FaceNormals[i], i)
		}
	}
	return nil
}

// FaceCount returns the number of triangles.
func (m *Model) FaceCount() int {
	return len(m.FaceVertices) / 3
}

// AddFace appends a triangle given its three (position, uv, normal) index
// triples.
func (m *Model) AddFace(v, uv, n [3]int) {
	m.FaceVertices = append(m.FaceVertices, v[0], v[1], v[2])
	m.FaceUVs = append(m.FaceUVs, uv[0], uv[1], uv[2])
	m.FaceNormals = append(m.FaceNormals, n[0], n[1], n[2])
}

// Position returns the model-space position of a face corner, or the origin
// if the index is out of range.
func (m *Model) Position(face, corner int) math3d.Vec4 {
	i := face*3 + corner
	if i < 0 || i >= len(m.FaceVertices) {
		return math3d.V4(0, 0, 0, 1)
	}
	idx := m.FaceVertices[i]
	if idx < 0 || idx >= len(m.Positions) {
		return math3d.V4(0, 0, 0, 1)
	}
	return m.Positions[idx]
}

// UV returns the texture coordinate of a face corner, or (0,0).
func (m *Model) UV(face, corner int) math3d.Vec2 {
	i := face*3 + corner
	if i < 0 || i >= len(m.FaceUVs) {
		return math3d.Vec2{}
	}
	idx := m.FaceUVs[i]
	if idx < 0 || idx >= len(m.UVs) {
		return math3d.Vec2{}
	}
	return m.UVs[idx]
}

// Normal returns the model-space normal of a face corner, or the zero
// direction.
func (m *Model) Normal(face, corner int) math3d.Vec4 {
	i := face*3 + corner
	if i < 0 || i >= len(m.FaceNormals) {
		return math3d.Vec4{}
	}
	idx := m.FaceNormals[i]
	if idx < 0 || idx >= len(m.Normals) {
		return math3d.Vec4{}
	}
	return m.Normals[idx]
}

// SetModelMatrix derives the model matrix T·R·S and its normal matrix.
// The model keeps its previous matrices if the transform is singular.
func (m *Model) SetModelMatrix(t Transform) error {
	mm := math3d.TRS(t.Translation, t.Rotation, t.Scale)
	if t.Spin != 0 {
		mm = math3d.Translate(t.Translation).
			Mul(math3d.RotateY(math3d.Deg2Rad(t.Spin))).
			Mul(math3d.TRS(math3d.Vec3{}, t.Rotation, t.Scale))
	}
	nm, err := math3d.NormalMatrix(mm)
	if err != nil {
		return fmt.Errorf("model %q: %w", m.Name, err)
	}
	m.modelMatrix = mm
	m.normalMatrix = nm
	return nil
}

// ModelMatrix returns the model-to-world matrix.
func (m *Model) ModelMatrix() math3d.Mat4 {
	return m.modelMatrix
}

// NormalMatrix returns the inverse-transpose of the model matrix's 3x3
// block.
func (m *Model) NormalMatrix() math3d.Mat4 {
	return m.normalMatrix
}

// SetDiffuse attaches a diffuse map. A nil texture clears it.
func (m *Model) SetDiffuse(tex *texture.Texture) {
	m.Diffuse = tex
	m.HasDiffuse = tex != nil
}

// SetNormalMap attaches a normal map encoded in tangent space (tangent=true)
// or world space.
func (m *Model) SetNormalMap(tex *texture.Texture, tangent bool) {
	m.NormalMap = tex
	m.HasNormalMap = tex != nil
	m.TangentNormals = tangent && tex != nil
}

// SetSpecular attaches a specular intensity map.
func (m *Model) SetSpecular(tex *texture.Texture) {
	m.Specular = tex
	m.HasSpecular = tex != nil
}

// CalculateBounds computes the model-space axis-aligned bounding box.
func (m *Model) CalculateBounds() {
	if len(m.Positions) == 0 {
		return
	}

	m.BoundsMin = m.Positions[0].Vec3()
	m.BoundsMax = m.BoundsMin
	for _, p := range m.Positions[1:] {
		m.BoundsMin = m.BoundsMin.Min(p.Vec3())
		m.BoundsMax = m.BoundsMax.Max(p.Vec3())
	}
}

// WorldBounds returns the bounding box of the eight model-space corners
// after the model matrix.
func (m *Model) WorldBounds() (lo, hi math3d.Vec3) {
	b0, b1 := m.BoundsMin, m.BoundsMax
	for i := range 8 {
		c := math3d.V3(b0.X, b0.Y, b0.Z)
		if i&1 != 0 {
			c.X = b1.X
		}
		if i&2 != 0 {
			c.Y = b1.Y
		}
		if i&4 != 0 {
			c.Z = b1.Z
		}
		w := m.modelMatrix.MulVec3(c)
		if i == 0 {
			lo, hi = w, w
			continue
		}
		lo = lo.Min(w)
		hi = hi.Max(w)
	}
	return lo, hi
}

// CalculateSmoothNormals replaces the normals with area-weighted averages of
// the face normals at each position, and points FaceNormals at them.
func (m *Model) CalculateSmoothNormals() {
	acc := make([]math3d.Vec3, len(m.Positions))

	for f := range m.FaceCount() {
		i0, i1, i2 := m.FaceVertices[f*3], m.FaceVertices[f*3+1], m.FaceVertices[f*3+2]
		v0 := m.Positions[i0].Vec3()
		v1 := m.Positions[i1].Vec3()
		v2 := m.Positions[i2].Vec3()

		// Unnormalized so larger faces weigh more
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		acc[i0] = acc[i0].Add(n)
		acc[i1] = acc[i1].Add(n)
		acc[i2] = acc[i2].Add(n)
	}

	m.Normals = make([]math3d.Vec4, len(acc))
	for i, n := range acc {
		m.Normals[i] = math3d.Direction(n.Normalize())
	}
	m.FaceNormals = append(m.FaceNormals[:0], m.FaceVertices...)
}
