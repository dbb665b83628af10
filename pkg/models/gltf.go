package models

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/softrast/pkg/logging"
	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/texture"
)

// GLTFLoader loads GLTF/GLB files into a Model.
type GLTFLoader struct {
	// CalculateNormals generates smooth normals for primitives without a
	// NORMAL attribute.
	CalculateNormals bool
	// LoadTexture attaches the first decodable image as the diffuse map.
	LoadTexture bool
}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		LoadTexture:      true,
	}
}

// LoadGLTF loads a .gltf or .glb file with the default options.
func LoadGLTF(path string) (*Model, error) {
	return NewGLTFLoader().Load(path)
}

// Load loads a GLTF or GLB file. All triangle primitives of all meshes are
// merged into one model. Positions, normals and UVs share the glTF index.
func (l *GLTFLoader) Load(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	m := New(filepath.Base(path))
	missingNormals := false
	for _, mesh := range doc.Meshes {
		ok, err := l.processMesh(doc, mesh, m)
		if err != nil {
			return nil, fmt.Errorf("process mesh %q: %w", mesh.Name, err)
		}
		missingNormals = missingNormals || !ok
	}

	if missingNormals {
		if !l.CalculateNormals {
			return nil, fmt.Errorf("gltf %s: primitive without normals", path)
		}
		m.CalculateSmoothNormals()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.CalculateBounds()

	if l.LoadTexture {
		if img := firstImage(doc, filepath.Dir(path)); img != nil {
			m.SetDiffuse(texture.FromImage(img))
		} else if c, ok := baseColor(doc); ok {
			m.SetDiffuse(texture.Fill(1, 1, c))
		}
	}
	return m, nil
}

// processMesh appends the triangle primitives of mesh to m and reports
// whether every primitive carried normals.
func (l *GLTFLoader) processMesh(doc *gltf.Document, mesh *gltf.Mesh, m *Model) (bool, error) {
	hasNormals := true
	for _, prim := range mesh.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			logging.Logger().Debug("skipping non-triangle primitive", "mesh", mesh.Name, "mode", prim.Mode)
			continue
		}

		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return false, fmt.Errorf("read positions: %w", err)
		}

		var normals [][3]float32
		if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
			normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil)
			if err != nil {
				return false, fmt.Errorf("read normals: %w", err)
			}
		}
		if len(normals) != len(positions) {
			hasNormals = false
		}

		var uvs [][2]float32
		if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
			if err != nil {
				return false, fmt.Errorf("read uvs: %w", err)
			}
		}

		base := len(m.Positions)
		for i, p := range positions {
			m.Positions = append(m.Positions, math3d.V4(float64(p[0]), float64(p[1]), float64(p[2]), 1))

			var n math3d.Vec4
			if i < len(normals) {
				n = math3d.V4(float64(normals[i][0]), float64(normals[i][1]), float64(normals[i][2]), 0)
			}
			m.Normals = append(m.Normals, n)

			var uv math3d.Vec2
			if i < len(uvs) {
				// glTF puts V=0 at the top of the image.
				uv = math3d.V2(float64(uvs[i][0]), 1-float64(uvs[i][1]))
			}
			m.UVs = append(m.UVs, uv)
		}

		var indices []uint32
		if prim.Indices != nil {
			indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return false, fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		if len(indices)%3 != 0 {
			return false, fmt.Errorf("%w: %d indices", ErrNotTriangulated, len(indices))
		}

		for i := 0; i+2 < len(indices); i += 3 {
			tri := [3]int{
				base + int(indices[i]),
				base + int(indices[i+1]),
				base + int(indices[i+2]),
			}
			m.AddFace(tri, tri, tri)
		}
	}
	return hasNormals, nil
}

// baseColor returns the base color factor of the first material that sets
// one.
func baseColor(doc *gltf.Document) (color.RGBA, bool) {
	for _, mat := range doc.Materials {
		if mat.PBRMetallicRoughness == nil || mat.PBRMetallicRoughness.BaseColorFactor == nil {
			continue
		}
		f := *mat.PBRMetallicRoughness.BaseColorFactor
		return color.RGBA{
			R: unitToByte(f[0]),
			G: unitToByte(f[1]),
			B: unitToByte(f[2]),
			A: 255,
		}, true
	}
	return color.RGBA{}, false
}

func unitToByte(v float64) uint8 {
	return uint8(math.Round(max(0, min(1, v)) * 255))
}

// firstImage decodes the first embedded or external image in the document.
func firstImage(doc *gltf.Document, dir string) image.Image {
	for _, img := range doc.Images {
		var data []byte
		switch {
		case img.BufferView != nil:
			bv := doc.BufferViews[*img.BufferView]
			buf := doc.Buffers[bv.Buffer]
			if buf.Data != nil {
				data = buf.Data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
			}
		case img.URI != "" && !strings.HasPrefix(img.URI, "data:"):
			raw, err := os.ReadFile(filepath.Join(dir, img.URI))
			if err != nil {
				logging.Logger().Warn("gltf image missing", "uri", img.URI, "error", err)
				continue
			}
			data = raw
		}
		if len(data) == 0 {
			continue
		}
		decoded, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			logging.Logger().Warn("gltf image undecodable", "name", img.Name, "error", err)
			continue
		}
		return decoded
	}
	return nil
}
