package models

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/taigrr/softrast/pkg/logging"
	"github.com/taigrr/softrast/pkg/texture"
)

// Map file suffixes looked up next to a mesh file.
const (
	DiffuseSuffix       = "_diffuse.tga"
	TangentNormalSuffix = "_nm_tangent.tga"
	WorldNormalSuffix   = "_nm.tga"
	SpecularSuffix      = "_spec.tga"
)

// NormalMapMode selects which normal map LoadMaps attaches.
type NormalMapMode int

const (
	NormalMapAuto    NormalMapMode = iota // Tangent-space if present, else world-space
	NormalMapTangent                      // Only the tangent-space map
	NormalMapWorld                        // Only the world-space map
	NormalMapNone                         // Interpolated vertex normals only
)

// ParseNormalMapMode maps "auto", "tangent", "world" or "none" to a mode.
func ParseNormalMapMode(s string) (NormalMapMode, error) {
	switch s {
	case "", "auto":
		return NormalMapAuto, nil
	case "tangent":
		return NormalMapTangent, nil
	case "world":
		return NormalMapWorld, nil
	case "none":
		return NormalMapNone, nil
	}
	return 0, fmt.Errorf("unknown normal map mode %q", s)
}

// LoadMaps attaches the texture maps found beside meshPath. For
// "head.obj" it tries head_diffuse.tga, head_nm_tangent.tga (falling back to
// the world-space head_nm.tga under NormalMapAuto) and head_spec.tga. A
// missing file only clears the matching flag; a file that exists but cannot
// be decoded is an error.
func LoadMaps(m *Model, meshPath string, mode NormalMapMode) error {
	base := strings.TrimSuffix(meshPath, filepath.Ext(meshPath))

	tex, err := loadOptional(base + DiffuseSuffix)
	if err != nil {
		return err
	}
	m.SetDiffuse(tex)

	m.SetNormalMap(nil, false)
	if mode == NormalMapAuto || mode == NormalMapTangent {
		tex, err = loadOptional(base + TangentNormalSuffix)
		if err != nil {
			return err
		}
		m.SetNormalMap(tex, true)
	}
	if !m.HasNormalMap && (mode == NormalMapAuto || mode == NormalMapWorld) {
		tex, err = loadOptional(base + WorldNormalSuffix)
		if err != nil {
			return err
		}
		m.SetNormalMap(tex, false)
	}

	tex, err = loadOptional(base + SpecularSuffix)
	if err != nil {
		return err
	}
	m.SetSpecular(tex)

	logging.Logger().Debug("texture maps",
		"model", m.Name,
		"diffuse", m.HasDiffuse,
		"normal", m.HasNormalMap,
		"tangent", m.TangentNormals,
		"specular", m.HasSpecular)
	return nil
}

func loadOptional(path string) (*texture.Texture, error) {
	tex, err := texture.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Logger().Warn("texture map not found", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	return tex, nil
}

// LoadOptions controls how Load attaches texture maps to OBJ meshes.
type LoadOptions struct {
	NormalMap NormalMapMode
	SkipMaps  bool
}

// Load reads a mesh by extension: .obj (plus its maps), .gltf or .glb.
func Load(path string) (*Model, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions is Load with control over map lookup.
func LoadWithOptions(path string, opts LoadOptions) (*Model, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		m, err := LoadOBJ(path)
		if err != nil {
			return nil, err
		}
		if opts.SkipMaps {
			return m, nil
		}
		if err := LoadMaps(m, path, opts.NormalMap); err != nil {
			return nil, err
		}
		return m, nil
	case ".gltf", ".glb":
		return LoadGLTF(path)
	default:
		return nil, fmt.Errorf("unsupported mesh format %q", filepath.Ext(path))
	}
}
