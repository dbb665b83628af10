package models

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const quadOBJ = `# two triangles
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1
f 1/1/1 3/3/1 4/4/1
`

func TestParseOBJ(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(quadOBJ), "quad")
	if err != nil {
		t.Fatalf("ParseOBJ() error = %v", err)
	}

	if m.FaceCount() != 2 {
		t.Fatalf("FaceCount() = %d, want 2", m.FaceCount())
	}
	if len(m.Positions) != 4 || len(m.UVs) != 4 || len(m.Normals) != 1 {
		t.Errorf("counts = %d/%d/%d", len(m.Positions), len(m.UVs), len(m.Normals))
	}
	if got := m.FaceVertices[3:6]; got[0] != 0 || got[1] != 2 || got[2] != 3 {
		t.Errorf("second face vertices = %v, want [0 2 3]", got)
	}
	if m.BoundsMax.X != 1 || m.BoundsMax.Y != 1 {
		t.Errorf("BoundsMax = %v", m.BoundsMax)
	}
}

func TestParseOBJCornerForms(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
vt 0.5 0.5
f 1 2 3
f -3/1 -2/1 -1/1
`
	m, err := ParseOBJ(strings.NewReader(src), "forms")
	if err != nil {
		t.Fatalf("ParseOBJ() error = %v", err)
	}
	if m.FaceCount() != 2 {
		t.Fatalf("FaceCount() = %d", m.FaceCount())
	}
	// Missing normals are generated.
	if n := m.Normal(0, 0); n.Z <= 0.99 {
		t.Errorf("generated normal = %v, want +Z", n)
	}
	if uv := m.UV(1, 2); uv.X != 0.5 {
		t.Errorf("negative-index face uv = %v", uv)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParseOBJNotTriangulated(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`
	_, err := ParseOBJ(strings.NewReader(src), "quad")
	if !errors.Is(err, ErrNotTriangulated) {
		t.Errorf("ParseOBJ() error = %v, want ErrNotTriangulated", err)
	}
}

func TestParseOBJErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"index past end", "v 0 0 0\nf 1 2 3\n", ErrIndexRange},
		{"zero index", "v 0 0 0\nf 0 1 1\n", ErrIndexRange},
		{"bad float", "v 0 x 0\n", nil},
		{"short vertex", "v 0 0\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(tt.src), tt.name)
			if err == nil {
				t.Fatal("ParseOBJ() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseOBJ() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func writeMap(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := range 2 {
		for x := range 2 {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	// image.Decode sniffs the format, so a PNG stands in for a TGA here.
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWithMaps(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "quad.obj")
	if err := os.WriteFile(objPath, []byte(quadOBJ), 0o644); err != nil {
		t.Fatal(err)
	}
	writeMap(t, filepath.Join(dir, "quad"+DiffuseSuffix), color.RGBA{200, 0, 0, 255})
	writeMap(t, filepath.Join(dir, "quad"+WorldNormalSuffix), color.RGBA{128, 128, 255, 255})

	m, err := Load(objPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !m.HasDiffuse {
		t.Error("diffuse map not attached")
	}
	if !m.HasNormalMap || m.TangentNormals {
		t.Errorf("HasNormalMap=%v TangentNormals=%v, want world-space map", m.HasNormalMap, m.TangentNormals)
	}
	if m.HasSpecular {
		t.Error("specular map should be absent")
	}
}

func TestLoadMapsCorrupt(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "quad.obj")
	if err := os.WriteFile(filepath.Join(dir, "quad"+DiffuseSuffix), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadMaps(New("quad"), objPath, NormalMapAuto); err == nil {
		t.Error("LoadMaps() should fail on an undecodable map")
	}
}

func TestLoadUnsupported(t *testing.T) {
	if _, err := Load("mesh.fbx"); err == nil {
		t.Error("Load() should reject unknown extensions")
	}
}

func TestLoadMapsNormalMode(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "quad.obj")
	if err := os.WriteFile(objPath, []byte(quadOBJ), 0o644); err != nil {
		t.Fatal(err)
	}
	writeMap(t, filepath.Join(dir, "quad"+TangentNormalSuffix), color.RGBA{128, 128, 255, 255})
	writeMap(t, filepath.Join(dir, "quad"+WorldNormalSuffix), color.RGBA{128, 255, 128, 255})

	tests := []struct {
		mode        string
		wantNormal  bool
		wantTangent bool
	}{
		{"auto", true, true},
		{"tangent", true, true},
		{"world", true, false},
		{"none", false, false},
	}

	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			mode, err := ParseNormalMapMode(tc.mode)
			if err != nil {
				t.Fatal(err)
			}
			m, err := LoadWithOptions(objPath, LoadOptions{NormalMap: mode})
			if err != nil {
				t.Fatalf("LoadWithOptions() error = %v", err)
			}
			if m.HasNormalMap != tc.wantNormal || m.TangentNormals != tc.wantTangent {
				t.Errorf("HasNormalMap=%v TangentNormals=%v, want %v/%v",
					m.HasNormalMap, m.TangentNormals, tc.wantNormal, tc.wantTangent)
			}
		})
	}

	if _, err := ParseNormalMapMode("bumpy"); err == nil {
		t.Error("ParseNormalMapMode should reject unknown modes")
	}

	m, err := LoadWithOptions(objPath, LoadOptions{SkipMaps: true})
	if err != nil {
		t.Fatal(err)
	}
	if m.HasNormalMap {
		t.Error("SkipMaps still attached a normal map")
	}
}
