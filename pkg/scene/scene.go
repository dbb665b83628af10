// Package scene describes a render job: output size, camera, lights and
// the models to draw. Scenes are read from YAML and may be overridden by
// command-line flags.
package scene

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/taigrr/softrast/pkg/math3d"
	"github.com/taigrr/softrast/pkg/models"
	"github.com/taigrr/softrast/pkg/render"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("scene: invalid")

// Shading modes.
const (
	ShadingBlinnPhong = "blinn-phong"
	ShadingUnlit      = "unlit"
	ShadingNormal     = "normal"
)

// MaxSupersample bounds the supersampling factor.
const MaxSupersample = 8

// Vec is a 3-vector written as a YAML flow sequence: [x, y, z].
type Vec [3]float64

// V3 converts v to a math3d vector.
func (v Vec) V3() math3d.Vec3 {
	return math3d.V3(v[0], v[1], v[2])
}

// Scene holds all configurable render settings.
type Scene struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Supersample int    `yaml:"supersample"`
	Background  [3]int `yaml:"background"`

	Camera  Camera        `yaml:"camera"`
	Shading Shading       `yaml:"shading"`
	Shadows Shadows       `yaml:"shadows"`
	Lights  []Light       `yaml:"lights"`
	Models  []Model       `yaml:"models"`
	Output  Output        `yaml:"output"`
	Options RenderOptions `yaml:"options"`
}

// Camera is the perspective camera. Aspect zero means width/height.
type Camera struct {
	Eye    Vec     `yaml:"eye"`
	Target Vec     `yaml:"target"`
	Up     Vec     `yaml:"up"`
	FOV    float64 `yaml:"fov"`
	Aspect float64 `yaml:"aspect"`
	Near   float64 `yaml:"near"`
	Far    float64 `yaml:"far"`
}

// Shading selects the fragment shader and its coefficients. The
// coefficients are pointers so an explicit 0 survives defaulting.
type Shading struct {
	Mode      string   `yaml:"mode"`
	Ambient   *float64 `yaml:"ambient"`
	Ka        *float64 `yaml:"ka"`
	Shininess *float64 `yaml:"shininess"`
}

// Shadows configures the shadow maps. Enabled is a pointer to distinguish
// unset from false. Size 0 means max(width, height) of the final image
// size.
type Shadows struct {
	Enabled *bool   `yaml:"enabled"`
	Size    int     `yaml:"size"`
	Margin  float64 `yaml:"margin"`
}

// Light is a point light.
type Light struct {
	Position  Vec     `yaml:"position"`
	Intensity float64 `yaml:"intensity"`
}

// Model is a mesh file placed in the world. Rotation is XYZ Euler degrees.
type Model struct {
	Path        string `yaml:"path"`
	Translation Vec    `yaml:"translation"`
	Rotation    Vec    `yaml:"rotation"`
	Scale       *Vec   `yaml:"scale"`
	NormalMap   string `yaml:"normal_map"` // auto, tangent, world or none
	Maps        *bool  `yaml:"maps"`
}

// Output names the files to write. Empty paths are skipped, except Image
// which defaults to output.png.
type Output struct {
	Image  string `yaml:"image"`
	Depth  string `yaml:"depth"`
	Shadow string `yaml:"shadow"`
}

// RenderOptions are the optional passes.
type RenderOptions struct {
	Wireframe bool `yaml:"wireframe"`
	Cull      bool `yaml:"cull"`
}

// Default returns a 1200×1200 scene with the camera at (1,1,3) looking at
// the origin and a single light at (0,1,3). It has no models.
func Default() Scene {
	enabled := true
	return Scene{
		Width:       1200,
		Height:      1200,
		Supersample: 1,
		Camera: Camera{
			Eye:    Vec{1, 1, 3},
			Target: Vec{0, 0, 0},
			Up:     Vec{0, 1, 0},
			FOV:    90,
			Aspect: 1,
			Near:   0.1,
			Far:    50,
		},
		Shading: Shading{
			Mode:      ShadingBlinnPhong,
			Ambient:   ptr(15.0),
			Ka:        ptr(0.5),
			Shininess: ptr(512.0),
		},
		Shadows: Shadows{Enabled: &enabled},
		Lights:  []Light{{Position: Vec{0, 1, 3}, Intensity: 10}},
		Output:  Output{Image: "output.png"},
	}
}

// Load reads a YAML scene file. Unset fields are filled from Default;
// relative model and output paths are resolved against the file's
// directory.
func Load(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, fmt.Errorf("scene: read %s: %w", path, err)
	}

	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scene{}, fmt.Errorf("scene: parse %s: %w", path, err)
	}
	s.normalize()

	base := filepath.Dir(path)
	for i := range s.Models {
		s.Models[i].Path = resolvePath(base, s.Models[i].Path)
	}
	s.Output.Image = resolvePath(base, s.Output.Image)
	s.Output.Depth = resolvePath(base, s.Output.Depth)
	s.Output.Shadow = resolvePath(base, s.Output.Shadow)
	return s, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// normalize fills zero fields from Default. Lights are only defaulted when
// the list is absent.
func (s *Scene) normalize() {
	d := Default()

	if s.Width <= 0 {
		s.Width = d.Width
	}
	if s.Height <= 0 {
		s.Height = d.Height
	}
	if s.Supersample <= 0 {
		s.Supersample = 1
	}

	c := &s.Camera
	if c.Eye == (Vec{}) && c.Target == (Vec{}) {
		c.Eye, c.Target = d.Camera.Eye, d.Camera.Target
	}
	if c.Up == (Vec{}) {
		c.Up = d.Camera.Up
	}
	if c.FOV == 0 {
		c.FOV = d.Camera.FOV
	}
	if c.Aspect == 0 {
		c.Aspect = float64(s.Width) / float64(s.Height)
	}
	if c.Near == 0 {
		c.Near = d.Camera.Near
	}
	if c.Far == 0 {
		c.Far = d.Camera.Far
	}

	sh := &s.Shading
	if sh.Mode == "" {
		sh.Mode = d.Shading.Mode
	}
	if sh.Ambient == nil {
		sh.Ambient = d.Shading.Ambient
	}
	if sh.Ka == nil {
		sh.Ka = d.Shading.Ka
	}
	if sh.Shininess == nil {
		sh.Shininess = d.Shading.Shininess
	}

	if s.Shadows.Enabled == nil {
		s.Shadows.Enabled = d.Shadows.Enabled
	}

	if s.Lights == nil {
		s.Lights = d.Lights
	}

	for i := range s.Models {
		m := &s.Models[i]
		if m.Scale == nil {
			m.Scale = &Vec{1, 1, 1}
		}
		if m.NormalMap == "" {
			m.NormalMap = "auto"
		}
	}

	if s.Output.Image == "" {
		s.Output.Image = d.Output.Image
	}
}

// Flags holds CLI flag values that override scene file settings.
type Flags struct {
	Width       int
	Height      int
	Supersample int
	Output      string
	Depth       string
	Shadow      string
	Shading     string
	Models      []string
	NoShadows   bool
	Wireframe   bool
	Cull        bool
}

// Resolve applies non-zero flags over the scene, then fills remaining
// defaults.
func (s *Scene) Resolve(f Flags) {
	if f.Width > 0 {
		s.Width = f.Width
		s.Camera.Aspect = 0
	}
	if f.Height > 0 {
		s.Height = f.Height
		s.Camera.Aspect = 0
	}
	if f.Supersample > 0 {
		s.Supersample = f.Supersample
	}
	if f.Output != "" {
		s.Output.Image = f.Output
	}
	if f.Depth != "" {
		s.Output.Depth = f.Depth
	}
	if f.Shadow != "" {
		s.Output.Shadow = f.Shadow
	}
	if f.Shading != "" {
		s.Shading.Mode = f.Shading
	}
	for _, p := range f.Models {
		s.Models = append(s.Models, Model{Path: p})
	}
	if f.NoShadows {
		disabled := false
		s.Shadows.Enabled = &disabled
	}
	if f.Wireframe {
		s.Options.Wireframe = true
	}
	if f.Cull {
		s.Options.Cull = true
	}
	s.normalize()
}

// Validate reports the first setting that cannot be rendered.
func (s *Scene) Validate() error {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalid, s.Width, s.Height)
	case s.Supersample < 1 || s.Supersample > MaxSupersample:
		return fmt.Errorf("%w: supersample %d outside 1..%d", ErrInvalid, s.Supersample, MaxSupersample)
	case len(s.Models) == 0:
		return fmt.Errorf("%w: no models", ErrInvalid)
	}

	switch s.Shading.Mode {
	case ShadingBlinnPhong, ShadingUnlit, ShadingNormal:
	default:
		return fmt.Errorf("%w: unknown shading mode %q", ErrInvalid, s.Shading.Mode)
	}

	if s.Shadows.Size < 0 {
		return fmt.Errorf("%w: shadow map size %d", ErrInvalid, s.Shadows.Size)
	}
	for i, l := range s.Lights {
		if l.Intensity < 0 {
			return fmt.Errorf("%w: light %d has negative intensity", ErrInvalid, i)
		}
	}
	for i, m := range s.Models {
		if m.Path == "" {
			return fmt.Errorf("%w: model %d has no path", ErrInvalid, i)
		}
		if _, err := m.LoadOptions(); err != nil {
			return fmt.Errorf("%w: model %d: %w", ErrInvalid, i, err)
		}
	}

	if err := s.NewCamera().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// NewCamera builds the render camera.
func (s *Scene) NewCamera() *render.Camera {
	c := render.NewCamera()
	c.SetView(s.Camera.Eye.V3(), s.Camera.Target.V3(), s.Camera.Up.V3())
	c.SetPerspective(s.Camera.FOV, s.Camera.Aspect, s.Camera.Near, s.Camera.Far)
	return c
}

// RenderLights converts the scene lights.
func (s *Scene) RenderLights() []render.Light {
	out := make([]render.Light, len(s.Lights))
	for i, l := range s.Lights {
		out[i] = render.Light{Position: l.Position.V3(), Intensity: l.Intensity}
	}
	return out
}

// Shader returns the configured fragment shader.
func (s *Scene) Shader() render.Shader {
	switch s.Shading.Mode {
	case ShadingUnlit:
		return render.Unlit{}
	case ShadingNormal:
		return render.NormalShader{}
	}
	d := Default().Shading
	return render.BlinnPhong{
		Ka:        valueOr(s.Shading.Ka, *d.Ka),
		Shininess: valueOr(s.Shading.Shininess, *d.Shininess),
	}
}

// ShadowSize returns the shadow map resolution: the configured size, or
// max(width, height) when unset.
func (s *Scene) ShadowSize() int {
	if s.Shadows.Size > 0 {
		return s.Shadows.Size
	}
	return max(s.Width, s.Height)
}

// BackgroundColor returns the clear color.
func (s *Scene) BackgroundColor() color.RGBA {
	return color.RGBA{
		R: uint8(clampInt(s.Background[0])),
		G: uint8(clampInt(s.Background[1])),
		B: uint8(clampInt(s.Background[2])),
		A: 255,
	}
}

// Renderer builds a renderer for the supersampled image size.
func (s *Scene) Renderer() *render.Renderer {
	k := s.Supersample
	r := render.NewRenderer(s.Width*k, s.Height*k)
	r.Camera = s.NewCamera()
	r.Lights = s.RenderLights()
	r.AmbientIntensity = valueOr(s.Shading.Ambient, *Default().Shading.Ambient)
	r.Shader = s.Shader()
	r.Background = s.BackgroundColor()
	r.ShadowSize = 0
	if s.Shadows.Enabled != nil && *s.Shadows.Enabled {
		r.ShadowSize = s.ShadowSize()
	}
	r.ShadowMargin = s.Shadows.Margin
	r.Wireframe = s.Options.Wireframe
	r.Cull = s.Options.Cull
	return r
}

// Transform returns the model's placement.
func (m Model) Transform() models.Transform {
	t := models.IdentityTransform()
	t.Translation = m.Translation.V3()
	t.Rotation = m.Rotation.V3()
	if m.Scale != nil {
		t.Scale = m.Scale.V3()
	}
	return t
}

// LoadOptions returns the map lookup settings for models.LoadWithOptions.
// Maps are looked up unless maps is explicitly false.
func (m Model) LoadOptions() (models.LoadOptions, error) {
	mode, err := models.ParseNormalMapMode(m.NormalMap)
	if err != nil {
		return models.LoadOptions{}, err
	}
	return models.LoadOptions{
		NormalMap: mode,
		SkipMaps:  m.Maps != nil && !*m.Maps,
	}, nil
}

func ptr[T any](v T) *T {
	return &v
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

func clampInt(v int) int {
	return max(0, min(255, v))
}
