// softrast - CPU Software Rasterizer
// Render OBJ and glTF meshes with Blinn-Phong shading, normal maps and
// shadow maps, without a GPU.
//
// Usage:
//
//	softrast [options] [model.obj|model.glb ...]
//
// Models named on the command line are added to those in the scene file.
// With -frames the models turn a full revolution over N numbered frames.
// With -preview the final image is also shown in the terminal; press any
// key to exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/harmonica"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/schollz/progressbar/v3"

	"github.com/taigrr/softrast/pkg/imageio"
	"github.com/taigrr/softrast/pkg/logging"
	"github.com/taigrr/softrast/pkg/models"
	"github.com/taigrr/softrast/pkg/render"
	"github.com/taigrr/softrast/pkg/scene"
)

var (
	scenePath   = flag.String("scene", "", "Scene file (YAML)")
	outputPath  = flag.String("o", "", "Output image (.png, .webp, .tga, .bmp)")
	depthPath   = flag.String("depth", "", "Also write the depth buffer to this file")
	shadowPath  = flag.String("shadow", "", "Also write the first light's shadow map to this file")
	width       = flag.Int("width", 0, "Image width (overrides scene)")
	height      = flag.Int("height", 0, "Image height (overrides scene)")
	supersample = flag.Int("ssaa", 0, "Supersampling factor (1 disables)")
	shading     = flag.String("shading", "", "Shading mode: blinn-phong, unlit, normal")
	noShadows   = flag.Bool("no-shadows", false, "Disable shadow maps")
	wireframe   = flag.Bool("wireframe", false, "Draw triangle edges over the image")
	cull        = flag.Bool("cull", false, "Skip models outside the view frustum")
	frames      = flag.Int("frames", 0, "Render a turntable of N frames")
	fps         = flag.Int("fps", 24, "Turntable frame rate, used to pace the spin")
	preview     = flag.Bool("preview", false, "Show the result in the terminal")
	quiet       = flag.Bool("q", false, "Hide progress bars")
	verbose     = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "softrast - CPU Software Rasterizer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: softrast [options] [model.obj|model.glb ...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nTexture maps are read from files next to an OBJ mesh:\n")
		fmt.Fprintf(os.Stderr, "  <name>_diffuse.tga, <name>_nm_tangent.tga or <name>_nm.tga, <name>_spec.tga\n")
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logging.SetLogger(logger)

	sc := scene.Default()
	if *scenePath != "" {
		var err error
		sc, err = scene.Load(*scenePath)
		if err != nil {
			return err
		}
	}
	sc.Resolve(scene.Flags{
		Width:       *width,
		Height:      *height,
		Supersample: *supersample,
		Output:      *outputPath,
		Depth:       *depthPath,
		Shadow:      *shadowPath,
		Shading:     *shading,
		Models:      flag.Args(),
		NoShadows:   *noShadows,
		Wireframe:   *wireframe,
		Cull:        *cull,
	})
	if err := sc.Validate(); err != nil {
		if len(sc.Models) == 0 {
			flag.Usage()
		}
		return err
	}

	ms, err := loadModels(sc)
	if err != nil {
		return err
	}

	// Context for clean shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var img image.Image
	if *frames > 0 {
		img, err = turntable(ctx, sc, ms, *frames)
	} else {
		img, err = renderOnce(ctx, sc, ms)
	}
	if err != nil {
		return err
	}

	if *preview {
		return showPreview(ctx, img)
	}
	return nil
}

func loadModels(sc scene.Scene) ([]*models.Model, error) {
	ms := make([]*models.Model, 0, len(sc.Models))
	for _, cfg := range sc.Models {
		opts, err := cfg.LoadOptions()
		if err != nil {
			return nil, err
		}
		m, err := models.LoadWithOptions(cfg.Path, opts)
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", cfg.Path, err)
		}
		if err := m.SetModelMatrix(cfg.Transform()); err != nil {
			return nil, err
		}
		logging.Logger().Info("loaded model",
			"path", filepath.Base(cfg.Path),
			"vertices", len(m.Positions),
			"triangles", m.FaceCount())
		ms = append(ms, m)
	}
	return ms, nil
}

// renderOnce draws the scene and writes every configured output. It
// returns the final downsampled image.
func renderOnce(ctx context.Context, sc scene.Scene, ms []*models.Model) (image.Image, error) {
	r := sc.Renderer()
	if !*quiet {
		p := &passProgress{}
		r.Progress = p.update
		defer p.finish()
	}

	rc, err := r.Render(ctx, ms)
	if err != nil {
		return nil, err
	}

	img := imageio.Downsample(rc.Frame.ToImage(), sc.Supersample)
	if err := imageio.Save(sc.Output.Image, img); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}
	logging.Logger().Info("wrote image", "path", sc.Output.Image,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	if sc.Output.Depth != "" {
		depth := imageio.Downsample(rc.Depth.Visualize(), sc.Supersample)
		if err := imageio.Save(sc.Output.Depth, depth); err != nil {
			return nil, fmt.Errorf("save depth: %w", err)
		}
	}
	if sc.Output.Shadow != "" {
		if len(rc.Shadows) == 0 || rc.Shadows[0] == nil {
			logging.Logger().Warn("no shadow map to write", "path", sc.Output.Shadow)
		} else if err := imageio.Save(sc.Output.Shadow, rc.Shadows[0].Depth.Visualize()); err != nil {
			return nil, fmt.Errorf("save shadow map: %w", err)
		}
	}
	return img, nil
}

// turntable renders n frames while a critically damped spring carries the
// models' yaw through one revolution. Frame i is written next to the
// configured output as name_0001.ext and so on. It returns the last frame.
func turntable(ctx context.Context, sc scene.Scene, ms []*models.Model, n int) (image.Image, error) {
	// Settles in roughly n frames.
	freq := 6.0 * float64(*fps) / float64(n)
	spring := harmonica.NewSpring(harmonica.FPS(*fps), freq, 1.0)

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.Default(int64(n), "frames")
		defer bar.Finish()
	}

	var (
		yaw, vel float64
		img      image.Image
	)
	for i := range n {
		yaw, vel = spring.Update(yaw, vel, 360)
		for j, m := range ms {
			t := sc.Models[j].Transform()
			t.Spin = yaw
			if err := m.SetModelMatrix(t); err != nil {
				return nil, err
			}
		}

		rc, err := sc.Renderer().Render(ctx, ms)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		img = imageio.Downsample(rc.Frame.ToImage(), sc.Supersample)

		path := framePath(sc.Output.Image, i+1)
		if err := imageio.Save(path, img); err != nil {
			return nil, fmt.Errorf("save frame %d: %w", i, err)
		}
		logging.Logger().Debug("wrote frame", "path", path, "yaw", yaw)

		if bar != nil {
			bar.Add(1)
		}
	}
	return img, nil
}

// framePath inserts a four-digit frame number before the extension.
func framePath(path string, i int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%04d%s", strings.TrimSuffix(path, ext), i, ext)
}

// passProgress shows one progress bar per render pass.
type passProgress struct {
	pass string
	bar  *progressbar.ProgressBar
}

func (p *passProgress) update(pass string, done, total int) {
	if pass != p.pass {
		p.finish()
		p.pass = pass
		p.bar = progressbar.Default(int64(total), pass)
	}
	// Shadow passes restart the count for each light.
	if done < int(p.bar.State().CurrentNum) {
		p.bar.Reset()
	}
	p.bar.Set(done)
}

func (p *passProgress) finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

// showPreview draws img on the terminal with half-block cells until a key
// is pressed or ctx is cancelled.
func showPreview(ctx context.Context, img image.Image) error {
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	cleanup := func() {
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}
	defer cleanup()

	draw := func() error {
		// Two framebuffer rows per terminal cell
		fb := render.FramebufferFromImage(imageio.Fit(img, width, height*2))
		term.Erase()
		fb.Draw(term, uv.Rect(0, 0, width, height))
		return term.Display()
	}
	if err := draw(); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-term.Events():
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				width, height = ev.Width, ev.Height
				term.Resize(width, height)
				if err := draw(); err != nil {
					return fmt.Errorf("display: %w", err)
				}
			case uv.KeyPressEvent:
				return nil
			}
		}
	}
}
