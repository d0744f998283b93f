// Command tilecompose composites a scene of tiled surfaces and writes the
// resulting frame as WebP or PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/internal/composite"
	"github.com/gogpu/compositor/internal/config"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to scene JSON file")
		output     = flag.String("output", "", "Output file, .webp or .png (default: frame.webp)")
		width      = flag.Int("width", 0, "Framebuffer width (default: 800)")
		height     = flag.Int("height", 0, "Framebuffer height (default: 600)")
		tileSize   = flag.Int("tile", 0, "Tile size in pixels (default: 256)")
		frames     = flag.Int("frames", 0, "Number of frames to composite (default: 1)")
		verbose    = flag.Bool("v", false, "Log scheduling decisions")
	)
	flag.Parse()

	scene := demoScene()
	if *configFile != "" {
		var err error
		scene, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("Error loading scene: %v", err)
		}
	}
	scene.Resolve(config.Flags{
		Output:   *output,
		Width:    *width,
		Height:   *height,
		TileSize: *tileSize,
		Frames:   *frames,
	})
	if err := scene.Validate(); err != nil {
		log.Fatalf("Invalid scene: %v", err)
	}

	if *verbose {
		compositor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	if err := run(&scene); err != nil {
		log.Fatal(err)
	}
}

func run(scene *config.Scene) error {
	format := gputypes.TextureFormatRGBA8Unorm
	if scene.Format == "bgra" {
		format = gputypes.TextureFormatBGRA8Unorm
	}

	fb := image.NewRGBA(image.Rect(0, 0, scene.Width, scene.Height))
	c, err := compositor.New(compositor.ImageFramebuffer(fb), compositor.WithFormat(format))
	if err != nil {
		return fmt.Errorf("create compositor: %w", err)
	}
	defer func() {
		if err := c.Shutdown(); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	r, err := newRunner(c, scene)
	if err != nil {
		return err
	}

	start := time.Now()
	for n := range scene.Frames {
		stats := r.frame(n)
		fmt.Printf("frame %d: %d entries, %d culled, %d immediate, %d deferred, %d late, %d skipped\n",
			n, stats.Entries, stats.Culled, stats.Immediate, stats.Deferred, stats.Late, stats.Skipped)
	}
	fmt.Printf("%d frames in %v\n", scene.Frames, time.Since(start).Round(time.Microsecond))

	var out image.Image = fb
	if scene.Format == "bgra" {
		out = composite.Swizzle(fb)
	}
	if err := save(scene.Output, out); err != nil {
		return err
	}
	fmt.Printf("Frame saved to %s (%dx%d)\n", scene.Output, scene.Width, scene.Height)
	return nil
}

// save writes img as WebP or PNG, chosen by the file extension.
func save(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	default:
		err = nativewebp.Encode(f, img, nil)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// demoScene is used when no scene file is given: an opaque backdrop, a
// translucent panel that is repainted every frame and a late overlay.
func demoScene() config.Scene {
	return config.Scene{
		Frames: 3,
		Surfaces: []config.Surface{
			{Color: "#203040", Width: 800, Height: 600, Opaque: true},
			{Color: "#e0602080", Width: 400, Height: 300, X: 100, Y: 80, Repaint: true},
			{Color: "#40a0e0", Width: 160, Height: 120, X: 40.5, Y: 40.5, ScaleX: 1.5, ScaleY: 1.5, Filter: "cubic"},
			{Color: "#ffffffc0", Width: 200, Height: 40, X: 300, Y: 520, Late: true},
		},
	}
}
