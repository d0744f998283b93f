// Package config loads the scene description used by the tilecompose
// command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrNoSurfaces is returned by Validate for a scene without surfaces.
	ErrNoSurfaces = errors.New("config: scene has no surfaces")

	// ErrBadColor is returned for colors that are not #rrggbb or #rrggbbaa.
	ErrBadColor = errors.New("config: bad color")
)

// Scene holds the framebuffer settings and the surfaces to composite.
type Scene struct {
	// Framebuffer
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Output string `json:"output"`

	// Compositing
	TileSize int    `json:"tile_size"`
	Frames   int    `json:"frames"`
	Format   string `json:"format"` // "rgba" or "bgra"
	Dirty    []Rect `json:"dirty"`

	Surfaces []Surface `json:"surfaces"`

	// BaseDir resolves relative image paths. Set by Load.
	BaseDir string `json:"-"`
}

// Surface is one surface of the scene, in back-to-front order.
type Surface struct {
	// Image is a PNG, TGA or BMP file. When empty the surface is a solid
	// Color of Width x Height pixels.
	Image  string `json:"image"`
	Color  string `json:"color"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
	Clip   *Rect   `json:"clip"`
	Filter string  `json:"filter"`
	Opaque bool    `json:"opaque"`

	// Repaint invalidates every tile of the surface each frame.
	Repaint bool `json:"repaint"`

	// Late adds the surface after compositing has started.
	Late bool `json:"late"`
}

// Rect is a device-space rectangle.
type Rect struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Rectangle converts r to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X1, r.Y1)
}

// Load reads a JSON scene file and returns Scene.
// Fields not set in the file keep their zero values.
func Load(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return Scene{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	s.BaseDir = filepath.Dir(path)

	return s, nil
}

// Flags holds CLI flag values that override scene file settings.
type Flags struct {
	Output   string
	Width    int
	Height   int
	TileSize int
	Frames   int
}

// Resolve applies flag overrides and fills in defaults.
// CLI flags take priority when non-zero/non-empty.
func (s *Scene) Resolve(flags Flags) {
	// CLI flags override scene file
	if flags.Output != "" {
		s.Output = flags.Output
	}
	if flags.Width > 0 {
		s.Width = flags.Width
	}
	if flags.Height > 0 {
		s.Height = flags.Height
	}
	if flags.TileSize > 0 {
		s.TileSize = flags.TileSize
	}
	if flags.Frames > 0 {
		s.Frames = flags.Frames
	}

	// Defaults
	if s.Width <= 0 {
		s.Width = 800
	}
	if s.Height <= 0 {
		s.Height = 600
	}
	if s.TileSize <= 0 {
		s.TileSize = 256
	}
	if s.Frames <= 0 {
		s.Frames = 1
	}
	if s.Output == "" {
		s.Output = "frame.webp"
	}
	if s.Format == "" {
		s.Format = "rgba"
	}

	for i := range s.Surfaces {
		sf := &s.Surfaces[i]
		if sf.ScaleX == 0 {
			sf.ScaleX = 1
		}
		if sf.ScaleY == 0 {
			sf.ScaleY = 1
		}
		if sf.Filter == "" {
			sf.Filter = "linear"
		}
		if sf.Image != "" && s.BaseDir != "" && !filepath.IsAbs(sf.Image) {
			sf.Image = filepath.Join(s.BaseDir, sf.Image)
		}
	}
}

// Validate reports the first problem that prevents the scene from being
// composited.
func (s *Scene) Validate() error {
	if len(s.Surfaces) == 0 {
		return ErrNoSurfaces
	}
	switch s.Format {
	case "rgba", "bgra":
	default:
		return fmt.Errorf("config: unknown format %q", s.Format)
	}
	for i, sf := range s.Surfaces {
		if sf.Image != "" {
			continue
		}
		if sf.Width <= 0 || sf.Height <= 0 {
			return fmt.Errorf("config: surface %d: solid surface needs width and height", i)
		}
		if _, err := ParseColor(sf.Color); err != nil {
			return fmt.Errorf("config: surface %d: %w", i, err)
		}
	}
	return nil
}

// ParseColor parses #rrggbb or #rrggbbaa into a premultiplied color.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	c := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)} //nolint:gosec // masked by uint8
	return color.RGBAModel.Convert(c).(color.RGBA), nil
}
