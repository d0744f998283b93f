package main

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/internal/composite"
	"github.com/gogpu/compositor/internal/config"
)

// sceneSurface is a scene surface with its source pixels.
type sceneSurface struct {
	id     compositor.SurfaceID
	cfg    config.Surface
	src    *image.RGBA
	filter compositor.Filter
	tiles  []compositor.TileID
}

// runner drives a compositor through the frames of a scene.
type runner struct {
	c        *compositor.Compositor
	scene    *config.Scene
	surfaces []*sceneSurface
	tileSize image.Point
	bgra     bool

	// dirty lists the tiles to paint in the next frame.
	dirty map[compositor.TileID]*sceneSurface
}

func newRunner(c *compositor.Compositor, scene *config.Scene) (*runner, error) {
	r := &runner{
		c:        c,
		scene:    scene,
		tileSize: image.Pt(scene.TileSize, scene.TileSize),
		bgra:     scene.Format == "bgra",
		dirty:    make(map[compositor.TileID]*sceneSurface),
	}
	for i, cfg := range scene.Surfaces {
		src, err := surfaceImage(cfg)
		if err != nil {
			return nil, fmt.Errorf("surface %d: %w", i, err)
		}
		if r.bgra {
			swapRB(src)
		}
		filter, ok := composite.ParseFilter(cfg.Filter)
		if !ok {
			return nil, fmt.Errorf("surface %d: unknown filter %q", i, cfg.Filter)
		}
		r.surfaces = append(r.surfaces, &sceneSurface{
			id:     compositor.SurfaceID(i + 1),
			cfg:    cfg,
			src:    src,
			filter: filter,
		})
	}
	r.register()
	return r, nil
}

// register creates the surfaces and tiles and marks every tile for
// painting.
func (r *runner) register() {
	for _, s := range r.surfaces {
		r.c.CreateSurface(s.id, r.tileSize, s.cfg.Opaque)
		size := s.src.Rect.Size()
		for y := 0; y*r.tileSize.Y < size.Y; y++ {
			for x := 0; x*r.tileSize.X < size.X; x++ {
				id := compositor.TileID{Surface: s.id, X: x, Y: y}
				r.c.CreateTile(id)
				s.tiles = append(s.tiles, id)
			}
		}
		r.invalidate(s)
	}
}

func (r *runner) invalidate(s *sceneSurface) {
	for _, id := range s.tiles {
		r.c.InvalidateTile(id, r.validRect(s, id))
		r.dirty[id] = s
	}
}

// validRect returns the part of tile id covered by the source image.
func (r *runner) validRect(s *sceneSurface, id compositor.TileID) image.Rectangle {
	origin := image.Pt(id.X*r.tileSize.X, id.Y*r.tileSize.Y)
	return image.Rectangle{Max: r.tileSize}.Intersect(s.src.Rect.Sub(origin))
}

// frame composites frame n of the scene.
func (r *runner) frame(n int) compositor.FrameStats {
	if n > 0 {
		for _, s := range r.surfaces {
			if s.cfg.Repaint {
				r.invalidate(s)
			}
		}
	}

	r.c.BeginFrame()
	for _, s := range r.surfaces {
		if !s.cfg.Late {
			r.add(s)
		}
	}

	dirty := make([]image.Rectangle, 0, len(r.scene.Dirty))
	for _, d := range r.scene.Dirty {
		dirty = append(dirty, d.Rectangle())
	}
	r.c.StartCompositing(dirty)

	// Paint in submission order; composites start as soon as their
	// tile and everything below it has landed.
	for _, s := range r.surfaces {
		for _, id := range s.tiles {
			if _, ok := r.dirty[id]; ok {
				r.paint(s, id)
				delete(r.dirty, id)
			}
		}
	}

	for _, s := range r.surfaces {
		if s.cfg.Late {
			r.add(s)
		}
	}
	return r.c.EndFrame()
}

func (r *runner) add(s *sceneSurface) {
	m := compositor.Translate(s.cfg.X, s.cfg.Y).Multiply(compositor.Scale(s.cfg.ScaleX, s.cfg.ScaleY))
	clip := image.Rect(0, 0, r.scene.Width, r.scene.Height)
	if s.cfg.Clip != nil {
		clip = s.cfg.Clip.Rectangle()
	}
	r.c.AddSurface(s.id, m, clip, s.filter)
}

func (r *runner) paint(s *sceneSurface, id compositor.TileID) {
	valid := r.validRect(s, id)
	info, ok := r.c.Bind(id, valid, valid)
	if !ok {
		return
	}
	origin := image.Pt(id.X*r.tileSize.X, id.Y*r.tileSize.Y)
	draw.Draw(info.Buffer, info.Dirty, s.src, info.Dirty.Min.Add(origin), draw.Src)
	r.c.Unbind()
}

// surfaceImage returns the source pixels of a surface.
func surfaceImage(cfg config.Surface) (*image.RGBA, error) {
	if cfg.Image == "" {
		col, err := config.ParseColor(cfg.Color)
		if err != nil {
			return nil, err
		}
		img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
		draw.Draw(img, img.Rect, image.NewUniform(col), image.Point{}, draw.Src)
		return img, nil
	}
	return loadImage(cfg.Image)
}

// loadImage decodes a PNG, TGA or BMP file into an RGBA image anchored at
// the origin.
func loadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	decode, err := decoderFor(path)
	if err != nil {
		return nil, err
	}
	img, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rectangle{Max: b.Size()})
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst, nil
}

// decoderFor picks the decoder from the file extension. The tga package
// registers itself with an empty magic string, so image.Decode would hand
// it every file.
func decoderFor(path string) (func(io.Reader) (image.Image, error), error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return png.Decode, nil
	case ".tga":
		return tga.Decode, nil
	case ".bmp":
		return bmp.Decode, nil
	default:
		return nil, fmt.Errorf("unsupported image format %q: %s", ext, path)
	}
}

// swapRB converts between RGBA and BGRA channel order in place.
func swapRB(img *image.RGBA) {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		row := img.Pix[img.PixOffset(img.Rect.Min.X, y):]
		for x := 0; x < img.Rect.Dx(); x++ {
			i := x * 4
			row[i], row[i+2] = row[i+2], row[i]
		}
	}
}
