package compositor

import (
	"image"
	"image/color"
	"testing"
)

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 255}
)

func newTestCompositor(t *testing.T, w, h int, opts ...Option) *Compositor {
	t.Helper()
	c, err := New(ImageFramebuffer(image.NewRGBA(image.Rect(0, 0, w, h))), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Shutdown() })
	return c
}

// framebuffer returns the image behind an ImageFramebuffer.
func framebuffer(c *Compositor) *image.RGBA {
	return c.fb.(imageFramebuffer).img
}

func fill(img *image.RGBA, col color.RGBA) {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// addSolidSurface creates a surface with one painted tile of the given size.
func addSolidSurface(t *testing.T, c *Compositor, id SurfaceID, size int, opaque bool, col color.RGBA) TileID {
	t.Helper()
	c.CreateSurface(id, image.Pt(size, size), opaque)
	tid := TileID{Surface: id}
	c.CreateTile(tid)
	paint(t, c, tid, col)
	return tid
}

// paint fills the whole tile through Bind and Unbind.
func paint(t *testing.T, c *Compositor, id TileID, col color.RGBA) {
	t.Helper()
	full := image.Rectangle{Max: c.surfaces[id.Surface].tileSize}
	info, ok := c.Bind(id, full, full)
	if !ok {
		t.Fatalf("Bind(%v) failed", id)
	}
	fill(info.Buffer, col)
	c.Unbind()
}

func tileOf(c *Compositor, id TileID) *tile {
	t, _ := c.lookup(id)
	return t
}

func pixel(c *Compositor, x, y int) color.RGBA {
	return framebuffer(c).RGBAAt(x, y)
}
