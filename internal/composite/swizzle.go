package composite

import (
	"image"
	"image/color"
)

// Swizzle returns a view of img with the red and blue channels exchanged.
// It is used when a packed source is stored in the opposite byte order
// (BGRA vs RGBA) from the framebuffer.
func Swizzle(img *image.RGBA) image.Image {
	return swizzled{img}
}

type swizzled struct {
	img *image.RGBA
}

func (s swizzled) ColorModel() color.Model { return color.RGBAModel }

func (s swizzled) Bounds() image.Rectangle { return s.img.Rect }

func (s swizzled) At(x, y int) color.Color {
	c := s.img.RGBAAt(x, y)
	c.R, c.B = c.B, c.R
	return c
}
