// Package composite implements the composite job executed by the tile
// compositor: copying one locked source rectangle onto the shared locked
// framebuffer, optionally resampled through an affine transform.
//
// A job is split into up to MaxBands horizontal bands so that several
// goroutines can write disjoint scanline ranges of one destination
// rectangle without locking.
package composite

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Band splitting constants.
const (
	// BandSize is the minimum clipped destination width and height, in
	// pixels, for a job to be split, and the minimum height of one band.
	BandSize = 64

	// MaxBands is the largest number of bands a job is split into.
	MaxBands = 4
)

// Params describes one composite.
type Params struct {
	// Src is the locked, read-only source image.
	Src image.Image

	// SrcRect is the source rectangle in Src coordinates.
	SrcRect image.Rectangle

	// Dst is the locked destination framebuffer shared by every job of a
	// frame.
	Dst *image.RGBA

	// DstRect is the device-space rectangle SrcRect maps onto.
	DstRect image.Rectangle

	// Clip is the frame clip rectangle in device space.
	Clip image.Rectangle

	// Transform maps source coordinates to device coordinates.
	Transform f64.Aff3

	Opaque bool
	FlipY  bool
	Filter Filter
}

// Job is a composite ready to be executed band by band.
type Job struct {
	src     image.Image
	srcRect image.Rectangle
	dst     *image.RGBA
	clipped image.Rectangle
	m       f64.Aff3
	op      draw.Op
	filter  Filter
	bands   int
}

// NewJob builds a job from p. It returns false, and no job, when the
// clipped destination rectangle is empty or the transform is degenerate.
func NewJob(p Params) (*Job, bool) {
	if p.Src == nil || p.Dst == nil || p.SrcRect.Empty() {
		return nil, false
	}
	clipped := p.DstRect.Intersect(p.Clip).Intersect(p.Dst.Rect)
	if clipped.Empty() {
		return nil, false
	}
	if det := p.Transform[0]*p.Transform[4] - p.Transform[1]*p.Transform[3]; det == 0 || math.IsNaN(det) {
		return nil, false
	}

	m := p.Transform
	if p.FlipY {
		m = FlipY(p.DstRect, m)
	}

	op := draw.Over
	if p.Opaque {
		op = draw.Src
	}

	return &Job{
		src:     p.Src,
		srcRect: p.SrcRect,
		dst:     p.Dst,
		clipped: clipped,
		m:       m,
		op:      op,
		filter:  p.Filter,
		bands:   BandCount(clipped),
	}, true
}

// Bands returns the number of bands the job is split into.
func (j *Job) Bands() int {
	return j.bands
}

// Clipped returns the destination rectangle after clipping.
func (j *Job) Clipped() image.Rectangle {
	return j.clipped
}

// ProcessBand composites the scanlines of band out of bands.
func (j *Job) ProcessBand(band, bands int) {
	r := BandRect(j.clipped, band, bands)
	if r.Empty() {
		return
	}
	dst, ok := j.dst.SubImage(r).(*image.RGBA)
	if !ok {
		return
	}

	if dx, dy, ok := integerTranslation(j.m); ok {
		dp := j.srcRect.Min.Add(image.Pt(dx, dy))
		draw.Copy(dst, dp, j.src, j.srcRect, j.op, nil)
		return
	}
	j.filter.Interpolator().Transform(dst, j.m, j.src, j.srcRect, j.op, nil)
}

// BandCount returns how many bands a job with the given clipped destination
// is split into.
func BandCount(clipped image.Rectangle) int {
	w, h := clipped.Dx(), clipped.Dy()
	if w < BandSize || h < BandSize {
		return 1
	}
	return min(h/BandSize, MaxBands)
}

// BandRect returns the rows of clipped that belong to band. The row range
// depends only on the band index, so bands may be processed in any order.
func BandRect(clipped image.Rectangle, band, bands int) image.Rectangle {
	if bands < 1 || band < 0 || band >= bands {
		return image.Rectangle{}
	}
	h := clipped.Dy()
	y0 := clipped.Min.Y + h*band/bands
	y1 := clipped.Min.Y + h*(band+1)/bands
	return image.Rect(clipped.Min.X, y0, clipped.Max.X, y1)
}

// FlipY returns m followed by a vertical flip inside r.
func FlipY(r image.Rectangle, m f64.Aff3) f64.Aff3 {
	sum := float64(r.Min.Y + r.Max.Y)
	return f64.Aff3{
		m[0], m[1], m[2],
		-m[3], -m[4], sum - m[5],
	}
}

// integerTranslation reports whether m is a pure translation by whole
// pixels and returns the offset.
func integerTranslation(m f64.Aff3) (dx, dy int, ok bool) {
	if m[0] != 1 || m[1] != 0 || m[3] != 0 || m[4] != 1 {
		return 0, 0, false
	}
	if m[2] != math.Trunc(m[2]) || m[5] != math.Trunc(m[5]) {
		return 0, 0, false
	}
	return int(m[2]), int(m[5]), true
}
