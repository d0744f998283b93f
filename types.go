package compositor

import (
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/internal/composite"
)

// SurfaceID identifies a surface. Ids are chosen by the frame builder.
type SurfaceID uint64

// TileID identifies one tile by its surface and grid coordinates.
type TileID struct {
	Surface SurfaceID
	X, Y    int
}

// ExternalImageID identifies an image owned by an ExternalImageSource.
type ExternalImageID uint64

// Filter selects the resampling filter of a surface for one frame.
type Filter = composite.Filter

// Resampling filters.
const (
	FilterNearest    = composite.FilterNearest
	FilterLinear     = composite.FilterLinear
	FilterFastLinear = composite.FilterFastLinear
	FilterCubic      = composite.FilterCubic
)

// PlanarImage is a three-plane YCbCr external image.
type PlanarImage = composite.Planes

// ColorSpace tags the YCbCr matrix of a PlanarImage.
type ColorSpace = composite.ColorSpace

// YCbCr color spaces.
const (
	ColorSpaceRec601   = composite.ColorSpaceRec601
	ColorSpaceRec709   = composite.ColorSpaceRec709
	ColorSpaceRec2020  = composite.ColorSpaceRec2020
	ColorSpaceIdentity = composite.ColorSpaceIdentity
)

// ExternalImage is a locked external image. Exactly one of Color and Planar
// is set.
type ExternalImage struct {
	// Format is the channel order of Color. It is ignored for planar
	// images.
	Format gputypes.TextureFormat

	Color  *image.RGBA
	Planar *PlanarImage

	// FlipY composites the image upside down.
	FlipY bool
}

// bounds returns the size of the image, anchored at the origin.
func (e ExternalImage) bounds() image.Rectangle {
	switch {
	case e.Color != nil:
		return image.Rectangle{Max: e.Color.Rect.Size()}
	case e.Planar != nil:
		return image.Rectangle{Max: e.Planar.Rect.Size()}
	default:
		return image.Rectangle{}
	}
}

// ExternalImageSource locks and unlocks images produced outside the
// compositor, such as decoded video frames.
//
// Lock is called once per frame for every external surface shown and the
// image stays locked until EndFrame returns, when Unlock is called.
type ExternalImageSource interface {
	Lock(id ExternalImageID) (ExternalImage, bool)
	Unlock(id ExternalImageID)
}

// Framebuffer is the destination of software composites.
//
// Lock is called once per frame by StartCompositing; the image is written
// concurrently by composite jobs until EndFrame calls Unlock. Lock returns
// false when the framebuffer is unavailable, in which case the frame's
// composites are skipped.
type Framebuffer interface {
	Lock() (*image.RGBA, bool)
	Unlock()
}

// ImageFramebuffer returns a Framebuffer that always locks img.
func ImageFramebuffer(img *image.RGBA) Framebuffer {
	return imageFramebuffer{img: img}
}

type imageFramebuffer struct {
	img *image.RGBA
}

func (f imageFramebuffer) Lock() (*image.RGBA, bool) { return f.img, f.img != nil }
func (f imageFramebuffer) Unlock()                   {}

// SurfaceInfo describes the backing buffer of a bound tile.
type SurfaceInfo struct {
	// Buffer is the tile's backing buffer restricted to the dirty
	// rectangle. Its coordinates are tile-local.
	Buffer *image.RGBA

	// Dirty is the area to paint, in tile-local coordinates.
	Dirty image.Rectangle

	// Valid is the new validity rectangle of the tile.
	Valid image.Rectangle

	// Format is the channel order of Buffer.
	Format gputypes.TextureFormat
}

// NativeCompositor is an external compositor that replaces the software
// path. When one is configured the frame calls are forwarded to it and no
// composite jobs are built.
type NativeCompositor interface {
	AddSurface(id SurfaceID, transform Transform, clip image.Rectangle, filter Filter)
	StartCompositing(dirty []image.Rectangle)
	EndFrame()
}

// FrameStats summarizes the scheduling of one frame.
type FrameStats struct {
	// Entries is the number of surfaces added before StartCompositing.
	Entries int

	// Culled is the number of entries dropped because their clip rectangle
	// became empty after tightening and occlusion culling.
	Culled int

	// Immediate is the number of tiles queued while seeding the graph.
	Immediate int

	// Deferred is the number of tiles that had to wait for a paint.
	Deferred int

	// Forced is the number of invalid tiles that were never painted and
	// were composited with their stale contents at EndFrame.
	Forced int

	// Late is the number of tiles of surfaces added after
	// StartCompositing.
	Late int

	// Skipped is the number of tiles whose composite was dropped for a
	// missing resource or degenerate geometry.
	Skipped int
}
