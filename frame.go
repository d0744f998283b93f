package compositor

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/internal/composite"
	"github.com/gogpu/compositor/internal/parallel"
)

var errNoPixels = errors.New("compositor: external image has no pixels")

// entry is one surface submitted for the current frame.
type entry struct {
	s         *surface
	transform Transform
	clip      image.Rectangle
	filter    Filter
}

// tileTransform maps tile-local coordinates of t to device space.
func (e *entry) tileTransform(t *tile) Transform {
	o := e.s.origin(t)
	return e.transform.Multiply(Translate(float64(o.X), float64(o.Y)))
}

// tileRect returns the device rectangle of t's valid content, clipped.
func (e *entry) tileRect(t *tile) image.Rectangle {
	return e.tileTransform(t).OuterRect(t.valid).Intersect(e.clip)
}

// BeginFrame starts a new frame. A frame left compositing is finished first.
func (c *Compositor) BeginFrame() {
	if !c.usable("BeginFrame") {
		return
	}
	if c.compositing {
		Logger().Warn("compositor: BeginFrame while compositing")
		c.EndFrame()
	}
	c.entries = c.entries[:0]
	c.late = c.late[:0]
	c.stats = FrameStats{}
}

// AddSurface shows a surface in the current frame, on top of every surface
// added before it. transform maps surface space to device space and clip is
// a device-space clip rectangle.
//
// Surfaces added after StartCompositing are composited one at a time once
// every other composite of the frame has finished.
func (c *Compositor) AddSurface(id SurfaceID, transform Transform, clip image.Rectangle, filter Filter) {
	if !c.usable("AddSurface") {
		return
	}
	if c.native != nil {
		c.native.AddSurface(id, transform, clip, filter)
		return
	}
	s, ok := c.surfaces[id]
	if !ok {
		Logger().Debug("compositor: unknown surface", "surface", id)
		return
	}
	if c.inFrame(s) {
		Logger().Warn("compositor: surface added twice in one frame", "surface", id)
		return
	}

	e := entry{s: s, transform: transform, clip: clip, filter: filter}
	if c.compositing {
		if s.external != nil {
			c.lockExternal(s)
		}
		c.late = append(c.late, e)
		return
	}
	c.entries = append(c.entries, e)
}

func (c *Compositor) inFrame(s *surface) bool {
	for i := range c.entries {
		if c.entries[i].s == s {
			return true
		}
	}
	for i := range c.late {
		if c.late[i].s == s {
			return true
		}
	}
	return false
}

// StartCompositing locks the framebuffer, culls and orders the frame's
// surfaces, and queues every composite that is not waiting on a paint.
// dirty limits compositing to the bounding box of the given device
// rectangles; an empty list means the whole framebuffer.
func (c *Compositor) StartCompositing(dirty []image.Rectangle) {
	if !c.usable("StartCompositing") {
		return
	}
	if c.compositing {
		Logger().Warn("compositor: StartCompositing called twice")
		return
	}
	c.compositing = true
	c.stats.Entries = len(c.entries)

	if c.native != nil {
		c.native.StartCompositing(dirty)
		return
	}

	c.lockFrame()
	c.tightenClips(dirty)
	c.occludeSurfaces()
	c.dropEmpty()

	c.sched.Prepare()
	c.sched.Hold()
	for i := range c.entries {
		for _, t := range c.entries[i].s.tiles {
			c.initOverlaps(i, t)
		}
	}
	c.sched.Release()
}

// EndFrame waits for every composite of the frame, then composites the
// surfaces added late, unlocks the framebuffer and resets the per-tile
// state. Tiles invalidated but never painted are composited with their old
// contents.
func (c *Compositor) EndFrame() FrameStats {
	if !c.usable("EndFrame") {
		return FrameStats{}
	}
	if !c.compositing {
		c.entries = c.entries[:0]
		c.late = c.late[:0]
		return c.stats
	}

	if c.native != nil {
		c.native.EndFrame()
	} else {
		c.flushInvalid()
		c.sched.Wait()
		c.compositeLate()
	}

	c.unlockFrame()
	c.resetFrame()
	c.compositing = false

	deferred := c.deferred
	c.deferred = nil
	for _, fn := range deferred {
		fn()
	}
	return c.stats
}

// flushInvalid releases tiles still waiting on a paint that never came.
func (c *Compositor) flushInvalid() {
	if c.bound != nil {
		Logger().Warn("compositor: EndFrame with a bound tile", "tile", c.bound.id)
		c.Unbind()
	}
	for i := range c.entries {
		for _, t := range c.entries[i].s.tiles {
			if t.entry != i || !t.invalid {
				continue
			}
			Logger().Debug("compositor: tile not painted this frame", "tile", t.id)
			t.invalid = false
			c.stats.Forced++
			c.resolve(t)
		}
	}
}

// compositeLate runs the composites of late entries one at a time.
func (c *Compositor) compositeLate() {
	for i := range c.late {
		e := &c.late[i]
		e.clip = c.tighten(e)
		for _, t := range e.s.tiles {
			t.rect = e.tileRect(t)
			if t.rect.Empty() {
				continue
			}
			t.node = c.graph.Alloc()
			job, bands := c.buildJob(e, t)
			c.sched.Prepare()
			c.sched.Queue(t.node, job, bands)
			c.sched.Wait()
			c.stats.Late++
		}
	}
}

func (c *Compositor) resetFrame() {
	reset := func(entries []entry) {
		for i := range entries {
			for _, t := range entries[i].s.tiles {
				if t.node != parallel.NoNode {
					c.graph.Free(t.node)
				}
				t.resetFrame()
			}
		}
	}
	reset(c.entries)
	reset(c.late)
	c.entries = c.entries[:0]
	c.late = c.late[:0]
}

// lockFrame locks the framebuffer and the images of external surfaces.
func (c *Compositor) lockFrame() {
	c.dst = nil
	if dst, ok := c.fb.Lock(); ok {
		c.dst = dst
		c.fbLocked = true
	} else {
		Logger().Warn("compositor: framebuffer unavailable, skipping composites")
	}
	for i := range c.entries {
		if s := c.entries[i].s; s.external != nil {
			c.lockExternal(s)
		}
	}
}

func (c *Compositor) lockExternal(s *surface) {
	t := s.tiles[0]
	s.src = nil
	t.valid = image.Rectangle{}
	if c.external == nil {
		Logger().Debug("compositor: no external image source", "surface", s.id)
		return
	}
	ext, ok := c.external.Lock(*s.external)
	if !ok {
		Logger().Debug("compositor: external image unavailable", "surface", s.id, "image", *s.external)
		return
	}
	c.locked = append(c.locked, *s.external)

	src, err := c.externalSource(ext)
	if err != nil {
		Logger().Debug("compositor: external image skipped", "surface", s.id, "err", err)
		return
	}
	s.src = src
	s.flipY = ext.FlipY
	t.valid = ext.bounds()
}

// externalSource returns ext as an image in the framebuffer's channel
// order.
func (c *Compositor) externalSource(ext ExternalImage) (image.Image, error) {
	switch {
	case ext.Planar != nil:
		return ext.Planar.Image()
	case ext.Color != nil:
		f := ext.Format
		if f == gputypes.TextureFormatUndefined || f == c.format {
			return ext.Color, nil
		}
		if !supportedFormat(f) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
		}
		return composite.Swizzle(ext.Color), nil
	default:
		return nil, errNoPixels
	}
}

func (c *Compositor) unlockFrame() {
	for _, id := range c.locked {
		c.external.Unlock(id)
	}
	c.locked = c.locked[:0]
	for _, s := range c.surfaces {
		s.src = nil
	}
	if c.fbLocked {
		c.fb.Unlock()
		c.fbLocked = false
	}
	c.dst = nil
}

// tightenClips limits every entry's clip to the dirty region, the
// framebuffer and the device bounds of the surface's valid content.
func (c *Compositor) tightenClips(dirty []image.Rectangle) {
	c.limit, c.bounded = image.Rectangle{}, false
	for _, r := range dirty {
		c.limit = c.limit.Union(r)
		c.bounded = true
	}
	if c.dst != nil {
		if c.bounded {
			c.limit = c.limit.Intersect(c.dst.Rect)
		} else {
			c.limit = c.dst.Rect
		}
		c.bounded = true
	}

	for i := range c.entries {
		c.entries[i].clip = c.tighten(&c.entries[i])
	}
}

func (c *Compositor) tighten(e *entry) image.Rectangle {
	clip := e.clip
	if c.bounded {
		clip = clip.Intersect(c.limit)
	}
	return clip.Intersect(e.transform.OuterRect(e.s.contentBounds()))
}

// contentBounds returns the surface-space bounding box of valid content.
func (s *surface) contentBounds() image.Rectangle {
	var r image.Rectangle
	for _, t := range s.tiles {
		r = r.Union(t.valid.Add(s.origin(t)))
	}
	return r
}

// dropEmpty removes entries whose clip became empty.
func (c *Compositor) dropEmpty() {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.clip.Empty() {
			Logger().Debug("compositor: surface culled", "surface", e.s.id)
			c.stats.Culled++
			continue
		}
		kept = append(kept, e)
	}
	clear(c.entries[len(kept):])
	c.entries = kept
}
