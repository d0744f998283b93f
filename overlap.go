package compositor

import (
	"image"

	"github.com/gogpu/compositor/internal/composite"
	"github.com/gogpu/compositor/internal/parallel"
)

// initOverlaps adds tile t of entry i to the frame's dependency graph.
//
// t waits on its own paint when invalid, and on every tile of an earlier
// entry that overlaps it and is itself still waiting. It is registered as a
// child of every overlapping earlier tile regardless, so its composite
// never runs before theirs. A tile with nothing to wait on is queued.
func (c *Compositor) initOverlaps(i int, t *tile) {
	e := &c.entries[i]
	t.rect = e.tileRect(t)
	if t.rect.Empty() {
		return
	}
	t.entry = i
	t.node = c.graph.Alloc()

	overlaps := 0
	if t.invalid {
		overlaps = 1
	}
	for j := range i {
		prev := &c.entries[j]
		if !prev.clip.Overlaps(t.rect) {
			continue
		}
		for _, u := range prev.s.tiles {
			if u.entry != j || !u.rect.Overlaps(t.rect) {
				continue
			}
			if u.overlaps > 0 {
				overlaps++
			}
			c.graph.AddChild(u.node, t.node)
		}
	}

	t.overlaps = overlaps
	if overlaps == 0 {
		c.stats.Immediate++
		c.queueComposite(t)
		return
	}
	c.stats.Deferred++
}

// resolve drops one overlap from t. Once t has none left its composite is
// queued, and every later tile overlapping t drops the overlap it counted
// on t, recursively.
func (c *Compositor) resolve(t *tile) {
	work := []*tile{t}
	for len(work) > 0 {
		t := work[0]
		work = work[1:]
		if t.overlaps <= 0 {
			continue
		}
		t.overlaps--
		if t.overlaps > 0 {
			continue
		}
		c.queueComposite(t)

		for j := t.entry + 1; j < len(c.entries); j++ {
			next := &c.entries[j]
			if !next.clip.Overlaps(t.rect) {
				continue
			}
			for _, u := range next.s.tiles {
				if u.entry == j && u.overlaps > 0 && u.rect.Overlaps(t.rect) {
					work = append(work, u)
				}
			}
		}
	}
}

// queueComposite installs the composite of t on its node.
func (c *Compositor) queueComposite(t *tile) {
	e := &c.entries[t.entry]
	job, bands := c.buildJob(e, t)
	c.sched.Queue(t.node, job, bands)
}

// buildJob returns the composite of t as shown by e. The composite is
// clipped to t.rect, the area its dependencies were analysed over, even when
// a later Bind widened the tile's valid rectangle. When the composite cannot
// run it returns a nil job of one band, so the node still retires and
// releases its children.
func (c *Compositor) buildJob(e *entry, t *tile) (parallel.Job, int) {
	src, flipY := e.s.source(t)
	if c.dst == nil || src == nil {
		c.skip(t, "missing resource")
		return nil, 1
	}

	origin := src.Bounds().Min
	m := e.tileTransform(t)
	job, ok := composite.NewJob(composite.Params{
		Src:       src,
		SrcRect:   t.valid.Add(origin),
		Dst:       c.dst,
		DstRect:   m.OuterRect(t.valid),
		Clip:      t.rect,
		Transform: m.Multiply(Translate(float64(-origin.X), float64(-origin.Y))).Aff3(),
		Opaque:    e.s.opaque,
		FlipY:     flipY,
		Filter:    e.filter,
	})
	if !ok {
		c.skip(t, "degenerate geometry")
		return nil, 1
	}
	return job, job.Bands()
}

func (c *Compositor) skip(t *tile, reason string) {
	Logger().Debug("compositor: composite skipped", "tile", t.id, "reason", reason)
	c.stats.Skipped++
}

// source returns the locked pixels of t.
func (s *surface) source(t *tile) (image.Image, bool) {
	if s.external != nil {
		return s.src, s.flipY
	}
	if t.buf == nil {
		return nil, false
	}
	return t.buf, false
}
