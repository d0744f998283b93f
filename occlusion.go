package compositor

import "image"

// span is a half-open integer range [lo, hi) along one axis.
type span struct {
	lo, hi int
}

func xspan(r image.Rectangle) span { return span{r.Min.X, r.Max.X} }
func yspan(r image.Rectangle) span { return span{r.Min.Y, r.Max.Y} }

// includes reports whether inner lies within s.
func (s span) includes(inner span) bool {
	return s.lo <= inner.lo && s.hi >= inner.hi
}

// overlaps reports whether s covers the start or the end of inner.
func (s span) overlaps(inner span) bool {
	return (s.lo <= inner.lo && s.hi > inner.lo) || (s.lo < inner.hi && s.hi >= inner.hi)
}

// touches reports whether s and o overlap or are adjacent.
func (s span) touches(o span) bool {
	return s.lo <= o.hi && o.lo <= s.hi
}

// subtract returns the part of s outside sub. sub must overlap one end of s
// without including it.
func (s span) subtract(sub span) span {
	if sub.lo <= s.lo {
		return span{sub.hi, s.hi}
	}
	return span{s.lo, sub.lo}
}

func (s span) union(o span) span {
	return span{min(s.lo, o.lo), max(s.hi, o.hi)}
}

func withX(r image.Rectangle, x span) image.Rectangle {
	return image.Rect(x.lo, r.Min.Y, x.hi, r.Max.Y)
}

func withY(r image.Rectangle, y span) image.Rectangle {
	return image.Rect(r.Min.X, y.lo, r.Max.X, y.hi)
}

// occluder returns the device rectangle fully covered by opaque pixels of
// e, or the empty rectangle when e cannot occlude anything.
func (e *entry) occluder() image.Rectangle {
	s := e.s
	if !s.opaque || !e.transform.IsAxisAligned() {
		return image.Rectangle{}
	}
	if s.external != nil && s.src == nil {
		return image.Rectangle{}
	}

	// Tiles never overlap, so the content is a solid rectangle exactly when
	// the tile areas add up to the bounding box.
	bounds := s.contentBounds()
	area := 0
	for _, t := range s.tiles {
		area += t.valid.Dx() * t.valid.Dy()
	}
	if bounds.Empty() || area != bounds.Dx()*bounds.Dy() {
		return image.Rectangle{}
	}
	return e.transform.InnerRect(bounds).Intersect(e.clip)
}

// occludeSurfaces shrinks the clip rectangles of surfaces hidden behind
// opaque surfaces added after them. A clip is only shrunk when the result
// is still a single rectangle. Opaque surfaces that line up with an
// occluder on one axis extend it along the other.
func (c *Compositor) occludeSurfaces() {
	occ := make([]image.Rectangle, len(c.entries))
	for i := range c.entries {
		occ[i] = c.entries[i].occluder()
	}

	for i := range c.entries {
		if occ[i].Empty() {
			continue
		}
		x, y := xspan(occ[i]), yspan(occ[i])

		for j := i - 1; j >= 0; j-- {
			e := &c.entries[j]
			if !e.clip.Empty() {
				ex, ey := xspan(e.clip), yspan(e.clip)
				switch {
				case x.includes(ex) && y.includes(ey):
					e.clip = image.Rectangle{}
				case x.includes(ex) && y.overlaps(ey):
					e.clip = withY(e.clip, ey.subtract(y))
				case y.includes(ey) && x.overlaps(ex):
					e.clip = withX(e.clip, ex.subtract(x))
				}
			}

			if occ[j].Empty() {
				continue
			}
			ox, oy := xspan(occ[j]), yspan(occ[j])
			switch {
			case ox == x && oy.touches(y):
				y = y.union(oy)
			case oy == y && ox.touches(x):
				x = x.union(ox)
			}
		}
	}
}
