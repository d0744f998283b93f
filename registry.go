package compositor

import (
	"image"

	"github.com/gogpu/compositor/internal/parallel"
)

// surface is an ordered collection of tiles sharing one tile size.
type surface struct {
	id       SurfaceID
	tileSize image.Point
	opaque   bool
	tiles    []*tile

	// external is set for single-tile surfaces sourced from an
	// ExternalImageSource.
	external *ExternalImageID
	src      image.Image // locked for the current frame
	flipY    bool
}

// tile is one fixed-size region of a surface's backing store.
type tile struct {
	id    TileID
	buf   *image.RGBA
	valid image.Rectangle // tile-local

	invalid bool

	// Per-frame state, reset by EndFrame.
	overlaps int
	node     parallel.NodeID
	entry    int
	rect     image.Rectangle // clipped device rectangle
}

func newTile(id TileID, buf *image.RGBA) *tile {
	t := &tile{id: id, buf: buf}
	t.resetFrame()
	return t
}

func (t *tile) resetFrame() {
	t.overlaps = 0
	t.node = parallel.NoNode
	t.entry = -1
	t.rect = image.Rectangle{}
}

// origin returns the tile's offset in surface space.
func (s *surface) origin(t *tile) image.Point {
	return image.Pt(t.id.X*s.tileSize.X, t.id.Y*s.tileSize.Y)
}

func (s *surface) find(x, y int) (int, *tile) {
	for i, t := range s.tiles {
		if t.id.X == x && t.id.Y == y {
			return i, t
		}
	}
	return -1, nil
}

// CreateSurface registers a tiled surface. Creating an id that already exists
// is ignored.
func (c *Compositor) CreateSurface(id SurfaceID, tileSize image.Point, opaque bool) {
	if !c.usable("CreateSurface") {
		return
	}
	if tileSize.X <= 0 || tileSize.Y <= 0 {
		Logger().Warn("compositor: invalid tile size", "surface", id, "size", tileSize)
		return
	}
	c.createSurface(&surface{id: id, tileSize: tileSize, opaque: opaque})
}

// CreateExternalSurface registers a surface whose single tile is sourced from
// an external image; see AttachExternalImage.
func (c *Compositor) CreateExternalSurface(id SurfaceID, opaque bool) {
	if !c.usable("CreateExternalSurface") {
		return
	}
	c.createSurface(&surface{
		id:     id,
		opaque: opaque,
		tiles:  []*tile{newTile(TileID{Surface: id}, nil)},
	})
}

func (c *Compositor) createSurface(s *surface) {
	if _, ok := c.surfaces[s.id]; ok {
		Logger().Warn("compositor: surface already exists", "surface", s.id)
		return
	}
	c.surfaces[s.id] = s
}

// DestroySurface releases a surface and all of its tiles. Unknown ids are
// ignored. While a frame is compositing the surface is destroyed by
// EndFrame.
func (c *Compositor) DestroySurface(id SurfaceID) {
	if !c.usable("DestroySurface") {
		return
	}
	if c.deferOp("DestroySurface", func() { c.destroySurface(id) }) {
		return
	}
	c.destroySurface(id)
}

func (c *Compositor) destroySurface(id SurfaceID) {
	s, ok := c.surfaces[id]
	if !ok {
		Logger().Debug("compositor: unknown surface", "surface", id)
		return
	}
	for _, t := range s.tiles {
		c.releaseTile(t)
	}
	delete(c.surfaces, id)
}

// AttachExternalImage sources the single tile of an external surface from
// ext. Its validity rectangle is taken from the locked image each frame.
func (c *Compositor) AttachExternalImage(id SurfaceID, ext ExternalImageID) {
	if !c.usable("AttachExternalImage") {
		return
	}
	if c.deferOp("AttachExternalImage", func() { c.attachExternalImage(id, ext) }) {
		return
	}
	c.attachExternalImage(id, ext)
}

func (c *Compositor) attachExternalImage(id SurfaceID, ext ExternalImageID) {
	s, ok := c.surfaces[id]
	if !ok {
		Logger().Debug("compositor: unknown surface", "surface", id)
		return
	}
	if s.tileSize != (image.Point{}) {
		Logger().Warn("compositor: external image attached to tiled surface", "surface", id)
		return
	}
	s.external = &ext
}

// CreateTile allocates the backing buffer of one tile. Unknown surfaces and
// existing tiles are ignored.
func (c *Compositor) CreateTile(id TileID) {
	if !c.usable("CreateTile") {
		return
	}
	s, ok := c.surfaces[id.Surface]
	if !ok {
		Logger().Debug("compositor: unknown surface", "surface", id.Surface)
		return
	}
	if s.tileSize == (image.Point{}) {
		Logger().Warn("compositor: tile created on external surface", "surface", id.Surface)
		return
	}
	if _, t := s.find(id.X, id.Y); t != nil {
		return
	}
	buf := c.buffers.Get(s.tileSize.X, s.tileSize.Y)
	s.tiles = append(s.tiles, newTile(id, buf))
}

// DestroyTile releases one tile. Unknown ids are ignored. While a frame is
// compositing the tile is destroyed by EndFrame.
func (c *Compositor) DestroyTile(id TileID) {
	if !c.usable("DestroyTile") {
		return
	}
	if c.deferOp("DestroyTile", func() { c.destroyTile(id) }) {
		return
	}
	c.destroyTile(id)
}

func (c *Compositor) destroyTile(id TileID) {
	t, s := c.lookup(id)
	if t == nil || s.tileSize == (image.Point{}) {
		return
	}
	i, _ := s.find(id.X, id.Y)
	s.tiles = append(s.tiles[:i], s.tiles[i+1:]...)
	c.releaseTile(t)
}

func (c *Compositor) releaseTile(t *tile) {
	if c.bound == t {
		c.bound = nil
	}
	c.buffers.Put(t.buf)
	t.buf = nil
	if t.node != parallel.NoNode {
		c.graph.Free(t.node)
		t.node = parallel.NoNode
	}
}

// InvalidateTile marks a tile as awaiting new pixels and records its new
// validity rectangle, in tile-local coordinates. The tile must be painted
// with Bind and Unbind during the next frame before its composite runs.
func (c *Compositor) InvalidateTile(id TileID, valid image.Rectangle) {
	if !c.usable("InvalidateTile") {
		return
	}
	if c.deferOp("InvalidateTile", func() { c.invalidateTile(id, valid) }) {
		return
	}
	c.invalidateTile(id, valid)
}

func (c *Compositor) invalidateTile(id TileID, valid image.Rectangle) {
	t, s := c.lookup(id)
	if t == nil || s.external != nil || s.tileSize == (image.Point{}) {
		return
	}
	t.invalid = true
	t.valid = valid.Intersect(image.Rectangle{Max: s.tileSize})
}

// lookup returns the tile and its surface, or nil when either is unknown.
func (c *Compositor) lookup(id TileID) (*tile, *surface) {
	s, ok := c.surfaces[id.Surface]
	if !ok {
		Logger().Debug("compositor: unknown surface", "surface", id.Surface)
		return nil, nil
	}
	_, t := s.find(id.X, id.Y)
	if t == nil {
		Logger().Debug("compositor: unknown tile", "surface", id.Surface, "x", id.X, "y", id.Y)
		return nil, nil
	}
	return t, s
}

// Bind starts painting a tile. dirty is the area about to be painted and
// valid the tile's new validity rectangle, both tile-local. It returns false
// for unknown and external tiles.
//
// While compositing, the tile is only drawn inside the area analysed by
// StartCompositing; content outside it shows from the next frame.
func (c *Compositor) Bind(id TileID, dirty, valid image.Rectangle) (SurfaceInfo, bool) {
	if !c.usable("Bind") {
		return SurfaceInfo{}, false
	}
	if c.bound != nil {
		Logger().Warn("compositor: Bind without Unbind", "tile", c.bound.id)
		c.Unbind()
	}
	t, s := c.lookup(id)
	if t == nil || t.buf == nil {
		return SurfaceInfo{}, false
	}
	if c.compositing && t.entry >= 0 && !t.invalid {
		Logger().Warn("compositor: painting a tile that may be compositing", "tile", id)
	}

	bounds := image.Rectangle{Max: s.tileSize}
	dirty = dirty.Intersect(bounds)
	t.valid = valid.Intersect(bounds)
	c.bound = t

	buf, _ := t.buf.SubImage(dirty).(*image.RGBA)
	return SurfaceInfo{
		Buffer: buf,
		Dirty:  dirty,
		Valid:  t.valid,
		Format: c.format,
	}, true
}

// Unbind finishes painting the bound tile. During a frame this releases the
// tile's own composite and every later composite that was only waiting on
// it.
func (c *Compositor) Unbind() {
	t := c.bound
	if t == nil {
		return
	}
	c.bound = nil

	if !c.compositing || t.entry < 0 || !t.invalid {
		t.invalid = false
		return
	}
	t.invalid = false
	c.resolve(t)
}

// deferOp queues fn to run at EndFrame when a frame is compositing. It
// reports whether fn was deferred.
func (c *Compositor) deferOp(op string, fn func()) bool {
	if !c.compositing {
		return false
	}
	Logger().Debug("compositor: deferred until end of frame", "op", op)
	c.deferred = append(c.deferred, fn)
	return true
}
