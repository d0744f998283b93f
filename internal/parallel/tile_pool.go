package parallel

import (
	"image"
	"sync"
)

// BufferPool recycles tile backing buffers via sync.Pool.
//
// Tiles of one surface share a size, and surfaces are created and destroyed
// often as content scrolls, so buffers are pooled per size.
//
// Thread safety: BufferPool is safe for concurrent use.
type BufferPool struct {
	// pools holds one sync.Pool per buffer size.
	// Key format: (width << 16) | height
	pools sync.Map
}

// NewBufferPool creates a new buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// Get returns a zeroed buffer with bounds (0,0)-(width,height).
// Returns nil for an empty size.
func (p *BufferPool) Get(width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return nil
	}

	pool := p.getOrCreatePool(poolKey(width, height), width, height)
	buf := pool.Get().(*image.RGBA)
	clear(buf.Pix)
	return buf
}

// Put returns buf to the pool. If buf is nil, this is a no-op.
func (p *BufferPool) Put(buf *image.RGBA) {
	if buf == nil {
		return
	}

	size := buf.Rect.Size()
	if buf.Rect.Min != (image.Point{}) || size.X <= 0 || size.Y <= 0 {
		// Sub-images are never handed out, let GC reclaim it.
		return
	}
	if pool, ok := p.pools.Load(poolKey(size.X, size.Y)); ok {
		pool.(*sync.Pool).Put(buf)
	}
}

// poolKey creates a unique key for a buffer size.
// Width and height are clamped to 16-bit values to prevent overflow.
func poolKey(width, height int) uint32 {
	w := width
	h := height
	if w > 0xFFFF {
		w = 0xFFFF
	}
	if h > 0xFFFF {
		h = 0xFFFF
	}
	return uint32(w)<<16 | uint32(h) //nolint:gosec // values are clamped above
}

// getOrCreatePool gets or creates a sync.Pool for the given dimensions.
func (p *BufferPool) getOrCreatePool(key uint32, width, height int) *sync.Pool {
	if pool, ok := p.pools.Load(key); ok {
		return pool.(*sync.Pool)
	}

	newPool := &sync.Pool{
		New: func() any {
			return image.NewRGBA(image.Rect(0, 0, width, height))
		},
	}

	// Another goroutine may have beaten us to it.
	actual, _ := p.pools.LoadOrStore(key, newPool)
	return actual.(*sync.Pool)
}
