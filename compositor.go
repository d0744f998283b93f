package compositor

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/internal/parallel"
)

// Compositor owns the surfaces and tiles of a display and composites them
// onto a framebuffer once per frame.
//
// All methods must be called from the same goroutine. Composite jobs run on
// a background worker and, during EndFrame, on the calling goroutine.
type Compositor struct {
	fb       Framebuffer
	native   NativeCompositor
	external ExternalImageSource
	format   gputypes.TextureFormat

	graph   *parallel.Graph
	sched   *parallel.Scheduler
	buffers *parallel.BufferPool

	surfaces map[SurfaceID]*surface

	// Frame state, valid between BeginFrame and EndFrame.
	entries     []entry
	late        []entry
	limit       image.Rectangle
	bounded     bool
	dst         *image.RGBA
	fbLocked    bool
	compositing bool
	locked      []ExternalImageID
	bound       *tile
	deferred    []func()

	stats  FrameStats
	closed bool
}

// New creates a compositor that composites into fb and starts its worker
// goroutine. fb may be nil only when a native compositor is configured.
//
// The caller must call Shutdown when done.
func New(fb Framebuffer, opts ...Option) (*Compositor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if fb == nil && o.native == nil {
		return nil, ErrNoFramebuffer
	}
	format := o.resolveFormat()
	if !supportedFormat(format) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}

	graph := parallel.NewGraph()
	c := &Compositor{
		fb:       fb,
		native:   o.native,
		external: o.external,
		format:   format,
		graph:    graph,
		sched:    parallel.NewScheduler(graph),
		buffers:  parallel.NewBufferPool(),
		surfaces: make(map[SurfaceID]*surface),
	}

	attrs := []any{"format", format, "native", c.native != nil}
	if o.device != nil {
		info := o.device.AdapterInfo()
		attrs = append(attrs, "adapter", info.Name, "adapterType", info.Type)
	}
	Logger().Info("compositor started", attrs...)
	return c, nil
}

// Format returns the texture format of the framebuffer and tile buffers.
func (c *Compositor) Format() gputypes.TextureFormat {
	return c.format
}

// Stats returns the statistics of the last completed frame.
func (c *Compositor) Stats() FrameStats {
	return c.stats
}

// Shutdown stops the composite worker and releases every tile buffer.
// A frame still in progress is abandoned. Shutdown returns ErrClosed when
// called more than once.
func (c *Compositor) Shutdown() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true

	if err := c.sched.Shutdown(); err != nil {
		return fmt.Errorf("compositor: shutdown: %w", err)
	}
	c.unlockFrame()
	for id := range c.surfaces {
		c.destroySurface(id)
	}

	Logger().Info("compositor shut down")
	return nil
}

// usable reports whether frame and registry calls may proceed.
func (c *Compositor) usable(op string) bool {
	if c.closed {
		Logger().Warn("compositor: call after shutdown", "op", op)
		return false
	}
	return true
}
