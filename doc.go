// Package compositor schedules software composites of tiled surfaces onto a
// framebuffer.
//
// # Overview
//
// A frame builder registers long-lived surfaces made of fixed-size tiles,
// paints tiles through Bind/Unbind, and every frame submits the surfaces to
// show with their transform, clip rectangle and filter. The compositor works
// out which tiles may be blended concurrently and which must wait for an
// overlapping tile submitted earlier, and runs the composites on a dedicated
// worker goroutine. The producer goroutine executes ready composites itself
// while it waits for a frame to finish.
//
// # Frame Lifecycle
//
//	c, err := compositor.New(compositor.ImageFramebuffer(fb))
//	if err != nil {
//	    return err
//	}
//	defer c.Shutdown()
//
//	c.BeginFrame()
//	c.AddSurface(background, compositor.Identity(), bounds, compositor.FilterLinear)
//	c.AddSurface(overlay, compositor.Translate(40, 40), bounds, compositor.FilterLinear)
//	c.StartCompositing(dirty)
//
//	// Tiles invalidated this frame are painted after StartCompositing;
//	// each Unbind releases the composites waiting on that tile.
//	info, ok := c.Bind(tile, dirtyRect, validRect)
//	...
//	c.Unbind()
//
//	stats := c.EndFrame()
//
// # Ordering
//
// Only overlaps against surfaces submitted earlier in the frame create
// dependencies, so a background tile is never composited after a foreground
// tile that overlaps it. Opaque surfaces cull the parts of earlier
// surfaces they fully cover, as long as the remainder stays a single
// rectangle.
//
// # Thread Safety
//
// Compositor methods must be called from one goroutine. The composite worker
// runs concurrently and only shares the job queue and atomic counters with
// it.
package compositor
