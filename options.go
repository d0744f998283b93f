package compositor

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Option configures a Compositor during creation.
// Use functional options to customize Compositor behavior.
//
// Example:
//
//	// Software compositing into an image
//	c, err := compositor.New(compositor.ImageFramebuffer(img))
//
//	// Hand frames to a native compositor instead
//	c, err := compositor.New(nil, compositor.WithNativeCompositor(native))
type Option func(*options)

// options holds optional configuration for Compositor creation.
type options struct {
	native   NativeCompositor
	device   gpucontext.DeviceProvider
	external ExternalImageSource
	format   gputypes.TextureFormat
}

// defaultOptions returns the default compositor options.
func defaultOptions() options {
	return options{
		format: gputypes.TextureFormatUndefined, // resolved in New
	}
}

// WithNativeCompositor selects an external compositor in place of the
// software path. Surfaces and tiles are still managed by the Compositor so
// that tiles can be bound for painting.
func WithNativeCompositor(n NativeCompositor) Option {
	return func(o *options) {
		o.native = n
	}
}

// WithDeviceProvider attaches the host GPU context. Its surface format
// becomes the format of the framebuffer and of every tile buffer, unless
// WithFormat overrides it.
//
// Example:
//
//	c, err := compositor.New(fb, compositor.WithDeviceProvider(app))
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.device = p
	}
}

// WithExternalImages sets the source used to lock the images of external
// surfaces.
func WithExternalImages(src ExternalImageSource) Option {
	return func(o *options) {
		o.external = src
	}
}

// WithFormat sets the texture format of the framebuffer and tile buffers.
// Only RGBA8Unorm and BGRA8Unorm are supported.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.format = f
	}
}

// resolveFormat picks the explicit format, then the device surface format,
// then RGBA8Unorm.
func (o *options) resolveFormat() gputypes.TextureFormat {
	if o.format != gputypes.TextureFormatUndefined {
		return o.format
	}
	if o.device != nil {
		if f := o.device.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			return f
		}
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func supportedFormat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatRGBA8Unorm || f == gputypes.TextureFormatBGRA8Unorm
}
