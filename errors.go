// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"errors"

	"github.com/gogpu/compositor/internal/parallel"
)

var (
	// ErrClosed is returned by Shutdown when the compositor was already shut
	// down.
	ErrClosed = parallel.ErrClosed

	// ErrNoFramebuffer is returned by New when neither a framebuffer nor a
	// native compositor is provided.
	ErrNoFramebuffer = errors.New("compositor: no framebuffer")

	// ErrUnsupportedFormat is returned for texture formats other than
	// RGBA8Unorm and BGRA8Unorm.
	ErrUnsupportedFormat = errors.New("compositor: unsupported texture format")
)
