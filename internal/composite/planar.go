// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package composite

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrPlaneTooSmall is returned when a plane holds fewer samples than its
	// stride and rectangle require.
	ErrPlaneTooSmall = errors.New("composite: plane buffer too small")

	// ErrBitDepth is returned for bit depths outside 1..16.
	ErrBitDepth = errors.New("composite: unsupported bit depth")
)

// ColorSpace tags the YCbCr matrix of a planar source.
type ColorSpace uint8

const (
	ColorSpaceRec601 ColorSpace = iota
	ColorSpaceRec709
	ColorSpaceRec2020
	ColorSpaceIdentity
)

// Planes is a three-plane YCbCr source, as produced by video decoders.
//
// Samples of up to 8 bits take one byte. Deeper samples take two bytes,
// little-endian, with the value in the low BitDepth bits; strides are always
// in bytes.
type Planes struct {
	Y, Cb, Cr []byte

	YStride int
	CStride int

	Rect      image.Rectangle
	Subsample image.YCbCrSubsampleRatio

	ColorSpace ColorSpace
	BitDepth   int
}

// Image returns the planes as an 8-bit *image.YCbCr. 8-bit planes are
// wrapped without copying; deeper planes are reduced to 8 bits.
//
// The conversion to RGB always uses the JFIF (full range BT.601) matrix of
// image/color; ColorSpace is carried for callers that care.
func (p *Planes) Image() (*image.YCbCr, error) {
	depth := p.BitDepth
	if depth == 0 {
		depth = 8
	}
	if depth < 1 || depth > 16 {
		return nil, fmt.Errorf("%w: %d", ErrBitDepth, p.BitDepth)
	}

	layout := image.NewYCbCr(p.Rect, p.Subsample)
	yh := p.Rect.Dy()
	ch := len(layout.Cb) / max(layout.CStride, 1)
	bytesPer := 1
	if depth > 8 {
		bytesPer = 2
	}

	if err := checkPlane("Y", p.Y, p.YStride, layout.YStride*bytesPer, yh); err != nil {
		return nil, err
	}
	if err := checkPlane("Cb", p.Cb, p.CStride, layout.CStride*bytesPer, ch); err != nil {
		return nil, err
	}
	if err := checkPlane("Cr", p.Cr, p.CStride, layout.CStride*bytesPer, ch); err != nil {
		return nil, err
	}

	if depth <= 8 {
		return &image.YCbCr{
			Y:              p.Y,
			Cb:             p.Cb,
			Cr:             p.Cr,
			YStride:        p.YStride,
			CStride:        p.CStride,
			SubsampleRatio: p.Subsample,
			Rect:           p.Rect,
		}, nil
	}

	shift := uint(depth - 8) //nolint:gosec // depth is in 9..16
	narrow(layout.Y, layout.YStride, p.Y, p.YStride, yh, shift)
	narrow(layout.Cb, layout.CStride, p.Cb, p.CStride, ch, shift)
	narrow(layout.Cr, layout.CStride, p.Cr, p.CStride, ch, shift)
	return layout, nil
}

// checkPlane verifies that a plane of rows rows, each at least minRow bytes,
// fits in buf with the given stride.
func checkPlane(name string, buf []byte, stride, minRow, rows int) error {
	if rows == 0 {
		return nil
	}
	if stride < minRow || len(buf) < stride*(rows-1)+minRow {
		return fmt.Errorf("%w: %s plane has %d bytes, stride %d, need %d rows of %d",
			ErrPlaneTooSmall, name, len(buf), stride, rows, minRow)
	}
	return nil
}

// narrow converts rows of 16-bit little-endian samples to 8 bits.
func narrow(dst []byte, dstStride int, src []byte, srcStride, rows int, shift uint) {
	for y := 0; y < rows; y++ {
		d := dst[y*dstStride : y*dstStride+dstStride]
		s := src[y*srcStride:]
		for x := range d {
			v := uint16(s[2*x]) | uint16(s[2*x+1])<<8
			d[x] = uint8(v >> shift) //nolint:gosec // shifted into 8 bits
		}
	}
}
