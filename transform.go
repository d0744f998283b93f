package compositor

import (
	"image"
	"math"

	"golang.org/x/image/math/f64"
)

// Transform is a 2D affine transformation from surface space to device
// space, as a 2x3 matrix in row-major order:
//
//	| a  b  c |
//	| d  e  f |
//
// This represents the transformation:
//
//	x' = a*x + b*y + c
//	y' = d*x + e*y + f
type Transform struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transformation.
func Identity() Transform {
	return Transform{
		A: 1, B: 0, C: 0,
		D: 0, E: 1, F: 0,
	}
}

// Translate creates a translation.
func Translate(x, y float64) Transform {
	return Transform{
		A: 1, B: 0, C: x,
		D: 0, E: 1, F: y,
	}
}

// Scale creates a scaling transformation.
func Scale(x, y float64) Transform {
	return Transform{
		A: x, B: 0, C: 0,
		D: 0, E: y, F: 0,
	}
}

// Multiply returns m * other, i.e. other is applied first.
func (m Transform) Multiply(other Transform) Transform {
	return Transform{
		A: m.A*other.A + m.B*other.D,
		B: m.A*other.B + m.B*other.E,
		C: m.A*other.C + m.B*other.F + m.C,
		D: m.D*other.A + m.E*other.D,
		E: m.D*other.B + m.E*other.E,
		F: m.D*other.C + m.E*other.F + m.F,
	}
}

// Apply transforms the point (x, y).
func (m Transform) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.C, m.D*x + m.E*y + m.F
}

// Invert returns the inverse transformation. ok is false when m is not
// invertible.
func (m Transform) Invert() (inv Transform, ok bool) {
	det := m.det()
	if math.Abs(det) < 1e-10 || math.IsNaN(det) {
		return Identity(), false
	}

	invDet := 1.0 / det
	return Transform{
		A: m.E * invDet,
		B: -m.B * invDet,
		C: (m.B*m.F - m.C*m.E) * invDet,
		D: -m.D * invDet,
		E: m.A * invDet,
		F: (m.C*m.D - m.A*m.F) * invDet,
	}, true
}

func (m Transform) det() float64 {
	return m.A*m.E - m.B*m.D
}

// IsIdentity returns true if m is the identity transformation.
func (m Transform) IsIdentity() bool {
	return m.A == 1 && m.B == 0 && m.C == 0 &&
		m.D == 0 && m.E == 1 && m.F == 0
}

// IsTranslation returns true if m is only a translation.
func (m Transform) IsTranslation() bool {
	return m.A == 1 && m.B == 0 && m.D == 0 && m.E == 1
}

// IsAxisAligned reports whether m maps axis-aligned rectangles onto
// axis-aligned rectangles without rotating them.
func (m Transform) IsAxisAligned() bool {
	return m.B == 0 && m.D == 0 && m.A != 0 && m.E != 0
}

// OuterRect returns the smallest integer rectangle containing r mapped
// through m. A degenerate transformation yields the empty rectangle.
func (m Transform) OuterRect(r image.Rectangle) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	if _, ok := m.Invert(); !ok {
		return image.Rectangle{}
	}
	x0, y0, x1, y1 := m.bounds(r)
	return image.Rect(
		int(math.Floor(x0)), int(math.Floor(y0)),
		int(math.Ceil(x1)), int(math.Ceil(y1)),
	)
}

// InnerRect returns the largest integer rectangle fully covered by r mapped
// through m. It is empty unless m is axis-aligned.
func (m Transform) InnerRect(r image.Rectangle) image.Rectangle {
	if r.Empty() || !m.IsAxisAligned() {
		return image.Rectangle{}
	}
	x0, y0, x1, y1 := m.bounds(r)
	out := image.Rect(
		int(math.Ceil(x0)), int(math.Ceil(y0)),
		int(math.Floor(x1)), int(math.Floor(y1)),
	)
	if out.Empty() {
		return image.Rectangle{}
	}
	return out
}

// bounds returns the device-space bounding box of r's corners.
func (m Transform) bounds(r image.Rectangle) (x0, y0, x1, y1 float64) {
	x0, y0 = math.Inf(1), math.Inf(1)
	x1, y1 = math.Inf(-1), math.Inf(-1)
	corners := [4][2]float64{
		{float64(r.Min.X), float64(r.Min.Y)},
		{float64(r.Max.X), float64(r.Min.Y)},
		{float64(r.Min.X), float64(r.Max.Y)},
		{float64(r.Max.X), float64(r.Max.Y)},
	}
	for _, c := range corners {
		x, y := m.Apply(c[0], c[1])
		x0 = math.Min(x0, x)
		y0 = math.Min(y0, y)
		x1 = math.Max(x1, x)
		y1 = math.Max(y1, y)
	}
	return x0, y0, x1, y1
}

// Aff3 returns m in the layout used by golang.org/x/image/draw.
func (m Transform) Aff3() f64.Aff3 {
	return f64.Aff3{m.A, m.B, m.C, m.D, m.E, m.F}
}
