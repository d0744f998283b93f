package composite

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/math/f64"
)

func translate(dx, dy float64) f64.Aff3 {
	return f64.Aff3{1, 0, dx, 0, 1, dy}
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// =============================================================================
// Band Tests
// =============================================================================

func TestBandCount(t *testing.T) {
	tests := []struct {
		name string
		rect image.Rectangle
		want int
	}{
		{"small", image.Rect(0, 0, 32, 32), 1},
		{"narrow tall", image.Rect(0, 0, 63, 512), 1},
		{"exact threshold", image.Rect(0, 0, 64, 64), 1},
		{"two bands", image.Rect(0, 0, 64, 128), 2},
		{"three bands", image.Rect(10, 10, 300, 10+200), 3},
		{"clamped", image.Rect(0, 0, 512, 512), MaxBands},
		{"empty", image.Rectangle{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BandCount(tt.rect); got != tt.want {
				t.Errorf("BandCount(%v) = %d, want %d", tt.rect, got, tt.want)
			}
		})
	}
}

func TestBandRect_CoversRowsOnce(t *testing.T) {
	clipped := image.Rect(5, 7, 205, 7+203)
	for bands := 1; bands <= MaxBands; bands++ {
		rows := make(map[int]int)
		for band := 0; band < bands; band++ {
			r := BandRect(clipped, band, bands)
			if r.Min.X != clipped.Min.X || r.Max.X != clipped.Max.X {
				t.Errorf("bands=%d band=%d: x range %v, want %v", bands, band, r, clipped)
			}
			for y := r.Min.Y; y < r.Max.Y; y++ {
				rows[y]++
			}
		}
		for y := clipped.Min.Y; y < clipped.Max.Y; y++ {
			if rows[y] != 1 {
				t.Errorf("bands=%d: row %d covered %d times, want 1", bands, y, rows[y])
			}
		}
	}
}

func TestBandRect_OutOfRange(t *testing.T) {
	clipped := image.Rect(0, 0, 100, 100)
	for _, tc := range [][2]int{{-1, 2}, {2, 2}, {0, 0}} {
		if r := BandRect(clipped, tc[0], tc[1]); !r.Empty() {
			t.Errorf("BandRect(band=%d, bands=%d) = %v, want empty", tc[0], tc[1], r)
		}
	}
}

// =============================================================================
// Job Tests
// =============================================================================

func TestNewJob_Rejects(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 100, 100))
	src := solid(10, 10, color.RGBA{255, 0, 0, 255})

	base := Params{
		Src:       src,
		SrcRect:   src.Rect,
		Dst:       dst,
		DstRect:   image.Rect(0, 0, 10, 10),
		Clip:      dst.Rect,
		Transform: translate(0, 0),
	}

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"empty clip", func(p *Params) { p.Clip = image.Rectangle{} }},
		{"disjoint clip", func(p *Params) { p.Clip = image.Rect(50, 50, 60, 60) }},
		{"outside framebuffer", func(p *Params) { p.DstRect = image.Rect(200, 200, 210, 210) }},
		{"singular transform", func(p *Params) { p.Transform = f64.Aff3{0, 0, 0, 0, 0, 0} }},
		{"nil source", func(p *Params) { p.Src = nil }},
		{"empty source rect", func(p *Params) { p.SrcRect = image.Rectangle{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.modify(&p)
			if job, ok := NewJob(p); ok || job != nil {
				t.Errorf("NewJob() = %v, %v, want nil, false", job, ok)
			}
		})
	}
}

func TestJob_CopyTranslation(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 200, 200))
	red := color.RGBA{255, 0, 0, 255}
	src := solid(128, 128, red)

	job, ok := NewJob(Params{
		Src:       src,
		SrcRect:   src.Rect,
		Dst:       dst,
		DstRect:   image.Rect(40, 30, 168, 158),
		Clip:      image.Rect(0, 0, 100, 200),
		Transform: translate(40, 30),
		Opaque:    true,
	})
	if !ok {
		t.Fatal("NewJob() failed")
	}
	if want := image.Rect(40, 30, 100, 158); job.Clipped() != want {
		t.Fatalf("Clipped() = %v, want %v", job.Clipped(), want)
	}

	// Run bands highest first, the order the scheduler hands them out.
	for band := job.Bands() - 1; band >= 0; band-- {
		job.ProcessBand(band, job.Bands())
	}

	checks := []struct {
		x, y int
		want color.RGBA
	}{
		{40, 30, red},
		{99, 157, red},
		{100, 100, color.RGBA{}}, // clipped
		{39, 30, color.RGBA{}},   // left of destination
		{50, 158, color.RGBA{}},  // below destination
	}
	for _, c := range checks {
		if got := dst.RGBAAt(c.x, c.y); got != c.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestJob_ScaledTransform(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 64, 64))
	blue := color.RGBA{0, 0, 255, 255}
	src := solid(16, 16, blue)

	job, ok := NewJob(Params{
		Src:       src,
		SrcRect:   src.Rect,
		Dst:       dst,
		DstRect:   image.Rect(0, 0, 32, 32),
		Clip:      dst.Rect,
		Transform: f64.Aff3{2, 0, 0, 0, 2, 0},
		Opaque:    true,
		Filter:    FilterNearest,
	})
	if !ok {
		t.Fatal("NewJob() failed")
	}
	job.ProcessBand(0, 1)

	if got := dst.RGBAAt(31, 31); got != blue {
		t.Errorf("pixel (31,31) = %v, want %v", got, blue)
	}
	if got := dst.RGBAAt(33, 33); got != (color.RGBA{}) {
		t.Errorf("pixel (33,33) = %v, want transparent", got)
	}
}

func TestJob_FlipY(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	top := color.RGBA{255, 0, 0, 255}
	bottom := color.RGBA{0, 255, 0, 255}
	for x := 0; x < 4; x++ {
		src.SetRGBA(x, 0, top)
		src.SetRGBA(x, 3, bottom)
	}

	job, ok := NewJob(Params{
		Src:       src,
		SrcRect:   src.Rect,
		Dst:       dst,
		DstRect:   dst.Rect,
		Clip:      dst.Rect,
		Transform: translate(0, 0),
		Opaque:    true,
		FlipY:     true,
	})
	if !ok {
		t.Fatal("NewJob() failed")
	}
	job.ProcessBand(0, 1)

	if got := dst.RGBAAt(0, 3); got != top {
		t.Errorf("flipped bottom row = %v, want %v", got, top)
	}
	if got := dst.RGBAAt(0, 0); got != bottom {
		t.Errorf("flipped top row = %v, want %v", got, bottom)
	}
}

func TestJob_OverBlendsTranslucent(t *testing.T) {
	dst := solid(8, 8, color.RGBA{0, 0, 255, 255})
	src := solid(8, 8, color.RGBA{})

	job, ok := NewJob(Params{
		Src:       src,
		SrcRect:   src.Rect,
		Dst:       dst,
		DstRect:   dst.Rect,
		Clip:      dst.Rect,
		Transform: translate(0, 0),
	})
	if !ok {
		t.Fatal("NewJob() failed")
	}
	job.ProcessBand(0, 1)

	// A fully transparent source composited with Over keeps the destination.
	if got := dst.RGBAAt(3, 3); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("pixel = %v, want destination preserved", got)
	}
}

func TestFilter_ParseRoundTrip(t *testing.T) {
	for f := FilterNearest; f <= FilterCubic; f++ {
		got, ok := ParseFilter(f.String())
		if !ok || got != f {
			t.Errorf("ParseFilter(%q) = %v, %v, want %v", f.String(), got, ok, f)
		}
		if f.Interpolator() == nil {
			t.Errorf("%v.Interpolator() = nil", f)
		}
	}
	if _, ok := ParseFilter("bogus"); ok {
		t.Error("ParseFilter(bogus) succeeded")
	}
}

// =============================================================================
// Source Tests
// =============================================================================

func TestSwizzle(t *testing.T) {
	img := solid(2, 2, color.RGBA{10, 20, 30, 255})
	got := color.RGBAModel.Convert(Swizzle(img).At(1, 1)).(color.RGBA)
	if want := (color.RGBA{30, 20, 10, 255}); got != want {
		t.Errorf("Swizzle At = %v, want %v", got, want)
	}
	if Swizzle(img).Bounds() != img.Rect {
		t.Errorf("Swizzle Bounds = %v, want %v", Swizzle(img).Bounds(), img.Rect)
	}
}

func TestPlanes_Image8Bit(t *testing.T) {
	r := image.Rect(0, 0, 4, 2)
	p := Planes{
		Y:         make([]byte, 8),
		Cb:        make([]byte, 2),
		Cr:        make([]byte, 2),
		YStride:   4,
		CStride:   2,
		Rect:      r,
		Subsample: image.YCbCrSubsampleRatio420,
	}
	img, err := p.Image()
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if &img.Y[0] != &p.Y[0] {
		t.Error("8-bit planes should be wrapped without copying")
	}
}

func TestPlanes_ImageHighBitDepth(t *testing.T) {
	r := image.Rect(0, 0, 2, 2)
	// 10-bit samples, value 1020 -> 255 after shifting by 2.
	y := []byte{0xFC, 0x03, 0xFC, 0x03, 0x00, 0x02, 0x00, 0x02}
	c := []byte{0x00, 0x02, 0x00, 0x02, 0x00, 0x02, 0x00, 0x02}
	p := Planes{
		Y: y, Cb: c, Cr: c,
		YStride: 4, CStride: 4,
		Rect:      r,
		Subsample: image.YCbCrSubsampleRatio444,
		BitDepth:  10,
	}
	img, err := p.Image()
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if img.Y[0] != 255 || img.Y[2] != 128 {
		t.Errorf("Y = %v, want [255 255 128 128]", img.Y)
	}
	if img.Cb[0] != 128 {
		t.Errorf("Cb[0] = %d, want 128", img.Cb[0])
	}
}

func TestPlanes_Errors(t *testing.T) {
	r := image.Rect(0, 0, 4, 4)
	short := Planes{
		Y: make([]byte, 3), Cb: make([]byte, 4), Cr: make([]byte, 4),
		YStride: 4, CStride: 2,
		Rect:      r,
		Subsample: image.YCbCrSubsampleRatio420,
	}
	if _, err := short.Image(); !errors.Is(err, ErrPlaneTooSmall) {
		t.Errorf("short plane error = %v, want ErrPlaneTooSmall", err)
	}

	deep := short
	deep.Y = make([]byte, 16)
	deep.BitDepth = 17
	if _, err := deep.Image(); !errors.Is(err, ErrBitDepth) {
		t.Errorf("bit depth error = %v, want ErrBitDepth", err)
	}
}
