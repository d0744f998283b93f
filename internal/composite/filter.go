package composite

import "golang.org/x/image/draw"

// Filter selects the resampling filter used when a composite is scaled or
// rotated. Pure whole-pixel translations never resample.
type Filter uint8

const (
	// FilterNearest picks the nearest source pixel.
	FilterNearest Filter = iota

	// FilterLinear uses bilinear interpolation.
	FilterLinear

	// FilterFastLinear uses an approximate, faster bilinear interpolation.
	FilterFastLinear

	// FilterCubic uses the Catmull-Rom kernel.
	FilterCubic
)

// String returns the filter name.
func (f Filter) String() string {
	switch f {
	case FilterNearest:
		return "nearest"
	case FilterLinear:
		return "linear"
	case FilterFastLinear:
		return "fast-linear"
	case FilterCubic:
		return "cubic"
	default:
		return "unknown"
	}
}

// ParseFilter returns the filter with the given name.
func ParseFilter(name string) (Filter, bool) {
	for f := FilterNearest; f <= FilterCubic; f++ {
		if f.String() == name {
			return f, true
		}
	}
	return FilterNearest, false
}

// Interpolator returns the x/image/draw interpolator for f.
// Unknown filters fall back to nearest-neighbor.
func (f Filter) Interpolator() draw.Interpolator {
	switch f {
	case FilterLinear:
		return draw.BiLinear
	case FilterFastLinear:
		return draw.ApproxBiLinear
	case FilterCubic:
		return draw.CatmullRom
	default:
		return draw.NearestNeighbor
	}
}
