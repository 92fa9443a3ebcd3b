// Package interp provides the interpolation kernels shared by the DEM
// sampler and the source resampler.
//
// Kernels are backed by the resampling filters from
// github.com/disintegration/imaging, evaluated at fractional pixel
// coordinates over raw band data instead of whole images. Nodata cells drop
// out of the weighted sum and remaining weights are renormalized; a window
// with no valid contribution yields no value at all.
package interp

import (
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/orthorectify/pkg/types"
)

// Interp identifies an interpolation kernel
type Interp string

// Supported kernels
const (
	Nearest     Interp = "nearest"
	Average     Interp = "average"
	Bilinear    Interp = "bilinear"
	Cubic       Interp = "cubic"
	CubicSpline Interp = "cubic_spline"
	Gauss       Interp = "gauss"
	Lanczos     Interp = "lanczos"
)

// demInterps are the kernels accepted for DEM sampling
var demInterps = []Interp{Average, Bilinear, Cubic, CubicSpline, Gauss, Lanczos, Nearest}

// sourceInterps are the kernels accepted for source image resampling
var sourceInterps = []Interp{Nearest, Average, Bilinear, Cubic, Lanczos}

// filters maps each kernel to its imaging filter
var filters = map[Interp]imaging.ResampleFilter{
	Nearest:     imaging.NearestNeighbor,
	Average:     imaging.Box,
	Bilinear:    imaging.Linear,
	Cubic:       imaging.CatmullRom,
	CubicSpline: imaging.BSpline,
	Gauss:       imaging.Gaussian,
	Lanczos:     imaging.Lanczos,
}

// ParseDEM parses a dem_interp config value
func ParseDEM(s string) (Interp, error) {
	return parse(s, "ortho.dem_interp", demInterps)
}

// ParseSource parses an interp config value
func ParseSource(s string) (Interp, error) {
	return parse(s, "ortho.interp", sourceInterps)
}

func parse(s, field string, allowed []Interp) (Interp, error) {
	for _, in := range allowed {
		if Interp(s) == in {
			return in, nil
		}
	}
	return "", types.NewConfigError(field, "unsupported interpolation %q", s)
}

// Filter returns the underlying imaging resample filter
func (in Interp) Filter() imaging.ResampleFilter {
	return filters[in]
}

// Support returns the kernel radius in pixels. Nearest and average touch at
// most one or four cells; higher-order kernels weight a (2*support)^2 window.
func (in Interp) Support() float64 {
	s := filters[in].Support
	if s <= 0 {
		return 0.5
	}
	return s
}

// String returns the config spelling of the kernel
func (in Interp) String() string { return string(in) }

// Grid is a single band of raster data addressed by (col, row).
// Integer coordinates address cell centers.
type Grid struct {
	Data   []float64
	Width  int
	Height int
	Nodata *float64
}

func (g Grid) valid(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if g.Nodata != nil && v == *g.Nodata {
		return false
	}
	return true
}

// At returns the cell value and whether it is valid
func (g Grid) At(col, row int) (float64, bool) {
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return 0, false
	}
	v := g.Data[row*g.Width+col]
	return v, g.valid(v)
}

// Sample interpolates the grid at the fractional coordinate (x, y) using the
// kernel. Integer coordinates address cell centers, so the grid extent runs
// from (-0.5, -0.5) to (Width-0.5, Height-0.5). The second return value is
// false when (x, y) falls outside that extent or no contributing cell holds
// valid data.
func (g Grid) Sample(x, y float64, kernel Interp) (float64, bool) {
	if x < -0.5 || x >= float64(g.Width)-0.5 || y < -0.5 || y >= float64(g.Height)-0.5 {
		return 0, false
	}

	if kernel == Nearest {
		return g.At(int(math.Round(x)), int(math.Round(y)))
	}

	f := filters[kernel]
	support := f.Support
	if support <= 0 {
		support = 0.5
	}

	col0 := int(math.Ceil(x - support))
	col1 := int(math.Floor(x + support))
	row0 := int(math.Ceil(y - support))
	row1 := int(math.Floor(y + support))

	var sum, wsum float64
	for row := row0; row <= row1; row++ {
		wy := f.Kernel(float64(row) - y)
		if wy == 0 {
			continue
		}
		for col := col0; col <= col1; col++ {
			v, ok := g.At(col, row)
			if !ok {
				continue
			}
			w := wy * f.Kernel(float64(col)-x)
			sum += w * v
			wsum += w
		}
	}
	if wsum == 0 {
		return 0, false
	}
	return sum / wsum, true
}
