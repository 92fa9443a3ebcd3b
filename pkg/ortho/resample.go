package ortho

import (
	"github.com/menta2k/orthorectify/pkg/interp"
	"github.com/menta2k/orthorectify/pkg/raster"
)

// Resampler reads source band values at fractional pixel positions. The
// source grids are captured once so the per-pixel path does no allocation.
type Resampler struct {
	grids  []interp.Grid
	kernel interp.Interp
	nodata float64
}

// NewResampler wraps src for interpolated reads with kernel, substituting
// nodata for samples that fall outside the image or on masked cells
func NewResampler(src *raster.Raster, kernel interp.Interp, nodata float64) *Resampler {
	r := &Resampler{
		grids:  make([]interp.Grid, src.BandCount()),
		kernel: kernel,
		nodata: nodata,
	}
	for b := range r.grids {
		// band indices are derived from BandCount and cannot be out of range
		g, _ := src.Grid(b + 1)
		r.grids[b] = g
	}
	return r
}

// BandCount reports the number of source bands
func (r *Resampler) BandCount() int { return len(r.grids) }

// SampleBand interpolates band b (0-based) at the continuous pixel
// position (col, row), where integer coordinates address pixel corners as
// the camera model produces them. Returns the nodata value when the
// position is outside the image or the kernel window is fully masked.
func (r *Resampler) SampleBand(b int, col, row float64) float64 {
	// grid coordinates address cell centers
	v, ok := r.grids[b].Sample(col-0.5, row-0.5, r.kernel)
	if !ok {
		return r.nodata
	}
	return v
}
