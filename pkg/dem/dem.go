// Package dem samples terrain elevation from a digital elevation model at
// arbitrary world coordinates.
package dem

import (
	"math"

	"github.com/menta2k/orthorectify/pkg/interp"
	"github.com/menta2k/orthorectify/pkg/raster"
	"github.com/menta2k/orthorectify/pkg/types"
)

// Sampler interpolates elevations from one band of a DEM raster. It is
// read-only and safe for concurrent use.
type Sampler struct {
	grid   interp.Grid
	gt     raster.GeoTransform
	kernel interp.Interp
	bounds types.Bounds

	min, max, mean float64
	validCells     int
}

// NewSampler builds a sampler over the 1-based band of the DEM raster using
// the configured interpolation kernel. The band index is validated against
// the raster; elevation statistics are computed once for footprint seeding.
func NewSampler(r *raster.Raster, band int, kernel interp.Interp) (*Sampler, error) {
	if band < 1 || band > r.BandCount() {
		return nil, types.NewConfigError("ortho.dem_band", "band %d outside [1, %d]", band, r.BandCount())
	}
	if err := r.Transform.Validate(); err != nil {
		return nil, err
	}
	grid, err := r.Grid(band)
	if err != nil {
		return nil, err
	}

	s := &Sampler{
		grid:   grid,
		gt:     r.Transform,
		kernel: kernel,
		bounds: r.Bounds(),
		min:    math.Inf(1),
		max:    math.Inf(-1),
	}

	var sum float64
	for i, v := range grid.Data {
		if _, ok := grid.At(i%grid.Width, i/grid.Width); !ok {
			continue
		}
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
		sum += v
		s.validCells++
	}
	if s.validCells == 0 {
		return nil, types.NewGeometryError("DEM band %d holds no valid elevation", band)
	}
	s.mean = sum / float64(s.validCells)
	return s, nil
}

// ElevationAt interpolates the terrain elevation at world (x, y). The
// second return value is false when the point falls outside the DEM extent
// or every contributing cell is nodata; nodata is propagated, never
// estimated.
func (s *Sampler) ElevationAt(x, y float64) (float64, bool) {
	col, row := s.gt.WorldToCell(x, y)
	return s.grid.Sample(col, row, s.kernel)
}

// CoarseElevationAt samples the nearest DEM cell, the O(1) seed used by the
// ray-terrain intersector
func (s *Sampler) CoarseElevationAt(x, y float64) (float64, bool) {
	col, row := s.gt.WorldToCell(x, y)
	return s.grid.Sample(col, row, interp.Nearest)
}

// Bounds returns the DEM extent in world coordinates
func (s *Sampler) Bounds() types.Bounds { return s.bounds }

// Min returns the lowest valid elevation
func (s *Sampler) Min() float64 { return s.min }

// Max returns the highest valid elevation
func (s *Sampler) Max() float64 { return s.max }

// Mean returns the mean valid elevation, the fallback seed where the DEM
// has no data
func (s *Sampler) Mean() float64 { return s.mean }

// CellSize returns the DEM cell sizes in world units
func (s *Sampler) CellSize() (float64, float64) {
	return s.gt.Resolution()
}
