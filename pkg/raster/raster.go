// Package raster provides the in-memory raster model and the file drivers
// used for DEM input, source imagery and ortho output.
//
// Bands are held as float64 regardless of the on-disk type; DType records
// what the data was read from or will be written as. Coordinate reference
// systems are carried as opaque strings and never transformed here; callers
// are expected to supply DEM, source and output in a common CRS.
package raster

import (
	"fmt"

	"github.com/menta2k/orthorectify/pkg/interp"
	"github.com/menta2k/orthorectify/pkg/types"
)

// Raster is a georeferenced grid of one or more bands. It is read-only
// during processing and safe for concurrent reads.
type Raster struct {
	Width     int
	Height    int
	Bands     [][]float64
	Transform GeoTransform
	Nodata    *float64
	DType     DType
	CRS       string
}

// New allocates a raster with the given shape and zeroed bands
func New(width, height, bands int, dtype DType) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, types.NewGeometryError("invalid raster size %dx%d", width, height)
	}
	if bands <= 0 {
		return nil, types.NewGeometryError("raster needs at least one band, got %d", bands)
	}
	r := &Raster{
		Width:  width,
		Height: height,
		Bands:  make([][]float64, bands),
		DType:  dtype,
	}
	for i := range r.Bands {
		r.Bands[i] = make([]float64, width*height)
	}
	return r, nil
}

// BandCount returns the number of bands
func (r *Raster) BandCount() int { return len(r.Bands) }

// Band returns band data by 1-based index
func (r *Raster) Band(band int) ([]float64, error) {
	if band < 1 || band > len(r.Bands) {
		return nil, types.NewConfigError("band", "index %d outside [1, %d]", band, len(r.Bands))
	}
	return r.Bands[band-1], nil
}

// Grid wraps a band for kernel sampling. The band index is 1-based.
func (r *Raster) Grid(band int) (interp.Grid, error) {
	data, err := r.Band(band)
	if err != nil {
		return interp.Grid{}, err
	}
	return interp.Grid{
		Data:   data,
		Width:  r.Width,
		Height: r.Height,
		Nodata: r.Nodata,
	}, nil
}

// Bounds returns the world-space extent
func (r *Raster) Bounds() types.Bounds {
	return r.Transform.Bounds(r.Width, r.Height)
}

// Fill sets every sample of every band to v
func (r *Raster) Fill(v float64) {
	for _, band := range r.Bands {
		for i := range band {
			band[i] = v
		}
	}
}

// NodataValue returns the nodata sentinel, or def when none is set
func (r *Raster) NodataValue(def float64) float64 {
	if r.Nodata == nil {
		return def
	}
	return *r.Nodata
}

// String describes the raster for logging
func (r *Raster) String() string {
	resX, resY := r.Transform.Resolution()
	return fmt.Sprintf("%dx%d %s x%d bands, res %.3gx%.3g", r.Width, r.Height, r.DType, len(r.Bands), resX, resY)
}
