package raster

import (
	"fmt"
	"image"

	"github.com/menta2k/orthorectify/pkg/interp"
)

// minOverviewSize stops the pyramid once both dimensions fit a single
// typical display tile
const minOverviewSize = 256

// Decimate builds one overview level by averaging the raster down by
// factor 2. Nodata cells drop out of the average; cells with no valid
// contribution stay nodata.
func Decimate(r *Raster) (*Raster, error) {
	w := (r.Width + 1) / 2
	h := (r.Height + 1) / 2
	out, err := New(w, h, len(r.Bands), r.DType)
	if err != nil {
		return nil, err
	}
	out.Nodata = r.Nodata
	out.CRS = r.CRS
	ox, oy := r.Transform.Origin()
	resX, resY := r.Transform.Resolution()
	out.Transform = NewGeoTransform(ox, oy, resX*2, resY*2)

	nodata := r.NodataValue(0)
	for b := range r.Bands {
		grid := interp.Grid{Data: r.Bands[b], Width: r.Width, Height: r.Height, Nodata: r.Nodata}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v, ok := grid.Sample(float64(x)*2+0.5, float64(y)*2+0.5, interp.Average)
				if !ok {
					v = nodata
				} else if c, castOK := r.DType.Cast(v); castOK {
					v = c
				} else {
					v = nodata
				}
				out.Bands[b][y*w+x] = v
			}
		}
	}
	return out, nil
}

// BuildOverviews writes a decimated pyramid next to the output file, one
// companion file per level (<path>.ovr.2, <path>.ovr.4, ...), each through
// the same driver as the base raster.
func BuildOverviews(drv Driver, path string, base *Raster, opts *WriteOptions) ([]string, error) {
	var written []string
	level := base
	factor := 1
	for level.Width > minOverviewSize || level.Height > minOverviewSize {
		var err error
		level, err = Decimate(level)
		if err != nil {
			return written, err
		}
		factor *= 2

		ovrPath := fmt.Sprintf("%s.ovr.%d", path, factor)
		ovrOpts := *opts
		ovrOpts.WriteMask = false
		ovrOpts.Overwrite = true
		w, err := drv.Create(ovrPath, level, &ovrOpts)
		if err != nil {
			return written, err
		}
		if err := w.WriteTile(image.Rect(0, 0, level.Width, level.Height), level.Bands); err != nil {
			w.Abort()
			return written, err
		}
		if err := w.Close(); err != nil {
			return written, err
		}
		written = append(written, ovrPath)
	}
	return written, nil
}
