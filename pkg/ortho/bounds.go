package ortho

import (
	"math"

	"github.com/menta2k/orthorectify/pkg/camera"
	"github.com/menta2k/orthorectify/pkg/dem"
	"github.com/menta2k/orthorectify/pkg/raster"
	"github.com/menta2k/orthorectify/pkg/types"
)

// OutputGrid derives the ortho image grid: the source image footprint is
// traced by back-projecting the four image corners at both the minimum and
// maximum DEM elevation, the union of the ground hits is clipped to the
// DEM extent, and the result is snapped outward to whole cells of the
// requested resolution. resX and resY are the cell sizes in world units
// (both positive; rows run north to south).
func OutputGrid(cam *camera.Camera, d *dem.Sampler, resX, resY float64) (raster.GeoTransform, int, int, error) {
	var zero raster.GeoTransform
	if resX <= 0 || resY <= 0 || math.IsNaN(resX) || math.IsNaN(resY) {
		return zero, 0, 0, types.NewConfigError("resolution", "cell sizes must be positive")
	}

	w, h := cam.ImageSize()
	corners := [4][2]float64{
		{0, 0},
		{float64(w), 0},
		{0, float64(h)},
		{float64(w), float64(h)},
	}

	footprint := types.EmptyBounds()
	for _, c := range corners {
		ray, err := cam.BackProject(c[0], c[1])
		if err != nil {
			return zero, 0, 0, err
		}
		for _, z := range [2]float64{d.Min(), d.Max()} {
			x, y, err := ray.AtElevation(z)
			if err != nil {
				// a corner ray at or above the horizon contributes no
				// ground point; the remaining corners bound the footprint
				continue
			}
			footprint = footprint.Extend(x, y)
		}
	}
	if footprint.Empty() {
		return zero, 0, 0, types.NewGeometryError("no image corner ray reaches the ground")
	}

	b := footprint.Intersect(d.Bounds())
	if b.Empty() {
		return zero, 0, 0, types.NewGeometryError("source image footprint does not overlap the DEM")
	}

	// snap outward so the grid origin sits on a whole-cell boundary
	originX := math.Floor(b.MinX/resX) * resX
	originY := math.Ceil(b.MaxY/resY) * resY
	width := int(math.Ceil((b.MaxX - originX) / resX))
	height := int(math.Ceil((originY - b.MinY) / resY))
	if width <= 0 || height <= 0 {
		return zero, 0, 0, types.NewGeometryError("degenerate output extent")
	}

	return raster.NewGeoTransform(originX, originY, resX, resY), width, height, nil
}
