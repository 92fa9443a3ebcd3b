package ortho

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/menta2k/orthorectify/pkg/camera"
	"github.com/menta2k/orthorectify/pkg/dem"
	"github.com/menta2k/orthorectify/pkg/types"
)

// Default intersector tuning. The tolerance is 1cm in world z units,
// comfortably below the vertical precision of photogrammetric DEMs; the
// iteration cap keeps worst-case per-pixel cost bounded on steep terrain.
const (
	DefaultTolerance = 0.01
	DefaultMaxIter   = 15
)

// Intersector finds where the camera ray through an output ground cell
// meets the DEM surface. It is stateless between calls and safe for
// concurrent use.
type Intersector struct {
	cam *camera.Camera
	dem *dem.Sampler

	// Tolerance is the convergence threshold on |Δz| in world units
	Tolerance float64
	// MaxIter bounds the fixed-point iteration; exceeding it yields nodata
	MaxIter int
	// CheckOcclusion marches the converged ray back toward the camera and
	// rejects intersections hidden behind terrain
	CheckOcclusion bool
}

// NewIntersector builds an intersector with default tuning
func NewIntersector(cam *camera.Camera, dem *dem.Sampler) *Intersector {
	return &Intersector{
		cam:       cam,
		dem:       dem,
		Tolerance: DefaultTolerance,
		MaxIter:   DefaultMaxIter,
	}
}

// IntersectResult is the tagged outcome of a ray-terrain intersection:
// either converged at elevation Z, or nodata. Err carries the recoverable
// convergence failure when the iteration cap was exhausted; it never
// aborts the run.
type IntersectResult struct {
	OK    bool
	Z     float64
	Iters int
	Err   *types.ConvergenceError
}

// nodataResult tags a failed intersection
func nodataResult(iters int) IntersectResult {
	return IntersectResult{Iters: iters}
}

// Intersect finds z such that the camera ray through ground position
// (x, y, z) meets the DEM surface at elevation z. The elevation is seeded
// from a coarse DEM sample (mean elevation over DEM holes) and refined by
// a bounded fixed-point iteration: project the candidate point, re-sample
// the DEM at the ray's ground footprint, update z. Failure to converge
// within MaxIter is reported as nodata, never as a non-converged estimate.
func (it *Intersector) Intersect(x, y float64) IntersectResult {
	z, ok := it.dem.CoarseElevationAt(x, y)
	if !ok {
		b := it.dem.Bounds()
		if x < b.MinX || x > b.MaxX || y < b.MinY || y > b.MaxY {
			return nodataResult(0)
		}
		// inside the DEM but over a hole: seed from the mean and let the
		// iteration decide
		z = it.dem.Mean()
	}

	for i := 1; i <= it.MaxIter; i++ {
		col, row, err := it.cam.Project(r3.Vector{X: x, Y: y, Z: z})
		if err != nil {
			return nodataResult(i)
		}
		ray, err := it.cam.BackProject(col, row)
		if err != nil {
			return nodataResult(i)
		}
		gx, gy, err := ray.AtElevation(z)
		if err != nil {
			return nodataResult(i)
		}
		zNew, ok := it.dem.ElevationAt(gx, gy)
		if !ok {
			return nodataResult(i)
		}

		if math.Abs(zNew-z) <= it.Tolerance {
			if it.CheckOcclusion && it.occluded(ray, zNew) {
				return nodataResult(i)
			}
			return IntersectResult{OK: true, Z: zNew, Iters: i}
		}
		z = zNew
	}
	return IntersectResult{
		Iters: it.MaxIter,
		Err:   &types.ConvergenceError{X: x, Y: y, Iterations: it.MaxIter},
	}
}

// occluded marches from the intersection back toward the camera at half a
// DEM cell per step and reports whether terrain rises above the ray. A
// pixel behind a terrain step must resolve to nodata rather than silently
// sampling the wrong source region.
func (it *Intersector) occluded(ray camera.Ray, z float64) bool {
	horiz := math.Hypot(ray.Dir.X, ray.Dir.Y)
	if horiz < 1e-12 {
		// vertical ray: nothing can stand between camera and ground
		return false
	}
	cellX, cellY := it.dem.CellSize()
	dt := 0.5 * math.Min(cellX, cellY) / horiz

	tGround := (z - ray.Origin.Z) / ray.Dir.Z
	for t := tGround - dt; t > 0; t -= dt {
		p := ray.At(t)
		zt, ok := it.dem.ElevationAt(p.X, p.Y)
		if !ok {
			continue
		}
		if zt > p.Z+it.Tolerance {
			return true
		}
	}
	return false
}
