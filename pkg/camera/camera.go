// Package camera implements the frame camera model used to map between
// world coordinates and source image pixels.
//
// The model is a pinhole camera with interior orientation given by focal
// length and physical sensor size, and exterior orientation given by the
// projection center and omega/phi/kappa rotation angles (radians). The
// mapping is deterministic and side-effect free; a Camera is immutable
// after construction and shared read-only by all workers.
package camera

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/orthorectify/pkg/types"
)

// parallelEps bounds how close a ray may come to the sensor plane before
// the projection is treated as singular
const parallelEps = 1e-12

// Camera is an immutable frame camera model
type Camera struct {
	focalLen float64 // mm
	sensorW  float64 // mm
	sensorH  float64 // mm
	width    int     // px
	height   int     // px
	position r3.Vector
	rot      *mat.Dense // camera -> world
	ppx, ppy float64    // principal point, px
}

// Config carries the parameters needed to build a Camera
type Config struct {
	FocalLen     float64 // focal length, mm
	SensorWidth  float64 // sensor width, mm
	SensorHeight float64 // sensor height, mm
	ImageWidth   int     // source image width, px
	ImageHeight  int     // source image height, px
	Position     r3.Vector
	Omega        float64 // rotation about x, radians
	Phi          float64 // rotation about y, radians
	Kappa        float64 // rotation about z, radians
}

// New builds a camera model, validating interior and exterior orientation
func New(cfg Config) (*Camera, error) {
	if cfg.FocalLen <= 0 {
		return nil, types.NewConfigError("camera.focal_len", "must be > 0, got %g", cfg.FocalLen)
	}
	if cfg.SensorWidth <= 0 || cfg.SensorHeight <= 0 {
		return nil, types.NewConfigError("camera.sensor_size", "must be > 0, got [%g, %g]", cfg.SensorWidth, cfg.SensorHeight)
	}
	if cfg.ImageWidth <= 0 || cfg.ImageHeight <= 0 {
		return nil, types.NewGeometryError("image size %dx%d", cfg.ImageWidth, cfg.ImageHeight)
	}
	for _, v := range []float64{cfg.Position.X, cfg.Position.Y, cfg.Position.Z, cfg.Omega, cfg.Phi, cfg.Kappa} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, types.NewGeometryError("exterior orientation has non-finite component")
		}
	}

	return &Camera{
		focalLen: cfg.FocalLen,
		sensorW:  cfg.SensorWidth,
		sensorH:  cfg.SensorHeight,
		width:    cfg.ImageWidth,
		height:   cfg.ImageHeight,
		position: cfg.Position,
		rot:      rotationMatrix(cfg.Omega, cfg.Phi, cfg.Kappa),
		ppx:      float64(cfg.ImageWidth) / 2,
		ppy:      float64(cfg.ImageHeight) / 2,
	}, nil
}

// rotationMatrix builds the camera-to-world rotation R = Rx(omega) Ry(phi) Rz(kappa)
func rotationMatrix(omega, phi, kappa float64) *mat.Dense {
	so, co := math.Sincos(omega)
	sp, cp := math.Sincos(phi)
	sk, ck := math.Sincos(kappa)

	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, co, -so,
		0, so, co,
	})
	ry := mat.NewDense(3, 3, []float64{
		cp, 0, sp,
		0, 1, 0,
		-sp, 0, cp,
	})
	rz := mat.NewDense(3, 3, []float64{
		ck, -sk, 0,
		sk, ck, 0,
		0, 0, 1,
	})

	var r mat.Dense
	r.Mul(rx, ry)
	r.Mul(&r, rz)
	return mat.DenseCopyOf(&r)
}

// rotate applies m to v
func rotate(m *mat.Dense, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// rotateT applies the transpose of m to v
func rotateT(m *mat.Dense, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(1, 0)*v.Y + m.At(2, 0)*v.Z,
		Y: m.At(0, 1)*v.X + m.At(1, 1)*v.Y + m.At(2, 1)*v.Z,
		Z: m.At(0, 2)*v.X + m.At(1, 2)*v.Y + m.At(2, 2)*v.Z,
	}
}

// Position returns the projection center in world coordinates
func (c *Camera) Position() r3.Vector { return c.position }

// ImageSize returns the source image dimensions in pixels
func (c *Camera) ImageSize() (int, int) { return c.width, c.height }

// Project maps a world point to source pixel coordinates using the
// collinearity equations. It fails with GeometryError when the viewing ray
// is parallel to the sensor plane or the point lies behind the camera.
func (c *Camera) Project(p r3.Vector) (float64, float64, error) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
		return 0, 0, types.NewGeometryError("cannot project non-finite point")
	}

	pc := rotateT(c.rot, p.Sub(c.position))
	if math.Abs(pc.Z) < parallelEps {
		return 0, 0, types.NewGeometryError("projection singular: ray parallel to sensor plane")
	}
	if pc.Z > 0 {
		return 0, 0, types.NewGeometryError("point (%.2f, %.2f, %.2f) behind camera", p.X, p.Y, p.Z)
	}

	// sensor-plane coordinates, mm
	u := -c.focalLen * pc.X / pc.Z
	v := -c.focalLen * pc.Y / pc.Z

	col := c.ppx + u*float64(c.width)/c.sensorW
	row := c.ppy - v*float64(c.height)/c.sensorH
	return col, row, nil
}

// Ray is a world-space viewing ray from the projection center
type Ray struct {
	Origin r3.Vector
	Dir    r3.Vector // unit length
}

// BackProject maps source pixel coordinates to the world-space viewing ray
// through that pixel
func (c *Camera) BackProject(col, row float64) (Ray, error) {
	if math.IsNaN(col) || math.IsNaN(row) {
		return Ray{}, types.NewGeometryError("cannot back-project non-finite pixel")
	}

	u := (col - c.ppx) * c.sensorW / float64(c.width)
	v := (c.ppy - row) * c.sensorH / float64(c.height)

	dc := r3.Vector{X: u, Y: v, Z: -c.focalLen}
	d := rotate(c.rot, dc)
	norm := d.Norm()
	if norm < parallelEps {
		return Ray{}, types.NewGeometryError("degenerate ray direction")
	}
	return Ray{Origin: c.position, Dir: d.Mul(1 / norm)}, nil
}

// AtElevation returns the planimetric position where the ray crosses
// elevation z. Horizontal rays never cross.
func (r Ray) AtElevation(z float64) (float64, float64, error) {
	if math.Abs(r.Dir.Z) < parallelEps {
		return 0, 0, types.NewGeometryError("horizontal ray never reaches elevation %.2f", z)
	}
	t := (z - r.Origin.Z) / r.Dir.Z
	return r.Origin.X + t*r.Dir.X, r.Origin.Y + t*r.Dir.Y, nil
}

// At returns the point at parameter t along the ray
func (r Ray) At(t float64) r3.Vector {
	return r.Origin.Add(r.Dir.Mul(t))
}
