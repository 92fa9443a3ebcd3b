package raster

import (
	"math"

	"github.com/menta2k/orthorectify/pkg/types"
)

// GeoTransform maps pixel coordinates to world coordinates using the six
// affine coefficients in GDAL order:
//
//	worldX = gt[0] + col*gt[1] + row*gt[2]
//	worldY = gt[3] + col*gt[4] + row*gt[5]
//
// Pixel (0, 0) is the top-left corner of the top-left cell; cell centers sit
// at half-integer offsets.
type GeoTransform [6]float64

// NewGeoTransform builds a north-up transform from the top-left origin and
// positive cell sizes
func NewGeoTransform(originX, originY, resX, resY float64) GeoTransform {
	return GeoTransform{originX, resX, 0, originY, 0, -resY}
}

// Validate checks the transform is invertible
func (gt GeoTransform) Validate() error {
	for _, c := range gt {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return types.NewGeometryError("geotransform has non-finite coefficient")
		}
	}
	if gt.det() == 0 {
		return types.NewGeometryError("geotransform is singular")
	}
	return nil
}

func (gt GeoTransform) det() float64 {
	return gt[1]*gt[5] - gt[2]*gt[4]
}

// PixelToWorld converts corner-based pixel coordinates to world coordinates
func (gt GeoTransform) PixelToWorld(col, row float64) (float64, float64) {
	x := gt[0] + col*gt[1] + row*gt[2]
	y := gt[3] + col*gt[4] + row*gt[5]
	return x, y
}

// CellCenter returns the world coordinates of the center of cell (col, row)
func (gt GeoTransform) CellCenter(col, row int) (float64, float64) {
	return gt.PixelToWorld(float64(col)+0.5, float64(row)+0.5)
}

// WorldToPixel converts world coordinates to corner-based pixel coordinates
func (gt GeoTransform) WorldToPixel(x, y float64) (float64, float64) {
	det := gt.det()
	dx := x - gt[0]
	dy := y - gt[3]
	col := (dx*gt[5] - dy*gt[2]) / det
	row := (dy*gt[1] - dx*gt[4]) / det
	return col, row
}

// WorldToCell converts world coordinates to center-based cell coordinates,
// the addressing used by interp.Grid
func (gt GeoTransform) WorldToCell(x, y float64) (float64, float64) {
	col, row := gt.WorldToPixel(x, y)
	return col - 0.5, row - 0.5
}

// Resolution returns the absolute cell sizes
func (gt GeoTransform) Resolution() (float64, float64) {
	resX := math.Hypot(gt[1], gt[4])
	resY := math.Hypot(gt[2], gt[5])
	return resX, resY
}

// Origin returns the world coordinates of the top-left corner
func (gt GeoTransform) Origin() (float64, float64) {
	return gt[0], gt[3]
}

// Bounds returns the world-space extent of a raster of the given size
func (gt GeoTransform) Bounds(width, height int) types.Bounds {
	b := types.EmptyBounds()
	for _, c := range [][2]float64{
		{0, 0},
		{float64(width), 0},
		{0, float64(height)},
		{float64(width), float64(height)},
	} {
		x, y := gt.PixelToWorld(c[0], c[1])
		b = b.Extend(x, y)
	}
	return b
}
