package raster

import (
	"math"

	"github.com/menta2k/orthorectify/pkg/types"
)

// DType identifies the on-disk sample type of a raster band
type DType string

// Supported data types
const (
	Uint8   DType = "uint8"
	Uint16  DType = "uint16"
	Int16   DType = "int16"
	Uint32  DType = "uint32"
	Int32   DType = "int32"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// DTypes lists every supported data type
func DTypes() []DType {
	return []DType{Uint8, Uint16, Int16, Uint32, Int32, Float32, Float64}
}

// ParseDType parses a dtype config value
func ParseDType(s string) (DType, error) {
	for _, d := range DTypes() {
		if DType(s) == d {
			return d, nil
		}
	}
	return "", types.NewConfigError("ortho.dtype", "unsupported data type %q", s)
}

// Size returns the sample size in bytes
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	default:
		return 8
	}
}

// Integer reports whether the type holds integer samples
func (d DType) Integer() bool {
	switch d {
	case Uint8, Uint16, Int16, Uint32, Int32:
		return true
	}
	return false
}

// Range returns the representable [min, max] value range
func (d DType) Range() (float64, float64) {
	switch d {
	case Uint8:
		return 0, math.MaxUint8
	case Uint16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	default:
		return -math.MaxFloat64, math.MaxFloat64
	}
}

// Cast converts a computed floating value to the target type. Integer types
// round half away from zero. NaN, infinities and values outside the
// representable range return false so the caller can substitute nodata
// instead of wrapping around.
func (d DType) Cast(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if d.Integer() {
		v = math.Round(v)
	}
	lo, hi := d.Range()
	if v < lo || v > hi {
		return 0, false
	}
	if d == Float32 {
		v = float64(float32(v))
	}
	return v, true
}

// Representable reports whether v can be stored losslessly enough to act as
// the nodata sentinel for this type
func (d DType) Representable(v float64) bool {
	if math.IsNaN(v) {
		return !d.Integer()
	}
	c, ok := d.Cast(v)
	if !ok {
		return false
	}
	if d.Integer() {
		return c == v
	}
	return true
}
