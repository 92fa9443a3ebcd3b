package types

import (
	"fmt"
	"math"
)

// Bounds represents a world-space bounding box in the output CRS
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// EmptyBounds returns a bounds value that unions cleanly with any point
func EmptyBounds() Bounds {
	return Bounds{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// Extend grows the bounds to include the point (x, y)
func (b Bounds) Extend(x, y float64) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, x),
		MinY: math.Min(b.MinY, y),
		MaxX: math.Max(b.MaxX, x),
		MaxY: math.Max(b.MaxY, y),
	}
}

// Union returns the smallest bounds containing both b and other
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

// Intersect returns the overlap of b and other
func (b Bounds) Intersect(other Bounds) Bounds {
	return Bounds{
		MinX: math.Max(b.MinX, other.MinX),
		MinY: math.Max(b.MinY, other.MinY),
		MaxX: math.Min(b.MaxX, other.MaxX),
		MaxY: math.Min(b.MaxY, other.MaxY),
	}
}

// Empty reports whether the bounds enclose no area
func (b Bounds) Empty() bool {
	return b.MinX >= b.MaxX || b.MinY >= b.MaxY
}

// Width returns the east-west extent
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the north-south extent
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// ConfigError reports an invalid or missing configuration parameter.
// It is always raised before any raster processing starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %s", e.Reason)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a ConfigError for the given field
func NewConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// GeometryError reports degenerate camera or raster geometry
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: %s", e.Reason)
}

// NewGeometryError creates a GeometryError
func NewGeometryError(format string, args ...interface{}) *GeometryError {
	return &GeometryError{Reason: fmt.Sprintf(format, args...)}
}

// ConvergenceError reports a ray-terrain intersection that did not converge
// within the iteration bound. It is recovered locally as nodata, never fatal.
type ConvergenceError struct {
	X, Y       float64
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("ray-terrain intersection at (%.3f, %.3f) did not converge after %d iterations",
		e.X, e.Y, e.Iterations)
}

// IOError reports an unreadable input or unwritable output. Fatal to the run.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s failed", e.Op, e.Path)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError creates an IOError wrapping err
func NewIOError(op, path string, err error) *IOError {
	return &IOError{Path: path, Op: op, Err: err}
}
