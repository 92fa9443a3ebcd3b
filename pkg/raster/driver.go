package raster

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/orthorectify/pkg/types"
)

// Compression identifies the output compression scheme
type Compression string

// Supported compression values. Whether a value is usable depends on the
// driver; the pairing is checked once at configuration load.
const (
	CompressDeflate  Compression = "deflate"
	CompressJPEG     Compression = "jpeg"
	CompressJPEG2000 Compression = "jpeg2000"
	CompressLZW      Compression = "lzw"
	CompressZstd     Compression = "zstd"
	CompressNone     Compression = "none"
)

// ParseCompression parses a compress config value
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case CompressDeflate, CompressJPEG, CompressJPEG2000, CompressLZW, CompressZstd, CompressNone:
		return Compression(s), nil
	}
	return "", types.NewConfigError("ortho.compress", "unsupported compression %q", s)
}

// Interleave identifies the on-disk ordering of band data
type Interleave string

// Supported interleaves
const (
	InterleavePixel Interleave = "pixel"
	InterleaveBand  Interleave = "band"
)

// ParseInterleave parses an interleave config value
func ParseInterleave(s string) (Interleave, error) {
	switch Interleave(s) {
	case InterleavePixel, InterleaveBand:
		return Interleave(s), nil
	}
	return "", types.NewConfigError("ortho.interleave", "unsupported interleave %q", s)
}

// WriteOptions control how a driver lays an output raster on disk
type WriteOptions struct {
	Compress    Compression
	Interleave  Interleave
	Photometric string
	WriteMask   bool
	Overwrite   bool
}

// Driver reads and writes one raster file format
type Driver interface {
	// Name is the config spelling of the driver
	Name() string
	// Ext is the default file extension including the dot
	Ext() string
	// Compressions lists the compression values the driver can honor
	Compressions() []Compression
	// CanWrite reports whether the driver can store samples of this type
	// and band count without narrowing them. Checked before any tile work
	// so an uncarriable output fails with ConfigError, not at encode time.
	CanWrite(dtype DType, bands int, photometric string) error
	// Read loads a raster, including any georeferencing sidecar
	Read(path string) (*Raster, error)
	// Create opens a tile writer for a raster shaped like tmpl. The
	// destination is checked exactly once, before any tile is written.
	Create(path string, tmpl *Raster, opts *WriteOptions) (TileWriter, error)
}

// TileWriter accepts tiles of resampled data and finalizes the output file.
// Each tile's region must be written exactly once; tiles may arrive in any
// order. Close flushes and writes sidecars (world file, mask). Abort
// releases the writer after a failed run without finalizing: no encoded
// output, header or sidecar may appear for an aborted write.
type TileWriter interface {
	// WriteTile stores one tile. rect is the pixel region in the output
	// grid; bands holds rect.Dx()*rect.Dy() samples per band, row-major.
	WriteTile(rect image.Rectangle, bands [][]float64) error
	Close() error
	Abort() error
}

var drivers = map[string]Driver{}

func registerDriver(d Driver) {
	drivers[strings.ToLower(d.Name())] = d
}

// DriverByName looks a driver up by its config name
func DriverByName(name string) (Driver, error) {
	if d, ok := drivers[strings.ToLower(name)]; ok {
		return d, nil
	}
	return nil, types.NewConfigError("ortho.driver", "unknown driver %q", name)
}

// DriverForPath picks a driver from a file extension, defaulting to GTiff
func DriverForPath(path string) Driver {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return drivers["png"]
	case ".jpg", ".jpeg":
		return drivers["jpeg"]
	case ".webp":
		return drivers["webp"]
	case ".raw", ".bsq", ".bip", ".img":
		return drivers["envi"]
	default:
		return drivers["gtiff"]
	}
}

// SupportsCompression reports whether the driver honors c
func SupportsCompression(d Driver, c Compression) bool {
	for _, s := range d.Compressions() {
		if s == c {
			return true
		}
	}
	return false
}

// checkDestination enforces the fail-fast overwrite policy shared by all
// drivers: an existing destination without overwrite aborts before any tile
// is written.
func checkDestination(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return types.NewIOError("create", path, os.ErrExist)
		}
		if err := os.Remove(path); err != nil {
			return types.NewIOError("remove", path, err)
		}
	}
	return nil
}

// Read loads a raster using the driver matching the file extension
func Read(path string) (*Raster, error) {
	return DriverForPath(path).Read(path)
}
