package raster

import (
	"image"
	"os"

	"golang.org/x/image/tiff"
)

// gtiffDriver reads and writes TIFF rasters through golang.org/x/image/tiff.
// The encoder handles 8/16-bit gray and 8-bit color with deflate or no
// compression; georeferencing travels in a .tfw world file.
type gtiffDriver struct{}

func init() { registerDriver(gtiffDriver{}) }

func (gtiffDriver) Name() string { return "GTiff" }
func (gtiffDriver) Ext() string  { return ".tif" }

func (gtiffDriver) Compressions() []Compression {
	return []Compression{CompressDeflate, CompressNone}
}

func (gtiffDriver) Read(path string) (*Raster, error) {
	return readImageFile(path, func(f *os.File) (image.Image, error) {
		return tiff.Decode(f)
	})
}

func (gtiffDriver) CanWrite(dtype DType, bands int, photometric string) error {
	return checkCodecWritable("GTiff", dtype, bands, photometric, true)
}

func (d gtiffDriver) Create(path string, tmpl *Raster, opts *WriteOptions) (TileWriter, error) {
	if err := d.CanWrite(tmpl.DType, len(tmpl.Bands), opts.Photometric); err != nil {
		return nil, err
	}
	return newMemTileWriter(path, tmpl, opts, func(f *os.File, img image.Image, opts *WriteOptions) error {
		compression := tiff.Uncompressed
		if opts.Compress == CompressDeflate {
			compression = tiff.Deflate
		}
		return tiff.Encode(f, img, &tiff.Options{Compression: compression})
	})
}
