package raster

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp" // fallback WebP decode via image.Decode
)

// pngDriver writes 8/16-bit PNG output. PNG is always deflate-compressed;
// "none" is accepted and treated the same.
type pngDriver struct{}

func init() { registerDriver(pngDriver{}) }

func (pngDriver) Name() string { return "PNG" }
func (pngDriver) Ext() string  { return ".png" }

func (pngDriver) Compressions() []Compression {
	return []Compression{CompressDeflate, CompressNone}
}

func (pngDriver) Read(path string) (*Raster, error) {
	return readImageFile(path, func(f *os.File) (image.Image, error) {
		img, _, err := image.Decode(f)
		return img, err
	})
}

func (pngDriver) CanWrite(dtype DType, bands int, photometric string) error {
	return checkCodecWritable("PNG", dtype, bands, photometric, true)
}

func (d pngDriver) Create(path string, tmpl *Raster, opts *WriteOptions) (TileWriter, error) {
	if err := d.CanWrite(tmpl.DType, len(tmpl.Bands), opts.Photometric); err != nil {
		return nil, err
	}
	return newMemTileWriter(path, tmpl, opts, func(f *os.File, img image.Image, _ *WriteOptions) error {
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(f, img)
	})
}

// jpegDriver writes 8-bit JPEG output. Lossy, so only suitable for visual
// products.
type jpegDriver struct{}

func init() { registerDriver(jpegDriver{}) }

func (jpegDriver) Name() string { return "JPEG" }
func (jpegDriver) Ext() string  { return ".jpg" }

func (jpegDriver) Compressions() []Compression {
	return []Compression{CompressJPEG}
}

func (jpegDriver) Read(path string) (*Raster, error) {
	return readImageFile(path, func(f *os.File) (image.Image, error) {
		img, _, err := image.Decode(f)
		return img, err
	})
}

func (jpegDriver) CanWrite(dtype DType, bands int, photometric string) error {
	return checkCodecWritable("JPEG", dtype, bands, photometric, false)
}

func (d jpegDriver) Create(path string, tmpl *Raster, opts *WriteOptions) (TileWriter, error) {
	if err := d.CanWrite(tmpl.DType, len(tmpl.Bands), opts.Photometric); err != nil {
		return nil, err
	}
	return newMemTileWriter(path, tmpl, opts, func(f *os.File, img image.Image, _ *WriteOptions) error {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	})
}

// webpDriver writes lossless 8-bit WebP output
type webpDriver struct{}

func init() { registerDriver(webpDriver{}) }

func (webpDriver) Name() string { return "WebP" }
func (webpDriver) Ext() string  { return ".webp" }

func (webpDriver) Compressions() []Compression {
	return []Compression{CompressNone}
}

func (webpDriver) Read(path string) (*Raster, error) {
	return readImageFile(path, func(f *os.File) (image.Image, error) {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
		img, _, err := image.Decode(f)
		return img, err
	})
}

func (webpDriver) CanWrite(dtype DType, bands int, photometric string) error {
	return checkCodecWritable("WebP", dtype, bands, photometric, false)
}

func (d webpDriver) Create(path string, tmpl *Raster, opts *WriteOptions) (TileWriter, error) {
	if err := d.CanWrite(tmpl.DType, len(tmpl.Bands), opts.Photometric); err != nil {
		return nil, err
	}
	return newMemTileWriter(path, tmpl, opts, func(f *os.File, img image.Image, _ *WriteOptions) error {
		return webp.Encode(f, img, &webp.Options{Lossless: true})
	})
}
