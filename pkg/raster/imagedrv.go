package raster

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/menta2k/orthorectify/pkg/types"
)

// checkCodecWritable enforces the sample range an 8/16-bit image codec can
// carry. Wider sample types must be rejected up front: squeezing them into
// the codec would wrap out-of-range values and turn the nodata sentinel
// into a plausible sample.
func checkCodecWritable(name string, dtype DType, bands int, photometric string, allow16 bool) error {
	if photometric == "rgb" && bands < 3 {
		return types.NewConfigError("ortho.photometric", "rgb needs 3 bands, raster has %d", bands)
	}
	gray := bands == 1 || photometric == "minisblack"
	if !gray && bands < 3 {
		return types.NewConfigError("ortho.driver",
			"%s driver needs 1 or 3 bands, raster has %d", name, bands)
	}

	switch dtype {
	case Uint8:
		return nil
	case Uint16:
		if allow16 && gray {
			return nil
		}
	}
	return types.NewConfigError("ortho.dtype",
		"%s driver cannot store %s samples without narrowing", name, dtype)
}

// bandsFromImage converts a decoded image to raster bands. Gray images
// yield one band; everything else yields RGB. 16-bit samples are kept at
// full precision.
func bandsFromImage(img image.Image) (*Raster, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch im := img.(type) {
	case *image.Gray:
		r, err := New(w, h, 1, Uint8)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Bands[0][y*w+x] = float64(im.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return r, nil
	case *image.Gray16:
		r, err := New(w, h, 1, Uint16)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Bands[0][y*w+x] = float64(im.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return r, nil
	default:
		r, err := New(w, h, 3, Uint8)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				cr, cg, cb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := y*w + x
				r.Bands[0][i] = float64(cr >> 8)
				r.Bands[1][i] = float64(cg >> 8)
				r.Bands[2][i] = float64(cb >> 8)
			}
		}
		return r, nil
	}
}

// imageFromRaster renders the raster to an image for an 8/16-bit codec.
// photometric "minisblack" forces grayscale from band 1; "rgb" requires
// three bands.
func imageFromRaster(r *Raster, photometric string) (image.Image, error) {
	nodata := r.NodataValue(0)
	gray := len(r.Bands) == 1 || photometric == "minisblack"
	if photometric == "rgb" && len(r.Bands) < 3 {
		return nil, types.NewConfigError("ortho.photometric", "rgb needs 3 bands, raster has %d", len(r.Bands))
	}

	cast := func(v float64) float64 {
		c, ok := r.DType.Cast(v)
		if !ok {
			return nodata
		}
		return c
	}

	if gray {
		if r.DType == Uint16 {
			img := image.NewGray16(image.Rect(0, 0, r.Width, r.Height))
			for y := 0; y < r.Height; y++ {
				for x := 0; x < r.Width; x++ {
					img.SetGray16(x, y, color.Gray16{Y: uint16(cast(r.Bands[0][y*r.Width+x]))})
				}
			}
			return img, nil
		}
		img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				img.Pix[img.PixOffset(x, y)] = uint8(cast(r.Bands[0][y*r.Width+x]))
			}
		}
		return img, nil
	}

	if len(r.Bands) < 3 {
		return nil, fmt.Errorf("color output needs 3 bands, raster has %d", len(r.Bands))
	}
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			i := y*r.Width + x
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(cast(r.Bands[0][i])),
				G: uint8(cast(r.Bands[1][i])),
				B: uint8(cast(r.Bands[2][i])),
				A: 255,
			})
		}
	}
	return img, nil
}

// encodeFunc writes an image in one codec
type encodeFunc func(f *os.File, img image.Image, opts *WriteOptions) error

// memTileWriter accumulates tiles in memory and encodes the whole raster on
// Close. Image codecs cannot stream arbitrary tile regions, so the byte
// layout is deferred to the encoder; tile regions are still each written
// exactly once into the accumulation buffer.
type memTileWriter struct {
	path   string
	out    *Raster
	opts   WriteOptions
	encode encodeFunc
	mask   *maskAccum
}

func newMemTileWriter(path string, tmpl *Raster, opts *WriteOptions, encode encodeFunc) (TileWriter, error) {
	if err := checkDestination(path, opts.Overwrite); err != nil {
		return nil, err
	}
	out, err := New(tmpl.Width, tmpl.Height, len(tmpl.Bands), tmpl.DType)
	if err != nil {
		return nil, err
	}
	out.Transform = tmpl.Transform
	out.Nodata = tmpl.Nodata
	out.CRS = tmpl.CRS
	out.Fill(tmpl.NodataValue(0))

	w := &memTileWriter{path: path, out: out, opts: *opts, encode: encode}
	if opts.WriteMask {
		w.mask = newMaskAccum(tmpl.Width, tmpl.Height)
	}
	return w, nil
}

func (w *memTileWriter) WriteTile(rect image.Rectangle, bands [][]float64) error {
	if len(bands) != len(w.out.Bands) {
		return fmt.Errorf("tile has %d bands, output has %d", len(bands), len(w.out.Bands))
	}
	tw := rect.Dx()
	for b := range bands {
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			src := bands[b][(y-rect.Min.Y)*tw : (y-rect.Min.Y+1)*tw]
			copy(w.out.Bands[b][y*w.out.Width+rect.Min.X:], src)
		}
	}
	if w.mask != nil {
		w.mask.update(rect, bands, w.out.NodataValue(0))
	}
	return nil
}

// Abort drops the accumulated tiles. Nothing has touched the disk yet, so
// a failed run leaves no output file at all.
func (w *memTileWriter) Abort() error {
	w.out = nil
	w.mask = nil
	return nil
}

func (w *memTileWriter) Close() error {
	if w.out == nil {
		return nil
	}
	img, err := imageFromRaster(w.out, w.opts.Photometric)
	if err != nil {
		return err
	}
	f, err := os.Create(w.path)
	if err != nil {
		return types.NewIOError("create", w.path, err)
	}
	if err := w.encode(f, img, &w.opts); err != nil {
		f.Close()
		return types.NewIOError("write", w.path, err)
	}
	if err := f.Close(); err != nil {
		return types.NewIOError("close", w.path, err)
	}
	if err := writeWorldFile(w.path, w.out.Transform); err != nil {
		return err
	}
	if w.mask != nil {
		if err := w.mask.write(w.path); err != nil {
			return err
		}
	}
	return nil
}

// readImageFile decodes an image file plus its world file sidecar
func readImageFile(path string, decode func(*os.File) (image.Image, error)) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewIOError("open", path, err)
	}
	defer f.Close()

	img, err := decode(f)
	if err != nil {
		return nil, types.NewIOError("decode", path, err)
	}
	r, err := bandsFromImage(img)
	if err != nil {
		return nil, err
	}

	gt, ok, err := readWorldFile(path)
	if err != nil {
		return nil, err
	}
	if ok {
		r.Transform = gt
	} else {
		// bare image: identity grid, one unit per pixel, north-up
		r.Transform = NewGeoTransform(0, float64(r.Height), 1, 1)
	}
	return r, nil
}
