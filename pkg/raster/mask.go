package raster

import (
	"image"
	"image/png"
	"math"
	"os"

	"github.com/menta2k/orthorectify/pkg/types"
)

// maskAccum accumulates the internal validity mask: 255 where every band
// holds valid data, 0 where the pixel is nodata.
type maskAccum struct {
	gray *image.Gray
}

func newMaskAccum(width, height int) *maskAccum {
	return &maskAccum{gray: image.NewGray(image.Rect(0, 0, width, height))}
}

func (m *maskAccum) update(rect image.Rectangle, bands [][]float64, nodata float64) {
	tw := rect.Dx()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			i := (y-rect.Min.Y)*tw + (x - rect.Min.X)
			valid := true
			for _, band := range bands {
				v := band[i]
				if v == nodata || math.IsNaN(v) {
					valid = false
					break
				}
			}
			if valid {
				m.gray.Pix[m.gray.PixOffset(x, y)] = 255
			}
		}
	}
}

// write stores the mask as an 8-bit PNG sidecar next to the output,
// following the GDAL .msk convention
func (m *maskAccum) write(path string) error {
	mskPath := path + ".msk"
	f, err := os.Create(mskPath)
	if err != nil {
		return types.NewIOError("create", mskPath, err)
	}
	defer f.Close()
	if err := png.Encode(f, m.gray); err != nil {
		return types.NewIOError("write", mskPath, err)
	}
	return nil
}
