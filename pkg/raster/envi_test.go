package raster

import (
	"bytes"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/orthorectify/pkg/types"
)

func testRaster(t *testing.T, dtype DType) *Raster {
	t.Helper()
	r, err := New(7, 5, 3, dtype)
	if err != nil {
		t.Fatal(err)
	}
	r.Transform = NewGeoTransform(1000, 2000, 0.5, 0.5)
	nodata := -9999.0
	if dtype == Uint8 {
		nodata = 0
	}
	r.Nodata = &nodata
	for b := range r.Bands {
		for i := range r.Bands[b] {
			r.Bands[b][i] = float64((b+1)*10 + i%50)
		}
	}
	return r
}

func writeWhole(t *testing.T, drv Driver, path string, r *Raster, opts *WriteOptions) {
	t.Helper()
	w, err := drv.Create(path, r, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteTile(image.Rect(0, 0, r.Width, r.Height), r.Bands); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestENVIRoundTrip(t *testing.T) {
	for _, dtype := range []DType{Uint8, Int16, Float32, Float64} {
		for _, il := range []Interleave{InterleavePixel, InterleaveBand} {
			r := testRaster(t, dtype)
			path := filepath.Join(t.TempDir(), "out.raw")
			writeWhole(t, enviDriver{}, path, r, &WriteOptions{
				Compress:   CompressNone,
				Interleave: il,
				Overwrite:  true,
			})

			got, err := enviDriver{}.Read(path)
			if err != nil {
				t.Fatalf("%s/%s: read failed: %v", dtype, il, err)
			}
			if got.Width != r.Width || got.Height != r.Height || got.BandCount() != 3 {
				t.Fatalf("%s/%s: shape %dx%dx%d", dtype, il, got.Width, got.Height, got.BandCount())
			}
			if got.DType != dtype {
				t.Errorf("%s/%s: dtype %s", dtype, il, got.DType)
			}
			for b := range r.Bands {
				for i := range r.Bands[b] {
					if got.Bands[b][i] != r.Bands[b][i] {
						t.Fatalf("%s/%s: band %d sample %d = %v, want %v",
							dtype, il, b, i, got.Bands[b][i], r.Bands[b][i])
					}
				}
			}
			resX, resY := got.Transform.Resolution()
			if resX != 0.5 || resY != 0.5 {
				t.Errorf("%s/%s: resolution (%v, %v)", dtype, il, resX, resY)
			}
		}
	}
}

func TestENVIInterleaveEquivalence(t *testing.T) {
	// pixel and band interleave must hold the same band values,
	// differing only in on-disk layout
	r := testRaster(t, Int16)
	dir := t.TempDir()
	bip := filepath.Join(dir, "bip.raw")
	bsq := filepath.Join(dir, "bsq.raw")
	writeWhole(t, enviDriver{}, bip, r, &WriteOptions{Interleave: InterleavePixel, Overwrite: true})
	writeWhole(t, enviDriver{}, bsq, r, &WriteOptions{Interleave: InterleaveBand, Overwrite: true})

	a, err := enviDriver{}.Read(bip)
	if err != nil {
		t.Fatal(err)
	}
	b, err := enviDriver{}.Read(bsq)
	if err != nil {
		t.Fatal(err)
	}
	for band := range a.Bands {
		for i := range a.Bands[band] {
			if a.Bands[band][i] != b.Bands[band][i] {
				t.Fatalf("band %d sample %d: bip %v != bsq %v", band, i, a.Bands[band][i], b.Bands[band][i])
			}
		}
	}

	rawA, _ := os.ReadFile(bip)
	rawB, _ := os.ReadFile(bsq)
	if bytes.Equal(rawA, rawB) {
		t.Error("bip and bsq layouts should differ on disk for multi-band data")
	}
}

func TestENVITiledWritesMatchWhole(t *testing.T) {
	r := testRaster(t, Float32)
	dir := t.TempDir()
	whole := filepath.Join(dir, "whole.raw")
	tiled := filepath.Join(dir, "tiled.raw")
	opts := &WriteOptions{Interleave: InterleaveBand, Overwrite: true}

	writeWhole(t, enviDriver{}, whole, r, opts)

	w, err := enviDriver{}.Create(tiled, r, opts)
	if err != nil {
		t.Fatal(err)
	}
	// out-of-order 3x3 tiles
	rects := []image.Rectangle{
		image.Rect(3, 3, 7, 5),
		image.Rect(0, 0, 3, 3),
		image.Rect(3, 0, 7, 3),
		image.Rect(0, 3, 3, 5),
	}
	for _, rect := range rects {
		tile := make([][]float64, len(r.Bands))
		for b := range tile {
			tile[b] = make([]float64, rect.Dx()*rect.Dy())
			for y := rect.Min.Y; y < rect.Max.Y; y++ {
				copy(tile[b][(y-rect.Min.Y)*rect.Dx():], r.Bands[b][y*r.Width+rect.Min.X:y*r.Width+rect.Max.X])
			}
		}
		if err := w.WriteTile(rect, tile); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	rawWhole, _ := os.ReadFile(whole)
	rawTiled, _ := os.ReadFile(tiled)
	if !bytes.Equal(rawWhole, rawTiled) {
		t.Error("tiled writes should be byte-identical to a whole-raster write")
	}
}

func TestOverwriteRefused(t *testing.T) {
	r := testRaster(t, Uint8)
	path := filepath.Join(t.TempDir(), "out.raw")
	writeWhole(t, enviDriver{}, path, r, &WriteOptions{Overwrite: true})

	_, err := enviDriver{}.Create(path, r, &WriteOptions{Overwrite: false})
	var ioErr *types.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError for existing destination, got %v", err)
	}
	if !errors.Is(err, os.ErrExist) {
		t.Error("IOError should wrap os.ErrExist")
	}
}

func TestCastOutOfRangeBecomesNodata(t *testing.T) {
	r := testRaster(t, Uint8)
	nodata := 0.0
	r.Nodata = &nodata
	r.Bands[0][0] = 300    // above uint8 range
	r.Bands[0][1] = -5     // below
	r.Bands[0][2] = math.NaN()
	path := filepath.Join(t.TempDir(), "out.raw")
	writeWhole(t, enviDriver{}, path, r, &WriteOptions{Overwrite: true})

	got, err := enviDriver{}.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range []int{0, 1, 2} {
		if got.Bands[0][i] != nodata {
			t.Errorf("sample %d = %v, want nodata %v (no wraparound)", i, got.Bands[0][i], nodata)
		}
	}
}

func TestWriteMaskSidecar(t *testing.T) {
	r := testRaster(t, Int16)
	nodata := -9999.0
	r.Nodata = &nodata
	r.Bands[0][0] = nodata
	path := filepath.Join(t.TempDir(), "out.raw")
	writeWhole(t, enviDriver{}, path, r, &WriteOptions{Overwrite: true, WriteMask: true})

	if _, err := os.Stat(path + ".msk"); err != nil {
		t.Fatalf("mask sidecar missing: %v", err)
	}
}

func TestENVIWriterAbort(t *testing.T) {
	r := testRaster(t, Float32)
	path := filepath.Join(t.TempDir(), "out.raw")
	w, err := enviDriver{}.Create(path, r, &WriteOptions{Overwrite: true, WriteMask: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteTile(image.Rect(0, 0, r.Width, r.Height), r.Bands); err != nil {
		t.Fatal(err)
	}
	if err := w.Abort(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close after Abort: %v", err)
	}
	for _, p := range []string{path, enviHeaderPath(path), path + ".msk"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("aborted write left %s behind", p)
		}
	}
}

func TestENVIRewriteIsByteIdentical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	write := func() []byte {
		r := testRaster(t, Float32)
		writeWhole(t, enviDriver{}, path, r, &WriteOptions{
			Compress:   CompressNone,
			Interleave: InterleaveBand,
			Overwrite:  true,
		})
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		hdr, err := os.ReadFile(enviHeaderPath(path))
		if err != nil {
			t.Fatal(err)
		}
		return append(data, hdr...)
	}

	first := write()
	second := write()
	if !bytes.Equal(first, second) {
		t.Error("rewriting the same raster produced different bytes")
	}
}
