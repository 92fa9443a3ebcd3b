package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/menta2k/orthorectify/pkg/types"
)

// enviDriver reads and writes flat binary rasters with an ENVI text header.
// It is the only in-tree format that stores every supported data type and
// both interleaves, and the only one whose tile writer streams each tile's
// byte range straight to disk.
type enviDriver struct{}

func init() { registerDriver(enviDriver{}) }

func (enviDriver) Name() string { return "ENVI" }
func (enviDriver) Ext() string  { return ".raw" }

func (enviDriver) Compressions() []Compression {
	return []Compression{CompressNone}
}

// CanWrite always succeeds: the flat binary layout stores every supported
// data type and any band count at full precision.
func (enviDriver) CanWrite(DType, int, string) error { return nil }

var enviTypeCodes = map[DType]int{
	Uint8:   1,
	Int16:   2,
	Int32:   3,
	Float32: 4,
	Float64: 5,
	Uint16:  12,
	Uint32:  13,
}

func enviTypeFromCode(code int) (DType, bool) {
	for d, c := range enviTypeCodes {
		if c == code {
			return d, true
		}
	}
	return "", false
}

func enviHeaderPath(path string) string { return path + ".hdr" }

func (enviDriver) Read(path string) (*Raster, error) {
	hdr, err := parseENVIHeader(enviHeaderPath(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewIOError("open", path, err)
	}
	defer f.Close()

	r, err := New(hdr.samples, hdr.lines, hdr.bands, hdr.dtype)
	if err != nil {
		return nil, err
	}
	r.Transform = hdr.transform
	r.Nodata = hdr.nodata

	size := hdr.dtype.Size()
	buf := make([]byte, hdr.samples*size)
	rd := bufio.NewReaderSize(f, 1<<16)

	switch hdr.interleave {
	case InterleaveBand: // BSQ: band-sequential rows
		for b := 0; b < hdr.bands; b++ {
			for row := 0; row < hdr.lines; row++ {
				if _, err := io.ReadFull(rd, buf); err != nil {
					return nil, types.NewIOError("read", path, err)
				}
				decodeSamples(buf, hdr.dtype, r.Bands[b][row*hdr.samples:(row+1)*hdr.samples])
			}
		}
	default: // BIP: pixel-interleaved
		pix := make([]byte, hdr.bands*size)
		for row := 0; row < hdr.lines; row++ {
			for col := 0; col < hdr.samples; col++ {
				if _, err := io.ReadFull(rd, pix); err != nil {
					return nil, types.NewIOError("read", path, err)
				}
				for b := 0; b < hdr.bands; b++ {
					r.Bands[b][row*hdr.samples+col] = decodeSample(pix[b*size:], hdr.dtype)
				}
			}
		}
	}
	return r, nil
}

func (d enviDriver) Create(path string, tmpl *Raster, opts *WriteOptions) (TileWriter, error) {
	if err := checkDestination(path, opts.Overwrite); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, types.NewIOError("create", path, err)
	}

	size := tmpl.DType.Size()
	total := int64(tmpl.Width) * int64(tmpl.Height) * int64(len(tmpl.Bands)) * int64(size)
	if err := f.Truncate(total); err != nil {
		f.Close()
		return nil, types.NewIOError("allocate", path, err)
	}

	w := &enviTileWriter{
		f:      f,
		path:   path,
		width:  tmpl.Width,
		height: tmpl.Height,
		bands:  len(tmpl.Bands),
		dtype:  tmpl.DType,
		gt:     tmpl.Transform,
		nodata: tmpl.NodataValue(0),
		opts:   *opts,
	}
	if opts.WriteMask {
		w.mask = newMaskAccum(tmpl.Width, tmpl.Height)
	}
	return w, nil
}

// enviTileWriter writes each tile's byte ranges directly at their final
// file offsets, so tiles can arrive in any order and are never rewritten.
type enviTileWriter struct {
	f      *os.File
	path   string
	width  int
	height int
	bands  int
	dtype  DType
	gt     GeoTransform
	nodata float64
	opts   WriteOptions
	mask   *maskAccum
}

func (w *enviTileWriter) WriteTile(rect image.Rectangle, bands [][]float64) error {
	if len(bands) != w.bands {
		return fmt.Errorf("tile has %d bands, output has %d", len(bands), w.bands)
	}
	tw := rect.Dx()
	size := w.dtype.Size()

	switch w.opts.Interleave {
	case InterleaveBand:
		row := make([]byte, tw*size)
		for b := 0; b < w.bands; b++ {
			for y := rect.Min.Y; y < rect.Max.Y; y++ {
				src := bands[b][(y-rect.Min.Y)*tw : (y-rect.Min.Y+1)*tw]
				w.castRow(src, row, size, 1)
				off := (int64(b)*int64(w.height)*int64(w.width) + int64(y)*int64(w.width) + int64(rect.Min.X)) * int64(size)
				if _, err := w.f.WriteAt(row, off); err != nil {
					return types.NewIOError("write", w.path, err)
				}
			}
		}
	default: // pixel interleave
		row := make([]byte, tw*w.bands*size)
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for b := 0; b < w.bands; b++ {
				src := bands[b][(y-rect.Min.Y)*tw : (y-rect.Min.Y+1)*tw]
				w.castRowOffset(src, row, b*size, size, w.bands)
			}
			off := (int64(y)*int64(w.width) + int64(rect.Min.X)) * int64(w.bands) * int64(size)
			if _, err := w.f.WriteAt(row, off); err != nil {
				return types.NewIOError("write", w.path, err)
			}
		}
	}

	if w.mask != nil {
		w.mask.update(rect, bands, w.nodata)
	}
	return nil
}

func (w *enviTileWriter) castRow(src []float64, dst []byte, size, stride int) {
	w.castRowOffset(src, dst, 0, size, stride)
}

func (w *enviTileWriter) castRowOffset(src []float64, dst []byte, off, size, stride int) {
	for i, v := range src {
		c, ok := w.dtype.Cast(v)
		if !ok {
			c = w.nodata
		}
		encodeSample(dst[off+i*stride*size:], w.dtype, c)
	}
}

// Abort removes the partially written data file without emitting the
// header, so a failed run does not leave a readable ENVI raster behind.
func (w *enviTileWriter) Abort() error {
	if w.f == nil {
		return nil
	}
	w.f.Close()
	w.f = nil
	if err := os.Remove(w.path); err != nil {
		return types.NewIOError("remove", w.path, err)
	}
	return nil
}

func (w *enviTileWriter) Close() error {
	if w.f == nil {
		return nil
	}
	if err := w.f.Close(); err != nil {
		return types.NewIOError("close", w.path, err)
	}
	if err := writeENVIHeader(w); err != nil {
		return err
	}
	if w.mask != nil {
		if err := w.mask.write(w.path); err != nil {
			return err
		}
	}
	return nil
}

type enviHeader struct {
	samples, lines, bands int
	dtype                 DType
	interleave            Interleave
	transform             GeoTransform
	nodata                *float64
}

func writeENVIHeader(w *enviTileWriter) error {
	hdrPath := enviHeaderPath(w.path)
	f, err := os.Create(hdrPath)
	if err != nil {
		return types.NewIOError("create", hdrPath, err)
	}
	defer f.Close()

	interleave := "bip"
	if w.opts.Interleave == InterleaveBand {
		interleave = "bsq"
	}
	resX, resY := w.gt.Resolution()
	ox, oy := w.gt.Origin()

	fmt.Fprintln(f, "ENVI")
	fmt.Fprintf(f, "samples = %d\n", w.width)
	fmt.Fprintf(f, "lines = %d\n", w.height)
	fmt.Fprintf(f, "bands = %d\n", w.bands)
	fmt.Fprintln(f, "header offset = 0")
	fmt.Fprintln(f, "file type = ENVI Standard")
	fmt.Fprintf(f, "data type = %d\n", enviTypeCodes[w.dtype])
	fmt.Fprintf(f, "interleave = %s\n", interleave)
	fmt.Fprintln(f, "byte order = 0")
	fmt.Fprintf(f, "map info = {Arbitrary, 1, 1, %.10f, %.10f, %.10f, %.10f}\n", ox, oy, resX, resY)
	fmt.Fprintf(f, "data ignore value = %g\n", w.nodata)
	if w.opts.Photometric != "" {
		fmt.Fprintf(f, "description = {photometric: %s}\n", w.opts.Photometric)
	}
	return nil
}

func parseENVIHeader(path string) (*enviHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewIOError("open", path, err)
	}
	defer f.Close()

	hdr := &enviHeader{interleave: InterleavePixel, dtype: Uint8}
	var mapInfo []float64

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(strings.ToLower(key))
		value = strings.TrimSpace(value)
		switch key {
		case "samples":
			hdr.samples, _ = strconv.Atoi(value)
		case "lines":
			hdr.lines, _ = strconv.Atoi(value)
		case "bands":
			hdr.bands, _ = strconv.Atoi(value)
		case "data type":
			code, _ := strconv.Atoi(value)
			d, ok := enviTypeFromCode(code)
			if !ok {
				return nil, types.NewIOError("parse", path, fmt.Errorf("unsupported ENVI data type %d", code))
			}
			hdr.dtype = d
		case "interleave":
			if strings.EqualFold(value, "bsq") {
				hdr.interleave = InterleaveBand
			}
		case "data ignore value":
			v, err := strconv.ParseFloat(value, 64)
			if err == nil {
				hdr.nodata = &v
			}
		case "map info":
			value = strings.Trim(value, "{}")
			for _, part := range strings.Split(value, ",") {
				if v, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
					mapInfo = append(mapInfo, v)
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, types.NewIOError("read", path, err)
	}
	if hdr.samples <= 0 || hdr.lines <= 0 || hdr.bands <= 0 {
		return nil, types.NewIOError("parse", path, fmt.Errorf("incomplete ENVI header"))
	}

	// map info numeric fields: refCol, refRow, refX, refY, resX, resY
	if len(mapInfo) >= 6 {
		hdr.transform = NewGeoTransform(mapInfo[2], mapInfo[3], mapInfo[4], mapInfo[5])
	} else {
		hdr.transform = NewGeoTransform(0, float64(hdr.lines), 1, 1)
	}
	return hdr, nil
}

func encodeSample(buf []byte, d DType, v float64) {
	switch d {
	case Uint8:
		buf[0] = uint8(v)
	case Int16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case Uint16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case Uint32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case Float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	default:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	}
}

func decodeSample(buf []byte, d DType) float64 {
	switch d {
	case Uint8:
		return float64(buf[0])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(buf)))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(buf))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(buf)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(buf))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
}

func decodeSamples(buf []byte, d DType, dst []float64) {
	size := d.Size()
	for i := range dst {
		dst[i] = decodeSample(buf[i*size:], d)
	}
}
