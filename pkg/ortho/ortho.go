// Package ortho reprojects a source image through a camera model onto a
// DEM surface, producing a north-up orthorectified raster. The per-pixel
// work is split into tiles processed by a bounded worker pool; finished
// tiles flow through a single writer so the output driver never sees
// concurrent writes.
package ortho

import (
	"context"
	"fmt"
	"image"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/orthorectify/pkg/camera"
	"github.com/menta2k/orthorectify/pkg/dem"
	"github.com/menta2k/orthorectify/pkg/interp"
	"github.com/menta2k/orthorectify/pkg/raster"
	"github.com/menta2k/orthorectify/pkg/types"
)

// Options tune a single orthorectification run
type Options struct {
	// ResX, ResY are the output cell sizes in world units
	ResX, ResY float64
	// TileWidth, TileHeight size the processing tiles in output pixels
	TileWidth, TileHeight int
	// Interp selects the source resampling kernel
	Interp interp.Interp
	// PerBand processes one source band at a time within each tile
	PerBand bool
	// Nodata is the output nodata value
	Nodata float64
	// Workers bounds the tile worker pool
	Workers int
	// Tolerance, MaxIter and CheckOcclusion configure the intersector
	Tolerance      float64
	MaxIter        int
	CheckOcclusion bool
}

// Stats summarizes a completed run
type Stats struct {
	Tiles        int
	Pixels       int
	Valid        int
	NotConverged int
}

// Ortho orchestrates one source image onto one output grid
type Ortho struct {
	cam  *camera.Camera
	dem  *dem.Sampler
	res  *Resampler
	its  *Intersector
	opts Options
	log  *zap.SugaredLogger

	gt     raster.GeoTransform
	width  int
	height int
}

// New prepares a run over src. The output grid is derived immediately so
// callers can size the destination before any pixel work starts.
func New(cam *camera.Camera, d *dem.Sampler, src *raster.Raster, opts Options, log *zap.SugaredLogger) (*Ortho, error) {
	if opts.TileWidth <= 0 || opts.TileHeight <= 0 {
		return nil, types.NewConfigError("tile_size", "tile dimensions must be positive")
	}
	if opts.Workers <= 0 {
		return nil, types.NewConfigError("workers", "worker count must be positive")
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultMaxIter
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	gt, w, h, err := OutputGrid(cam, d, opts.ResX, opts.ResY)
	if err != nil {
		return nil, fmt.Errorf("deriving output grid: %w", err)
	}

	its := NewIntersector(cam, d)
	its.Tolerance = opts.Tolerance
	its.MaxIter = opts.MaxIter
	its.CheckOcclusion = opts.CheckOcclusion

	return &Ortho{
		cam:    cam,
		dem:    d,
		res:    NewResampler(src, opts.Interp, opts.Nodata),
		its:    its,
		opts:   opts,
		log:    log,
		gt:     gt,
		width:  w,
		height: h,
	}, nil
}

// Grid reports the derived output geotransform and pixel dimensions
func (o *Ortho) Grid() (raster.GeoTransform, int, int) {
	return o.gt, o.width, o.height
}

// BandCount reports the number of output bands
func (o *Ortho) BandCount() int { return o.res.BandCount() }

type tileResult struct {
	rect  image.Rectangle
	bands [][]float64
	stats Stats
}

// Run processes every tile of the output grid and streams the results to
// w. Workers fill private tile buffers; a single goroutine drains them to
// the writer. The first error cancels the remaining work. Run does not
// close w.
func (o *Ortho) Run(ctx context.Context, w raster.TileWriter) (Stats, error) {
	tiles := o.tiles()
	o.log.Infow("orthorectifying",
		"width", o.width, "height", o.height,
		"bands", o.res.BandCount(), "tiles", len(tiles),
		"workers", o.opts.Workers)

	results := make(chan tileResult, o.opts.Workers)
	writeDone := make(chan error, 1)
	go func() {
		var err error
		done := 0
		for res := range results {
			if err != nil {
				continue
			}
			if werr := w.WriteTile(res.rect, res.bands); werr != nil {
				err = werr
				continue
			}
			done++
			o.log.Debugw("tile written", "tile", done, "of", len(tiles),
				"rect", res.rect, "valid", res.stats.Valid)
		}
		writeDone <- err
	}()

	var total Stats
	statsCh := make(chan Stats, len(tiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for _, rect := range tiles {
		rect := rect
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bands, st := o.processTile(rect)
			select {
			case results <- tileResult{rect: rect, bands: bands, stats: st}:
			case <-gctx.Done():
				return gctx.Err()
			}
			statsCh <- st
			return nil
		})
	}
	err := g.Wait()
	close(results)
	werr := <-writeDone
	close(statsCh)
	for st := range statsCh {
		total.Tiles++
		total.Pixels += st.Pixels
		total.Valid += st.Valid
		total.NotConverged += st.NotConverged
	}

	if err != nil {
		return total, err
	}
	if werr != nil {
		return total, werr
	}
	o.log.Infow("orthorectification complete",
		"pixels", total.Pixels, "valid", total.Valid,
		"not_converged", total.NotConverged)
	return total, nil
}

// tiles enumerates the output grid row-major in tile-sized rectangles,
// with partial tiles at the right and bottom edges
func (o *Ortho) tiles() []image.Rectangle {
	var out []image.Rectangle
	for y := 0; y < o.height; y += o.opts.TileHeight {
		y1 := y + o.opts.TileHeight
		if y1 > o.height {
			y1 = o.height
		}
		for x := 0; x < o.width; x += o.opts.TileWidth {
			x1 := x + o.opts.TileWidth
			if x1 > o.width {
				x1 = o.width
			}
			out = append(out, image.Rect(x, y, x1, y1))
		}
	}
	return out
}

// processTile resolves geometry once per pixel and then resamples every
// band from the shared source positions, so per-band and all-band passes
// produce identical values
func (o *Ortho) processTile(rect image.Rectangle) ([][]float64, Stats) {
	tw := rect.Dx()
	th := rect.Dy()
	n := tw * th

	srcCols := make([]float64, n)
	srcRows := make([]float64, n)
	valid := make([]bool, n)

	st := Stats{Pixels: n}
	for ty := 0; ty < th; ty++ {
		for tx := 0; tx < tw; tx++ {
			i := ty*tw + tx
			x, y := o.gt.CellCenter(rect.Min.X+tx, rect.Min.Y+ty)
			res := o.its.Intersect(x, y)
			if !res.OK {
				if res.Err != nil {
					st.NotConverged++
				}
				continue
			}
			col, row, err := o.cam.Project(r3.Vector{X: x, Y: y, Z: res.Z})
			if err != nil {
				continue
			}
			srcCols[i] = col
			srcRows[i] = row
			valid[i] = true
		}
	}

	nb := o.res.BandCount()
	bands := make([][]float64, nb)
	for b := range bands {
		bands[b] = make([]float64, n)
		for i := range bands[b] {
			bands[b][i] = o.opts.Nodata
		}
	}

	if o.opts.PerBand {
		for b := 0; b < nb; b++ {
			for i := 0; i < n; i++ {
				if valid[i] {
					bands[b][i] = o.res.SampleBand(b, srcCols[i], srcRows[i])
				}
			}
		}
	} else {
		for i := 0; i < n; i++ {
			if !valid[i] {
				continue
			}
			for b := 0; b < nb; b++ {
				bands[b][i] = o.res.SampleBand(b, srcCols[i], srcRows[i])
			}
		}
	}

	for i := 0; i < n; i++ {
		if valid[i] {
			st.Valid++
		}
	}
	return bands, st
}
