// Package orthorectify removes perspective and terrain-relief distortion
// from aerial imagery. Each output pixel is traced through a frame camera
// model onto a digital elevation model and filled by resampling the source
// image at the intersection's image position.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"go.uber.org/zap"
//
//		"github.com/menta2k/orthorectify"
//		"github.com/menta2k/orthorectify/internal/config"
//		"github.com/menta2k/orthorectify/pkg/exterior"
//	)
//
//	func main() {
//		logger, _ := zap.NewProduction()
//		defer logger.Sync()
//
//		o, err := orthorectify.New(config.Default(), logger)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := o.LoadDEM("dem.tif"); err != nil {
//			log.Fatal(err)
//		}
//
//		cams, err := exterior.Parse("camera_pos_ori.txt")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := o.ProcessFiles(context.Background(), []string{"IMG_0001.tif"}, cams, "./ortho"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of five main components:
//
// 1. Camera (pkg/camera): frame camera model, world <-> pixel mapping
// 2. DEM (pkg/dem): terrain elevation sampling with pluggable kernels
// 3. Ortho (pkg/ortho): ray-terrain intersection and tiled resampling
// 4. Raster (pkg/raster): format drivers, tiled writing, overviews
// 5. Exterior (pkg/exterior): camera position/orientation files
package orthorectify

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/orthorectify/internal/config"
	"github.com/menta2k/orthorectify/internal/utils"
	"github.com/menta2k/orthorectify/pkg/camera"
	"github.com/menta2k/orthorectify/pkg/dem"
	"github.com/menta2k/orthorectify/pkg/exterior"
	"github.com/menta2k/orthorectify/pkg/interp"
	"github.com/menta2k/orthorectify/pkg/ortho"
	"github.com/menta2k/orthorectify/pkg/raster"
	"github.com/menta2k/orthorectify/pkg/types"
)

// Version of the orthorectify library
const Version = "1.0.0"

// Orthorectifier provides a high-level interface for orthorectifying
// source images against a shared DEM
type Orthorectifier struct {
	cfg *config.Config
	log *zap.SugaredLogger
	dem *dem.Sampler

	// Workers bounds the per-image tile worker pool
	Workers int
}

// New creates an Orthorectifier after validating the configuration. A nil
// logger disables logging.
func New(cfg *config.Config, logger *zap.Logger) (*Orthorectifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orthorectifier{
		cfg:     cfg,
		log:     logger.Sugar(),
		Workers: runtime.GOMAXPROCS(0),
	}, nil
}

// LoadDEM reads the elevation raster and prepares the sampler shared by
// every subsequent ProcessFile call
func (o *Orthorectifier) LoadDEM(path string) error {
	r, err := raster.Read(path)
	if err != nil {
		return fmt.Errorf("loading DEM: %w", err)
	}
	kernel, err := interp.ParseDEM(o.cfg.Ortho.DEMInterp)
	if err != nil {
		return err
	}
	s, err := dem.NewSampler(r, o.cfg.Ortho.DEMBand, kernel)
	if err != nil {
		return fmt.Errorf("preparing DEM sampler: %w", err)
	}
	o.dem = s
	o.log.Infow("DEM loaded", "path", path, "raster", r.String(),
		"min", s.Min(), "max", s.Max())
	return nil
}

// OutputPath builds the destination path for a source image: the source
// stem with an _ORTHO suffix in outputDir, carrying the extension of the
// configured driver (the source's own format when the driver is null)
func (o *Orthorectifier) OutputPath(srcPath, outputDir string) string {
	ext := ""
	if o.cfg.Ortho.Driver != nil {
		if drv, err := raster.DriverByName(*o.cfg.Ortho.Driver); err == nil {
			ext = drv.Ext()
		}
	}
	return utils.OrthoOutputName(srcPath, outputDir, ext)
}

// ProcessFile orthorectifies a single source image using the exterior
// orientation ori and writes the result to outPath. The DEM must have been
// loaded first.
func (o *Orthorectifier) ProcessFile(ctx context.Context, srcPath string, ori exterior.Orientation, outPath string) error {
	if o.dem == nil {
		return types.NewConfigError("dem", "no DEM loaded")
	}
	start := time.Now()

	src, err := raster.Read(srcPath)
	if err != nil {
		return fmt.Errorf("loading source: %w", err)
	}
	o.log.Infow("source loaded", "path", srcPath, "raster", src.String())

	drv, dtype, err := o.resolveOutput(src, outPath)
	if err != nil {
		return err
	}

	cam, err := camera.New(camera.Config{
		FocalLen:     o.cfg.Camera.FocalLen,
		SensorWidth:  o.cfg.Camera.SensorSize[0],
		SensorHeight: o.cfg.Camera.SensorSize[1],
		ImageWidth:   src.Width,
		ImageHeight:  src.Height,
		Position:     ori.Position,
		Omega:        ori.Omega,
		Phi:          ori.Phi,
		Kappa:        ori.Kappa,
	})
	if err != nil {
		return fmt.Errorf("building camera for %s: %w", ori.Name, err)
	}

	kernel, err := interp.ParseSource(o.cfg.Ortho.Interp)
	if err != nil {
		return err
	}
	run, err := ortho.New(cam, o.dem, src, ortho.Options{
		ResX:       o.cfg.Ortho.Resolution[0],
		ResY:       o.cfg.Ortho.Resolution[1],
		TileWidth:  o.cfg.Ortho.TileSize[0],
		TileHeight: o.cfg.Ortho.TileSize[1],
		Interp:     kernel,
		PerBand:    o.cfg.Ortho.PerBand,
		Nodata:     o.cfg.Ortho.Nodata,
		Workers:    o.Workers,
	}, o.log)
	if err != nil {
		return err
	}

	gt, w, h := run.Grid()
	out, err := raster.New(w, h, src.BandCount(), dtype)
	if err != nil {
		return err
	}
	out.Transform = gt
	nd := o.cfg.Ortho.Nodata
	out.Nodata = &nd

	photometric := ""
	if o.cfg.Ortho.Photometric != nil {
		photometric = *o.cfg.Ortho.Photometric
	}
	writeOpts := &raster.WriteOptions{
		Compress:    raster.Compression(o.cfg.Ortho.Compress),
		Interleave:  raster.Interleave(o.cfg.Ortho.Interleave),
		Photometric: photometric,
		WriteMask:   o.cfg.Ortho.WriteMask,
		Overwrite:   o.cfg.Ortho.Overwrite,
	}
	writer, err := drv.Create(outPath, out, writeOpts)
	if err != nil {
		return err
	}

	stats, err := run.Run(ctx, writer)
	if err != nil {
		// discard, never finalize: a failed run must not leave output
		writer.Abort()
		return fmt.Errorf("orthorectifying %s: %w", srcPath, err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	if o.cfg.Ortho.BuildOvw {
		base, err := drv.Read(outPath)
		if err != nil {
			return fmt.Errorf("reading output for overviews: %w", err)
		}
		ovwOpts := *writeOpts
		ovwOpts.WriteMask = false
		ovwOpts.Overwrite = true
		levels, err := raster.BuildOverviews(drv, outPath, base, &ovwOpts)
		if err != nil {
			return fmt.Errorf("building overviews: %w", err)
		}
		o.log.Debugw("overviews built", "levels", len(levels))
	}

	fileSize := ""
	if fi, err := os.Stat(outPath); err == nil {
		fileSize = utils.FormatFileSize(fi.Size())
	}
	o.log.Infow("image orthorectified", "source", srcPath, "output", outPath,
		"size", fmt.Sprintf("%dx%d", w, h), "fileSize", fileSize,
		"valid", stats.Valid, "pixels", stats.Pixels,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// ProcessFiles orthorectifies a batch of source images, continuing past
// per-image failures. Images without an orientation record are reported
// and skipped. Returns an error when any image failed.
func (o *Orthorectifier) ProcessFiles(ctx context.Context, srcPaths []string, cams *exterior.File, outputDir string) error {
	if outputDir != "" {
		if err := utils.EnsureDir(outputDir); err != nil {
			return types.NewIOError("mkdir", outputDir, err)
		}
	}

	failed := 0
	for _, srcPath := range srcPaths {
		if err := ctx.Err(); err != nil {
			return err
		}

		ori, err := cams.Lookup(utils.Stem(srcPath))
		if err != nil {
			o.log.Errorw("no orientation record", "source", srcPath, "error", err)
			failed++
			continue
		}
		outPath := o.OutputPath(srcPath, outputDir)
		if err := o.ProcessFile(ctx, srcPath, ori, outPath); err != nil {
			if ctx.Err() != nil {
				return err
			}
			o.log.Errorw("image failed", "source", srcPath, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(srcPaths))
	}
	return nil
}

// resolveOutput resolves the config's null driver and dtype against the
// source raster, once per image before any tile work starts
func (o *Orthorectifier) resolveOutput(src *raster.Raster, outPath string) (raster.Driver, raster.DType, error) {
	var drv raster.Driver
	if o.cfg.Ortho.Driver != nil {
		d, err := raster.DriverByName(*o.cfg.Ortho.Driver)
		if err != nil {
			return nil, "", err
		}
		drv = d
	} else {
		drv = raster.DriverForPath(outPath)
	}

	compress := raster.Compression(o.cfg.Ortho.Compress)
	if !raster.SupportsCompression(drv, compress) {
		return nil, "", types.NewConfigError("ortho.compress",
			"%s driver does not support %s", drv.Name(), compress)
	}

	dtype := src.DType
	if o.cfg.Ortho.Dtype != nil {
		dt, err := raster.ParseDType(*o.cfg.Ortho.Dtype)
		if err != nil {
			return nil, "", err
		}
		dtype = dt
	}
	if !dtype.Representable(o.cfg.Ortho.Nodata) {
		return nil, "", types.NewConfigError("ortho.nodata",
			"%g is not representable in %s", o.cfg.Ortho.Nodata, dtype)
	}

	photometric := ""
	if o.cfg.Ortho.Photometric != nil {
		photometric = *o.cfg.Ortho.Photometric
	}
	if err := drv.CanWrite(dtype, src.BandCount(), photometric); err != nil {
		return nil, "", err
	}
	return drv, dtype, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
