package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/menta2k/orthorectify"
	"github.com/menta2k/orthorectify/internal/config"
	"github.com/menta2k/orthorectify/internal/utils"
	"github.com/menta2k/orthorectify/pkg/exterior"
)

func main() {
	var demPath, posOriPath, outDir, confPath, writeConfPath string
	var verbosity, workers int

	flag.StringVar(&demPath, "dem", "", "DEM raster covering the imaged area")
	flag.StringVar(&posOriPath, "posori", "", "camera position/orientation file (name easting northing altitude omega phi kappa)")
	flag.StringVar(&outDir, "out", "", "output directory (default: next to each source image)")
	flag.StringVar(&confPath, "conf", "", "YAML configuration file (default: built-in defaults)")
	flag.StringVar(&writeConfPath, "writeconf", "", "write the default configuration to this path and exit")
	flag.IntVar(&verbosity, "v", 2, "verbosity: 1=debug 2=info 3=warn 4=error")
	flag.IntVar(&workers, "workers", 0, "tile worker count (default: all CPUs)")
	flag.Parse()

	if writeConfPath != "" {
		if err := config.Default().SaveToFile(writeConfPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("wrote default configuration to %s\n", writeConfPath)
		return
	}

	if demPath == "" || posOriPath == "" || flag.NArg() == 0 {
		log.Fatalf("usage: %s -dem dem.tif -posori cameras.txt [-out outdir] [-conf config.yaml] [-v 1..4] source...",
			filepath.Base(os.Args[0]))
	}
	if !utils.FileExists(demPath) {
		log.Fatalf("DEM not found: %s", demPath)
	}
	if !utils.FileExists(posOriPath) {
		log.Fatalf("Camera position file not found: %s", posOriPath)
	}

	logger, err := buildLogger(verbosity)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Default()
	if confPath != "" {
		cfg, err = config.LoadFromFile(confPath)
		if err != nil {
			logger.Sugar().Fatalf("Failed to load config: %v", err)
		}
	}

	o, err := orthorectify.New(cfg, logger)
	if err != nil {
		logger.Sugar().Fatalf("Invalid configuration: %v", err)
	}
	if workers > 0 {
		o.Workers = workers
	}

	cams, err := exterior.Parse(posOriPath)
	if err != nil {
		logger.Sugar().Fatalf("Failed to read camera positions: %v", err)
	}
	if err := o.LoadDEM(demPath); err != nil {
		logger.Sugar().Fatalf("Failed to load DEM: %v", err)
	}

	srcPaths, err := utils.ExpandPaths(flag.Args())
	if err != nil {
		logger.Sugar().Fatalf("Bad source argument: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err = o.ProcessFiles(ctx, srcPaths, cams, outDir)
	logger.Sugar().Infow("batch finished",
		"images", len(srcPaths), "elapsed", time.Since(start).Round(time.Millisecond))
	if err != nil {
		logger.Sugar().Fatalf("Batch failed: %v", err)
	}
}

// buildLogger maps the -v flag to a console zap logger
func buildLogger(verbosity int) (*zap.Logger, error) {
	var level zapcore.Level
	switch verbosity {
	case 1:
		level = zapcore.DebugLevel
	case 2:
		level = zapcore.InfoLevel
	case 3:
		level = zapcore.WarnLevel
	case 4:
		level = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("verbosity %d outside 1..4", verbosity)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
