// Package config loads and validates the YAML run configuration. All
// invariants that can be checked without opening a raster are enforced
// here, so a bad configuration fails before any I/O starts.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/orthorectify/pkg/interp"
	"github.com/menta2k/orthorectify/pkg/raster"
	"github.com/menta2k/orthorectify/pkg/types"
)

// Config holds the run configuration
type Config struct {
	Camera CameraConfig `yaml:"camera"`
	Ortho  OrthoConfig  `yaml:"ortho"`
}

// CameraConfig holds the camera interior orientation. Exterior orientation
// comes from the position/orientation file, not the config.
type CameraConfig struct {
	// FocalLen is the focal length in mm
	FocalLen float64 `yaml:"focal_len"`
	// SensorSize is the physical sensor [width, height] in mm
	SensorSize []float64 `yaml:"sensor_size"`
}

// OrthoConfig holds the resampling and output parameters
type OrthoConfig struct {
	DEMInterp   string    `yaml:"dem_interp"`
	DEMBand     int       `yaml:"dem_band"`
	Interp      string    `yaml:"interp"`
	PerBand     bool      `yaml:"per_band"`
	BuildOvw    bool      `yaml:"build_ovw"`
	Overwrite   bool      `yaml:"overwrite"`
	WriteMask   bool      `yaml:"write_mask"`
	Driver      *string   `yaml:"driver"`
	Dtype       *string   `yaml:"dtype"`
	Resolution  []float64 `yaml:"resolution"`
	TileSize    []int     `yaml:"tile_size"`
	Compress    string    `yaml:"compress"`
	Interleave  string    `yaml:"interleave"`
	Photometric *string   `yaml:"photometric"`
	Nodata      float64   `yaml:"nodata"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			FocalLen:   100,
			SensorSize: []float64{36, 24},
		},
		Ortho: OrthoConfig{
			DEMInterp:  string(interp.CubicSpline),
			DEMBand:    1,
			Interp:     string(interp.Bilinear),
			PerBand:    false,
			BuildOvw:   true,
			Overwrite:  false,
			WriteMask:  true,
			Resolution: []float64{0.5, 0.5},
			TileSize:   []int{256, 256},
			Compress:   string(raster.CompressDeflate),
			Interleave: string(raster.InterleaveBand),
			Nodata:     -9999,
		},
	}
}

// LoadFromFile loads configuration from a YAML file, rejecting keys the
// schema does not define
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, types.NewIOError("read", filename, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var config Config
	if err := dec.Decode(&config); err != nil {
		return nil, types.NewConfigError(filename, "parse: %v", err)
	}
	return &config, nil
}

// SaveToFile writes the configuration as YAML, creating the parent
// directory if needed
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.NewIOError("mkdir", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return types.NewIOError("write", filename, err)
	}
	return nil
}

// Validate checks every invariant that does not require the source or DEM
// raster. Band range and null driver/dtype resolution happen later against
// the actual inputs.
func (c *Config) Validate() error {
	if c.Camera.FocalLen <= 0 || math.IsNaN(c.Camera.FocalLen) {
		return types.NewConfigError("camera.focal_len", "must be > 0, got %g", c.Camera.FocalLen)
	}
	if len(c.Camera.SensorSize) != 2 {
		return types.NewConfigError("camera.sensor_size", "want [width, height], got %d values", len(c.Camera.SensorSize))
	}
	for _, v := range c.Camera.SensorSize {
		if v <= 0 || math.IsNaN(v) {
			return types.NewConfigError("camera.sensor_size", "components must be > 0, got %v", c.Camera.SensorSize)
		}
	}

	o := &c.Ortho
	if _, err := interp.ParseDEM(o.DEMInterp); err != nil {
		return err
	}
	if _, err := interp.ParseSource(o.Interp); err != nil {
		return err
	}
	if o.DEMBand < 1 {
		return types.NewConfigError("ortho.dem_band", "must be >= 1, got %d", o.DEMBand)
	}

	if len(o.Resolution) != 2 {
		return types.NewConfigError("ortho.resolution", "want [x, y], got %d values", len(o.Resolution))
	}
	for _, v := range o.Resolution {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return types.NewConfigError("ortho.resolution", "components must be > 0, got %v", o.Resolution)
		}
	}
	if len(o.TileSize) != 2 {
		return types.NewConfigError("ortho.tile_size", "want [width, height], got %d values", len(o.TileSize))
	}
	for _, v := range o.TileSize {
		if v <= 0 {
			return types.NewConfigError("ortho.tile_size", "components must be > 0, got %v", o.TileSize)
		}
	}

	compress, err := raster.ParseCompression(o.Compress)
	if err != nil {
		return err
	}
	if _, err := raster.ParseInterleave(o.Interleave); err != nil {
		return err
	}

	if o.Dtype != nil {
		dt, err := raster.ParseDType(*o.Dtype)
		if err != nil {
			return err
		}
		if !dt.Representable(o.Nodata) {
			return types.NewConfigError("ortho.nodata", "%g is not representable in %s", o.Nodata, dt)
		}
	}
	if o.Driver != nil {
		drv, err := raster.DriverByName(*o.Driver)
		if err != nil {
			return err
		}
		if !raster.SupportsCompression(drv, compress) {
			return types.NewConfigError("ortho.compress", "%s driver does not support %s", drv.Name(), compress)
		}
	}
	if o.Photometric != nil {
		switch *o.Photometric {
		case "rgb", "minisblack":
		default:
			return types.NewConfigError("ortho.photometric", "want rgb or minisblack, got %q", *o.Photometric)
		}
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "orthorectify", "config.yaml")
}
