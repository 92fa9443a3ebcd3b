package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/orthorectify/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Ortho.Nodata = 255
	cfg.Ortho.PerBand = true
	driver := "PNG"
	cfg.Ortho.Driver = &driver
	cfg.Ortho.Compress = "none"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Ortho.Nodata != 255 || !got.Ortho.PerBand {
		t.Errorf("round trip lost values: %+v", got.Ortho)
	}
	if got.Ortho.Driver == nil || *got.Ortho.Driver != "PNG" {
		t.Errorf("driver = %v, want PNG", got.Ortho.Driver)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("round-tripped config invalid: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "camera:\n  focal_len: 100\n  sensor_size: [36, 24]\n  zoom: 2\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFromFile(path)
	var cerr *types.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	var ioerr *types.IOError
	if !errors.As(err, &ioerr) {
		t.Fatalf("err = %v, want IOError", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero focal length", func(c *Config) { c.Camera.FocalLen = 0 }},
		{"sensor size wrong arity", func(c *Config) { c.Camera.SensorSize = []float64{36} }},
		{"negative sensor dimension", func(c *Config) { c.Camera.SensorSize = []float64{36, -24} }},
		{"unknown dem kernel", func(c *Config) { c.Ortho.DEMInterp = "sinc" }},
		{"gauss not valid for source", func(c *Config) { c.Ortho.Interp = "gauss" }},
		{"dem band zero", func(c *Config) { c.Ortho.DEMBand = 0 }},
		{"zero resolution", func(c *Config) { c.Ortho.Resolution = []float64{0.5, 0} }},
		{"resolution wrong arity", func(c *Config) { c.Ortho.Resolution = []float64{0.5} }},
		{"negative tile size", func(c *Config) { c.Ortho.TileSize = []int{256, -1} }},
		{"unknown compression", func(c *Config) { c.Ortho.Compress = "brotli" }},
		{"unknown interleave", func(c *Config) { c.Ortho.Interleave = "line" }},
		{"unknown dtype", func(c *Config) {
			s := "int64"
			c.Ortho.Dtype = &s
		}},
		{"nodata outside dtype range", func(c *Config) {
			s := "uint8"
			c.Ortho.Dtype = &s
			c.Ortho.Nodata = -9999
		}},
		{"unknown driver", func(c *Config) {
			s := "HFA"
			c.Ortho.Driver = &s
		}},
		{"driver rejects compression", func(c *Config) {
			s := "ENVI"
			c.Ortho.Driver = &s
			c.Ortho.Compress = "deflate"
		}},
		{"unknown photometric", func(c *Config) {
			s := "ycbcr"
			c.Ortho.Photometric = &s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			var cerr *types.ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
		})
	}
}

func TestValidateAcceptsJPEGPair(t *testing.T) {
	cfg := Default()
	driver := "JPEG"
	cfg.Ortho.Driver = &driver
	cfg.Ortho.Compress = "jpeg"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("JPEG driver with jpeg compression rejected: %v", err)
	}
}
