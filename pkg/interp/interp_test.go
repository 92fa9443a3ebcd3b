package interp

import (
	"errors"
	"math"
	"testing"

	"github.com/menta2k/orthorectify/pkg/types"
)

func constantGrid(w, h int, v float64) Grid {
	data := make([]float64, w*h)
	for i := range data {
		data[i] = v
	}
	return Grid{Data: data, Width: w, Height: h}
}

func TestParseDEM(t *testing.T) {
	valid := []string{"average", "bilinear", "cubic", "cubic_spline", "gauss", "lanczos", "nearest"}
	for _, s := range valid {
		if _, err := ParseDEM(s); err != nil {
			t.Errorf("ParseDEM(%q) failed: %v", s, err)
		}
	}

	_, err := ParseDEM("bicubic")
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for unknown kernel, got %v", err)
	}
}

func TestParseSource(t *testing.T) {
	// cubic_spline and gauss are DEM-only kernels
	for _, s := range []string{"cubic_spline", "gauss"} {
		if _, err := ParseSource(s); err == nil {
			t.Errorf("ParseSource(%q) should fail", s)
		}
	}
	for _, s := range []string{"nearest", "average", "bilinear", "cubic", "lanczos"} {
		if _, err := ParseSource(s); err != nil {
			t.Errorf("ParseSource(%q) failed: %v", s, err)
		}
	}
}

func TestSampleNearest(t *testing.T) {
	g := Grid{
		Data:   []float64{1, 2, 3, 4},
		Width:  2,
		Height: 2,
	}

	tests := []struct {
		x, y float64
		want float64
	}{
		{0, 0, 1},
		{1, 0, 2},
		{0.4, 0.4, 1},
		{0.6, 0.6, 4},
		{1, 1, 4},
	}
	for _, tt := range tests {
		got, ok := g.Sample(tt.x, tt.y, Nearest)
		if !ok {
			t.Fatalf("Sample(%v, %v) unexpectedly invalid", tt.x, tt.y)
		}
		if got != tt.want {
			t.Errorf("Sample(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestSampleBilinearMidpoint(t *testing.T) {
	g := Grid{
		Data:   []float64{0, 10, 20, 30},
		Width:  2,
		Height: 2,
	}

	got, ok := g.Sample(0.5, 0.5, Bilinear)
	if !ok {
		t.Fatal("midpoint sample invalid")
	}
	if math.Abs(got-15) > 1e-9 {
		t.Errorf("bilinear midpoint = %v, want 15", got)
	}
}

func TestSampleConstantField(t *testing.T) {
	// every kernel must reproduce a constant field exactly (weights renormalize)
	g := constantGrid(8, 8, 42.5)
	for _, kernel := range []Interp{Nearest, Average, Bilinear, Cubic, CubicSpline, Gauss, Lanczos} {
		got, ok := g.Sample(3.3, 4.7, kernel)
		if !ok {
			t.Fatalf("%s: sample invalid", kernel)
		}
		if math.Abs(got-42.5) > 1e-9 {
			t.Errorf("%s: constant field = %v, want 42.5", kernel, got)
		}
	}
}

func TestSampleOutOfBounds(t *testing.T) {
	g := constantGrid(4, 4, 1)
	outside := [][2]float64{
		{-1, 0}, {0, -1}, {4, 0}, {0, 4}, {3.6, 0}, {0, 3.6},
	}
	for _, pt := range outside {
		if _, ok := g.Sample(pt[0], pt[1], Bilinear); ok {
			t.Errorf("Sample(%v, %v) should be out of bounds", pt[0], pt[1])
		}
	}
}

func TestSampleNodataPropagation(t *testing.T) {
	nodata := -9999.0
	g := constantGrid(4, 4, nodata)
	g.Nodata = &nodata

	// all cells nodata: no value for any kernel
	for _, kernel := range []Interp{Nearest, Average, Bilinear, Lanczos} {
		if _, ok := g.Sample(1.5, 1.5, kernel); ok {
			t.Errorf("%s: all-nodata window should yield no value", kernel)
		}
	}

	// partial nodata: remaining cells renormalize
	g.Data[1*4+1] = 7
	got, ok := g.Sample(1.2, 1.2, Bilinear)
	if !ok {
		t.Fatal("partial nodata window should still yield a value")
	}
	if math.Abs(got-7) > 1e-9 {
		t.Errorf("renormalized sample = %v, want 7", got)
	}
}

func TestSupport(t *testing.T) {
	if Lanczos.Support() <= Bilinear.Support() {
		t.Error("lanczos support should exceed bilinear support")
	}
	if Nearest.Support() != 0.5 {
		t.Errorf("nearest support = %v, want 0.5", Nearest.Support())
	}
}

func BenchmarkSampleBilinear(b *testing.B) {
	g := constantGrid(512, 512, 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Sample(255.3, 255.7, Bilinear)
	}
}

func BenchmarkSampleLanczos(b *testing.B) {
	g := constantGrid(512, 512, 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Sample(255.3, 255.7, Lanczos)
	}
}
