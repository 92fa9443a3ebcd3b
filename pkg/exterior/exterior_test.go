package exterior

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cams.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	path := writeTemp(t, `# name easting northing altitude omega phi kappa
IMG_0001 50001.5 -3999820.0 500.25 0.0 0.0 90.0
IMG_0002 50101.5 -3999820.0 501.00 1.5 -0.5 88.0
`)
	f, err := Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", f.Len())
	}

	o, err := f.Lookup("IMG_0001")
	if err != nil {
		t.Fatal(err)
	}
	if o.Position.X != 50001.5 || o.Position.Y != -3999820.0 || o.Position.Z != 500.25 {
		t.Errorf("position = %v", o.Position)
	}
	if math.Abs(o.Kappa-math.Pi/2) > 1e-12 {
		t.Errorf("kappa = %v, want pi/2", o.Kappa)
	}
	if o.Omega != 0 {
		t.Errorf("omega = %v, want 0", o.Omega)
	}
}

func TestLookupMissing(t *testing.T) {
	f, err := Parse(writeTemp(t, "IMG_0001 0 0 100 0 0 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Lookup("IMG_9999"); err == nil {
		t.Error("missing stem should fail")
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"IMG_0001 0 0 100 0 0\n",        // too few fields
		"IMG_0001 0 zero 100 0 0 0\n",   // non-numeric
		"",                              // empty file
	}
	for _, content := range cases {
		if _, err := Parse(writeTemp(t, content)); err == nil {
			t.Errorf("content %q should fail", content)
		}
	}
}

func TestParseMissingFile(t *testing.T) {
	if _, err := Parse("/nonexistent/cams.txt"); err == nil {
		t.Error("missing file should fail")
	}
}
