// Package exterior parses camera position and orientation files.
//
// The format is one space-separated record per source image:
//
//	name easting northing altitude omega phi kappa
//
// with angles in degrees. Records are keyed by the image file stem.
package exterior

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/menta2k/orthorectify/pkg/types"
)

// Orientation is the exterior orientation of one exposure
type Orientation struct {
	Name     string
	Position r3.Vector // easting, northing, altitude in the world CRS
	Omega    float64   // radians
	Phi      float64   // radians
	Kappa    float64   // radians
}

// File is a parsed position/orientation file
type File struct {
	records map[string]Orientation
}

// Parse reads a position/orientation file
func Parse(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewIOError("open", path, err)
	}
	defer f.Close()

	records := make(map[string]Orientation)
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 7 {
			return nil, types.NewConfigError("pos_ori",
				"%s line %d: expected 7 fields (name easting northing altitude omega phi kappa), got %d",
				path, lineNo, len(fields))
		}

		vals := make([]float64, 6)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, types.NewConfigError("pos_ori", "%s line %d: %v", path, lineNo, err)
			}
			vals[i] = v
		}

		name := fields[0]
		records[name] = Orientation{
			Name:     name,
			Position: r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]},
			Omega:    vals[3] * math.Pi / 180,
			Phi:      vals[4] * math.Pi / 180,
			Kappa:    vals[5] * math.Pi / 180,
		}
	}
	if err := sc.Err(); err != nil {
		return nil, types.NewIOError("read", path, err)
	}
	if len(records) == 0 {
		return nil, types.NewConfigError("pos_ori", "%s holds no records", path)
	}
	return &File{records: records}, nil
}

// Lookup returns the orientation for an image file stem
func (f *File) Lookup(stem string) (Orientation, error) {
	o, ok := f.records[stem]
	if !ok {
		return Orientation{}, fmt.Errorf("no position/orientation record for %q", stem)
	}
	return o, nil
}

// Len returns the number of records
func (f *File) Len() int { return len(f.records) }
