package raster

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/orthorectify/pkg/types"
)

// worldFilePath derives the sidecar world file name: first and last letter
// of the extension plus "w" (.tif -> .tfw, .png -> .pgw), falling back to
// the generic .wld
func worldFilePath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if len(ext) == 4 {
		return base + "." + string(ext[1]) + string(ext[3]) + "w"
	}
	return base + ".wld"
}

// writeWorldFile writes the six-line ESRI world file carrying the transform.
// World files reference the center of the top-left pixel.
func writeWorldFile(path string, gt GeoTransform) error {
	wfPath := worldFilePath(path)
	f, err := os.Create(wfPath)
	if err != nil {
		return types.NewIOError("create", wfPath, err)
	}
	defer f.Close()

	cx, cy := gt.CellCenter(0, 0)
	for _, v := range []float64{gt[1], gt[4], gt[2], gt[5], cx, cy} {
		if _, err := fmt.Fprintf(f, "%.10f\n", v); err != nil {
			return types.NewIOError("write", wfPath, err)
		}
	}
	return nil
}

// readWorldFile loads the sidecar transform if one exists. The zero
// transform and false are returned when the sidecar is absent.
func readWorldFile(path string) (GeoTransform, bool, error) {
	wfPath := worldFilePath(path)
	f, err := os.Open(wfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return GeoTransform{}, false, nil
		}
		return GeoTransform{}, false, types.NewIOError("open", wfPath, err)
	}
	defer f.Close()

	var vals []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return GeoTransform{}, false, types.NewIOError("parse", wfPath, err)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return GeoTransform{}, false, types.NewIOError("read", wfPath, err)
	}
	if len(vals) < 6 {
		return GeoTransform{}, false, types.NewIOError("parse", wfPath, fmt.Errorf("expected 6 values, got %d", len(vals)))
	}

	// world file order: resX, rotY, rotX, resY, centerX, centerY
	gt := GeoTransform{0, vals[0], vals[2], 0, vals[1], vals[3]}
	gt[0] = vals[4] - 0.5*gt[1] - 0.5*gt[2]
	gt[3] = vals[5] - 0.5*gt[4] - 0.5*gt[5]
	return gt, true, nil
}
