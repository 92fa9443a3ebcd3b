package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsRasterFile checks if a file has a raster image extension
func IsRasterFile(filename string) bool {
	ext := GetFileExtension(filename)
	rasterExts := []string{"tif", "tiff", "png", "jpg", "jpeg", "webp", "raw"}

	for _, rExt := range rasterExts {
		if ext == rExt {
			return true
		}
	}
	return false
}

// Stem returns the file name without directory or extension. It keys
// images to their exterior orientation records.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OrthoOutputName builds the output path for a source image: the source
// stem with an _ORTHO suffix, placed in outputDir (the source directory
// when outputDir is empty). ext overrides the source extension when set.
func OrthoOutputName(srcPath, outputDir, ext string) string {
	if ext == "" {
		ext = filepath.Ext(srcPath)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(srcPath)
	}
	return filepath.Join(outputDir, fmt.Sprintf("%s_ORTHO%s", Stem(srcPath), ext))
}

// ExpandPaths resolves each argument as a glob pattern, keeping literal
// paths that match no pattern so missing files surface as read errors
// instead of being skipped silently. Directory arguments expand to the
// raster files they contain. The result is sorted and de-duplicated.
func ExpandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}
		for _, m := range matches {
			if DirExists(m) {
				files, err := ListRasterFiles(m)
				if err != nil {
					return nil, fmt.Errorf("listing %q: %w", m, err)
				}
				for _, f := range files {
					add(f)
				}
				continue
			}
			add(m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListRasterFiles recursively lists all raster files in a directory
func ListRasterFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && IsRasterFile(path) {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
