package imageio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// imageFileExtensions are the extensions that mark a directory child as a
// disk image. A directory containing these is almost certainly a misuse of
// directory mode, so Open refuses it loudly instead of silently guessing.
var imageFileExtensions = []string{".e01", ".000", ".001"}

// Open inspects path and constructs the matching backend: a directory image
// when path is a directory (and cfg.Recurse permits it), an EWF image for a
// container extension, and a segmented raw image otherwise. The returned
// source has already been opened; any open failure is fatal for the image.
func Open(fs afero.Fs, path string, cfg Config) (ImageSource, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	var src ImageSource
	switch {
	case info.IsDir():
		if !cfg.Recurse {
			return nil, fmt.Errorf("%w: %s", ErrIsADirectory, path)
		}
		if err := refuseImageFiles(fs, path); err != nil {
			return nil, err
		}
		src = newDirImage(fs, path, cfg)

	case isEWFName(path):
		if !decoderAvailable() {
			return nil, fmt.Errorf("%w: %s: compiled without EWF support", ErrUnsupportedFormat, path)
		}
		src = newEWFImage(fs, path, cfg)

	default:
		src = newRawImage(fs, path, cfg)
	}

	if err := src.Open(); err != nil {
		return nil, err
	}
	return src, nil
}

func isEWFName(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".e01") ||
		strings.Contains(path, ".E01")
}

// refuseImageFiles scans the immediate children of dir for anything that
// looks like a container or split-raw image file.
func refuseImageFiles(fs afero.Fs, dir string) error {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return fmt.Errorf("scan directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, imgExt := range imageFileExtensions {
			if ext == imgExt {
				return fmt.Errorf("%w: %s in %s", ErrFoundImageFile, entry.Name(), dir)
			}
		}
	}
	return nil
}
