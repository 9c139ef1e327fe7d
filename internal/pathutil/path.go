// Package pathutil provides path validation utilities.
package pathutil

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// CheckDirectoryWritable verifies that the directory exists (creating it if
// needed) and accepts writes. Scans validate their output directory with
// this before opening the image, so a bad output path fails immediately
// instead of after hours of reading.
func CheckDirectoryWritable(fs afero.Fs, path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	info, err := fs.Stat(path)
	switch {
	case err != nil:
		if err := fs.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("directory %s does not exist and cannot be created: %w", path, err)
		}
	case !info.IsDir():
		return fmt.Errorf("path %s exists but is not a directory", path)
	}

	// Probe with an actual write; stat permissions lie on some mounts.
	probe := filepath.Join(path, ".scanforge-write-test")
	if err := afero.WriteFile(fs, probe, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}
	_ = fs.Remove(probe)

	return nil
}
