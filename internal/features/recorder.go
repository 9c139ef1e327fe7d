// Package features records scan findings as feature files: tab-separated
// (address, feature, annotation) lines, one file per recorder name. The file
// is written to a temp path and renamed into place on Close so a crashed scan
// never leaves a half-written feature file behind.
package features

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/scanforge/scanforge/internal/imageio"
)

var escaper = strings.NewReplacer("\t", "\\t", "\n", "\\n", "\r", "\\r")

// Recorder appends feature lines to a named feature file. Safe for
// concurrent use; lines from concurrent writers are never interleaved.
type Recorder struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	tmp  afero.File
	w    *bufio.Writer
}

// NewRecorder creates <dir>/<name>.txt (via a temp file) and writes the
// header identifying the recorder and the image it was produced from.
func NewRecorder(fs afero.Fs, dir, name, imagePath string) (*Recorder, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("features: create output dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, name+".txt")
	tmp, err := fs.Create(path + ".tmp")
	if err != nil {
		return nil, fmt.Errorf("features: create %s: %w", path, err)
	}

	r := &Recorder{
		fs:   fs,
		path: path,
		tmp:  tmp,
		w:    bufio.NewWriter(tmp),
	}

	fmt.Fprintf(r.w, "# Feature-Recorder: %s\n", name)
	fmt.Fprintf(r.w, "# Image-File: %s\n", imagePath)
	fmt.Fprintf(r.w, "# Created: %s\n", time.Now().UTC().Format(time.RFC3339))

	return r, nil
}

// Record appends one (address, feature, annotation) line.
func (r *Recorder) Record(addr imageio.Address, feature, annotation string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return fmt.Errorf("features: recorder %s is closed", r.path)
	}

	_, err := fmt.Fprintf(r.w, "%s\t%s\t%s\n",
		addr.String(), escaper.Replace(feature), escaper.Replace(annotation))
	if err != nil {
		return fmt.Errorf("features: write %s: %w", r.path, err)
	}
	return nil
}

// Close flushes and atomically finalizes the feature file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return nil
	}

	if err := r.w.Flush(); err != nil {
		_ = r.tmp.Close()
		return fmt.Errorf("features: flush %s: %w", r.path, err)
	}
	r.w = nil

	if err := r.tmp.Close(); err != nil {
		return fmt.Errorf("features: close %s: %w", r.path, err)
	}

	if err := r.fs.Rename(r.path+".tmp", r.path); err != nil {
		return fmt.Errorf("features: finalize %s: %w", r.path, err)
	}
	return nil
}
