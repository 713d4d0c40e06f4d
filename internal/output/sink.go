// Package output persists processed frames. One file per processed
// frame, named from the sequence number so sorting the directory
// recovers capture order.
package output

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/maskpipe/maskpipe/internal/logger"
)

// Record is one processed frame headed for disk.
type Record struct {
	Seq   uint64
	Image image.Image
}

// Sink writes records into its output directory. The directory is owned
// by the processing side; nothing else writes into it.
type Sink struct {
	dir     string
	quality int

	mu       sync.Mutex
	written  uint64
	lastPath string
}

// NewSink creates the output directory if needed.
func NewSink(dir string, jpegQuality int) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	logger.WithComponent("output").Info().
		Str("dir", dir).
		Msg("Output directory ready")

	return &Sink{dir: dir, quality: jpegQuality}, nil
}

// Path returns the file path a given sequence number maps to. Zero-padded
// so lexicographic and numeric order agree.
func (s *Sink) Path(seq uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("frame_%06d.jpg", seq))
}

// Write persists one record. The file handle is released on every exit
// path; a failed encode leaves no partial file behind.
func (s *Sink) Write(rec Record) (string, error) {
	if rec.Image == nil {
		return "", fmt.Errorf("record %d has no image", rec.Seq)
	}

	path := s.Path(rec.Seq)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if err := jpeg.Encode(f, rec.Image, &jpeg.Options{Quality: s.quality}); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	s.mu.Lock()
	s.written++
	s.lastPath = path
	s.mu.Unlock()
	return path, nil
}

// Written returns how many records reached disk.
func (s *Sink) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}
