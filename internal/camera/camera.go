// Package camera provides the frame acquisition backends for the
// capture process.
package camera

import (
	"errors"
	"fmt"

	"github.com/maskpipe/maskpipe/internal/config"
	"github.com/maskpipe/maskpipe/internal/logger"
)

// ErrTimeout reports that no frame arrived within the bounded wait. The
// capture loop treats it as retryable so a stop request is never stuck
// behind a silent device.
var ErrTimeout = errors.New("camera: acquisition timed out")

// Image is one acquired picture, before the capture loop stamps it with
// a sequence number and timestamp.
type Image struct {
	Width  int
	Height int
	Format string
	Data   []byte
}

// Camera defines the interface for acquisition backends
type Camera interface {
	// Acquire blocks until the next picture is ready, for at most a
	// backend-chosen bounded interval. Returns ErrTimeout when the wait
	// elapses; any other error means the device is gone.
	Acquire() (*Image, error)

	// Release frees the device.
	Release() error

	// Name returns a human-readable name for this backend
	Name() string
}

// Open selects a backend from the configuration. Backend "auto" tries
// v4l2, then x11, then the synthetic pattern, mirroring how a desktop
// box degrades: webcam, screen, nothing.
func Open(cfg config.CameraConfig, jpegQuality int) (Camera, error) {
	log := logger.WithComponent("camera")

	switch cfg.Backend {
	case "v4l2":
		return NewV4L2(cfg)
	case "x11":
		return NewX11(cfg, jpegQuality)
	case "synthetic":
		return NewSynthetic(cfg, jpegQuality)
	case "", "auto":
		cam, err := NewV4L2(cfg)
		if err == nil {
			log.Info().Str("backend", cam.Name()).Msg("Camera backend selected")
			return cam, nil
		}
		log.Warn().Err(err).Msg("V4L2 camera not available")

		cam2, err := NewX11(cfg, jpegQuality)
		if err == nil {
			log.Info().Str("backend", cam2.Name()).Msg("Camera backend selected")
			return cam2, nil
		}
		log.Warn().Err(err).Msg("X11 screen camera not available")

		cam3, err := NewSynthetic(cfg, jpegQuality)
		if err != nil {
			return nil, err
		}
		log.Info().Str("backend", cam3.Name()).Msg("Camera backend selected")
		return cam3, nil
	default:
		return nil, fmt.Errorf("unknown camera backend %q", cfg.Backend)
	}
}
