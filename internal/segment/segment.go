// Package segment removes backgrounds from frames. The model behind
// RemoveBackground is a collaborator: anything from the built-in color
// key to an external inference service can sit behind the interface, as
// long as it behaves as a pure, possibly slow, synchronous function.
package segment

import (
	"errors"
	"image"
)

// ErrBackendUnavailable reports that the segmentation backend cannot
// serve at all (bad parameters, missing model). The consumer treats it
// as fatal, unlike a per-frame failure.
var ErrBackendUnavailable = errors.New("segment: backend unavailable")

// Segmenter defines the interface for background-removal backends
type Segmenter interface {
	// RemoveBackground returns a new image with background pixels
	// replaced. The input is never modified.
	RemoveBackground(img image.Image) (image.Image, error)

	// Name returns a human-readable name for this backend
	Name() string
}
