// Package display renders the live capture for the operator and watches
// for the stop key. Display failures are never fatal to the pipeline.
package display

import "github.com/maskpipe/maskpipe/internal/frame"

// Display defines the interface for preview backends
type Display interface {
	// Show presents a frame to the operator.
	Show(f *frame.Frame) error

	// Close releases the preview.
	Close() error
}

// Nop is the display used when the preview is disabled.
type Nop struct{}

func (Nop) Show(*frame.Frame) error { return nil }
func (Nop) Close() error            { return nil }
