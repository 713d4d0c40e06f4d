package frame

import "time"

// Frame is one captured image. Once constructed it must not be modified:
// the payload is shared by reference between the capture loop, the
// transport and the display without copying.
type Frame struct {
	// Seq is assigned by the capture loop, strictly increasing, never
	// reused within a run.
	Seq uint64

	// CapturedAt is the acquisition time. Millisecond resolution survives
	// the wire encoding.
	CapturedAt time.Time

	// Width and Height describe the payload in pixels.
	Width  int
	Height int

	// Format names the payload encoding, "jpeg" for every built-in
	// camera backend.
	Format string

	// Data is the raw payload. Must not be mutated after construction.
	Data []byte
}
