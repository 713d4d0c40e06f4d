package frame

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Envelope types carried on the wire. The shutdown token is the only
// non-frame message; it may travel in either direction.
const (
	TypeFrame    = "frame"
	TypeShutdown = "shutdown"
)

type envelope struct {
	Type         string `cbor:"type"`
	Seq          uint64 `cbor:"seq,omitempty"`
	CapturedAtMs int64  `cbor:"captured_at_ms,omitempty"`
	Width        int    `cbor:"width,omitempty"`
	Height       int    `cbor:"height,omitempty"`
	Format       string `cbor:"format,omitempty"`
	Data         []byte `cbor:"data,omitempty"`
}

// EncodeFrame serializes a frame into a CBOR wire message.
func EncodeFrame(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("nil frame")
	}
	return cbor.Marshal(&envelope{
		Type:         TypeFrame,
		Seq:          f.Seq,
		CapturedAtMs: f.CapturedAt.UnixMilli(),
		Width:        f.Width,
		Height:       f.Height,
		Format:       f.Format,
		Data:         f.Data,
	})
}

// EncodeShutdown serializes the shutdown token.
func EncodeShutdown() ([]byte, error) {
	return cbor.Marshal(&envelope{Type: TypeShutdown})
}

// Decode parses a wire message. It returns the frame for frame messages,
// shutdown=true for the shutdown token, and an error for anything else.
func Decode(msg []byte) (f *Frame, shutdown bool, err error) {
	var env envelope
	if err := cbor.Unmarshal(msg, &env); err != nil {
		return nil, false, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeShutdown:
		return nil, true, nil
	case TypeFrame:
		if len(env.Data) == 0 {
			return nil, false, fmt.Errorf("frame %d has empty payload", env.Seq)
		}
		return &Frame{
			Seq:        env.Seq,
			CapturedAt: time.UnixMilli(env.CapturedAtMs),
			Width:      env.Width,
			Height:     env.Height,
			Format:     env.Format,
			Data:       env.Data,
		}, false, nil
	default:
		return nil, false, fmt.Errorf("unknown envelope type %q", env.Type)
	}
}
