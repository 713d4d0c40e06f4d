// Package capture drives the camera-facing half of the pipeline: the
// loop that acquires frames, stamps them and hands them to the
// transport and the preview.
package capture

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/maskpipe/maskpipe/internal/camera"
	"github.com/maskpipe/maskpipe/internal/config"
	"github.com/maskpipe/maskpipe/internal/display"
	"github.com/maskpipe/maskpipe/internal/frame"
	"github.com/maskpipe/maskpipe/internal/logger"
	"github.com/maskpipe/maskpipe/internal/shutdown"
)

// State is the producer lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Publisher is the transport surface the producer pushes into. Publish
// must never block.
type Publisher interface {
	Publish(f *frame.Frame) bool
}

// Producer runs the capture loop: acquire, stamp, publish, show,
// check for stop. Only camera failure terminates it with an error;
// transport drops and display trouble are absorbed.
type Producer struct {
	cam   camera.Camera
	pub   Publisher
	disp  display.Display
	coord *shutdown.Coordinator

	logEvery  int
	maxFrames uint64

	state     int32
	seq       uint64
	lastStamp time.Time
}

// NewProducer wires the capture loop.
func NewProducer(cam camera.Camera, pub Publisher, disp display.Display, coord *shutdown.Coordinator, cfg config.CaptureConfig) *Producer {
	return &Producer{
		cam:       cam,
		pub:       pub,
		disp:      disp,
		coord:     coord,
		logEvery:  cfg.LogEvery,
		maxFrames: cfg.MaxFrames,
	}
}

// State returns the current lifecycle phase.
func (p *Producer) State() State {
	return State(atomic.LoadInt32(&p.state))
}

func (p *Producer) setState(s State) {
	atomic.StoreInt32(&p.state, int32(s))
}

// Run drives the loop until a stop is requested or the camera fails.
// The camera is released on every exit path. A non-nil error means the
// camera is gone; everything else is a clean stop.
func (p *Producer) Run() error {
	log := logger.WithComponent("capture")
	p.setState(StateRunning)
	start := time.Now()

	var runErr error
	for {
		if p.coord.Requested() {
			log.Info().Uint64("frames", p.seq).Msg("Stop requested, ending capture")
			break
		}
		if p.maxFrames > 0 && p.seq >= p.maxFrames {
			log.Info().Uint64("max_frames", p.maxFrames).Msg("Frame limit reached")
			p.coord.RequestStop()
			break
		}

		img, err := p.cam.Acquire()
		if errors.Is(err, camera.ErrTimeout) {
			// Bounded wait elapsed; loop back so a stop request is
			// seen within one interval.
			continue
		}
		if err != nil {
			runErr = fmt.Errorf("camera %s: %w", p.cam.Name(), err)
			break
		}

		f := p.stamp(img)
		p.pub.Publish(f)

		if err := p.disp.Show(f); err != nil {
			log.Debug().Err(err).Uint64("seq", f.Seq).Msg("Preview skipped frame")
		}

		if p.logEvery > 0 && p.seq%uint64(p.logEvery) == 0 {
			elapsed := time.Since(start).Seconds()
			log.Info().
				Uint64("frames", p.seq).
				Float64("fps", float64(p.seq)/elapsed).
				Msg("Capture throughput")
		}
	}

	p.setState(StateStopping)
	if err := p.cam.Release(); err != nil {
		log.Warn().Err(err).Msg("Camera release failed")
	}
	p.setState(StateTerminated)
	return runErr
}

// stamp wraps a camera image into a Frame with the next sequence number
// and a non-decreasing timestamp.
func (p *Producer) stamp(img *camera.Image) *frame.Frame {
	p.seq++
	now := time.Now()
	if now.Before(p.lastStamp) {
		now = p.lastStamp
	}
	p.lastStamp = now

	return &frame.Frame{
		Seq:        p.seq,
		CapturedAt: now,
		Width:      img.Width,
		Height:     img.Height,
		Format:     img.Format,
		Data:       img.Data,
	}
}
