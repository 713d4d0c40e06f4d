// Package process drives the inference-facing half of the pipeline:
// dequeue, remove background, persist, repeat.
package process

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/maskpipe/maskpipe/internal/config"
	"github.com/maskpipe/maskpipe/internal/frame"
	"github.com/maskpipe/maskpipe/internal/logger"
	"github.com/maskpipe/maskpipe/internal/output"
	"github.com/maskpipe/maskpipe/internal/segment"
	"github.com/maskpipe/maskpipe/internal/shutdown"
)

// State is the consumer lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Source is the transport surface the consumer pulls from. Dequeue
// blocks until a frame is available and reports ok=false once the
// stream has ended and drained.
type Source interface {
	Dequeue() (*frame.Frame, bool)
}

// Stats is a snapshot of consumer progress.
type Stats struct {
	// Processed counts frames that produced an output record.
	Processed uint64

	// Skipped counts frames lost to per-frame failures (bad payload,
	// inference error, write error).
	Skipped uint64

	// LastProcessedSeq is used for lag reporting only; there is no
	// redelivery.
	LastProcessedSeq uint64

	// Gaps counts sequence numbers never seen, i.e. frames dropped
	// upstream by the transport.
	Gaps uint64
}

// Consumer processes frames one at a time. A single frame's failure is
// contained; only an unusable segmentation backend terminates the run.
type Consumer struct {
	src   Source
	seg   segment.Segmenter
	sink  *output.Sink
	coord *shutdown.Coordinator

	logEvery int

	state     int32
	processed uint64
	skipped   uint64
	lastSeq   uint64
	lastSeen  uint64
	gaps      uint64
}

// NewConsumer wires the processing loop.
func NewConsumer(src Source, seg segment.Segmenter, sink *output.Sink, coord *shutdown.Coordinator, cfg config.ProcessConfig) *Consumer {
	return &Consumer{
		src:      src,
		seg:      seg,
		sink:     sink,
		coord:    coord,
		logEvery: cfg.LogEvery,
	}
}

// State returns the current lifecycle phase.
func (c *Consumer) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Consumer) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

// Stats returns a progress snapshot.
func (c *Consumer) Stats() Stats {
	return Stats{
		Processed:        atomic.LoadUint64(&c.processed),
		Skipped:          atomic.LoadUint64(&c.skipped),
		LastProcessedSeq: atomic.LoadUint64(&c.lastSeq),
		Gaps:             atomic.LoadUint64(&c.gaps),
	}
}

// Run processes frames until the source drains. Frames buffered when
// the shutdown token arrives are still processed; an in-flight frame is
// always finished, never aborted. Returns an error only when the
// segmentation backend is unusable.
func (c *Consumer) Run() error {
	log := logger.WithComponent("process")
	c.setState(StateRunning)
	start := time.Now()

	for {
		if c.coord.Requested() && c.State() == StateRunning {
			c.setState(StateDraining)
			log.Info().Msg("Draining: finishing buffered frames, accepting no new ones")
		}

		f, ok := c.src.Dequeue()
		if !ok {
			break
		}

		if last := atomic.LoadUint64(&c.lastSeen); last > 0 && f.Seq > last+1 {
			atomic.AddUint64(&c.gaps, f.Seq-last-1)
		}
		atomic.StoreUint64(&c.lastSeen, f.Seq)

		if err := c.handle(f); err != nil {
			if errors.Is(err, segment.ErrBackendUnavailable) {
				c.setState(StateTerminated)
				return err
			}
			atomic.AddUint64(&c.skipped, 1)
			log.Warn().Err(err).Uint64("seq", f.Seq).Msg("Frame skipped")
			continue
		}

		n := atomic.AddUint64(&c.processed, 1)
		if c.logEvery > 0 && n%uint64(c.logEvery) == 0 {
			elapsed := time.Since(start).Seconds()
			log.Info().
				Uint64("processed", n).
				Float64("fps", float64(n)/elapsed).
				Dur("lag", time.Since(f.CapturedAt)).
				Msg("Processing throughput")
		}
	}

	c.setState(StateTerminated)
	st := c.Stats()
	log.Info().
		Uint64("processed", st.Processed).
		Uint64("skipped", st.Skipped).
		Uint64("gaps", st.Gaps).
		Dur("elapsed", time.Since(start)).
		Msg("Processing finished")
	return nil
}

// handle runs one frame through decode, inference and the sink.
func (c *Consumer) handle(f *frame.Frame) error {
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return fmt.Errorf("decode frame %d: %w", f.Seq, err)
	}

	processed, err := c.seg.RemoveBackground(img)
	if err != nil {
		if errors.Is(err, segment.ErrBackendUnavailable) {
			return err
		}
		return fmt.Errorf("remove background from frame %d: %w", f.Seq, err)
	}

	path, err := c.sink.Write(output.Record{Seq: f.Seq, Image: processed})
	if err != nil {
		return fmt.Errorf("write frame %d: %w", f.Seq, err)
	}

	atomic.StoreUint64(&c.lastSeq, f.Seq)
	logger.WithComponent("process").Debug().
		Uint64("seq", f.Seq).
		Str("path", path).
		Msg("Frame written")
	return nil
}
