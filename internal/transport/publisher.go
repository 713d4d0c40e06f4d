package transport

import (
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maskpipe/maskpipe/internal/frame"
	"github.com/maskpipe/maskpipe/internal/logger"
	"github.com/maskpipe/maskpipe/internal/shutdown"
)

const (
	dialRetries    = 5
	dialRetryDelay = 2 * time.Second
)

// Publisher is the capture-side end of the transport. Publish never
// blocks: frames land in a ring and a writer goroutine ships them, so a
// slow link drops frames instead of stalling the capture loop.
type Publisher struct {
	conn  *websocket.Conn
	ring  *Ring
	coord *shutdown.Coordinator

	writerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error

	sent uint64
}

// Dial connects to the processing side, retrying a few times so either
// process can be launched first. The coordinator is tripped if the link
// breaks or the consumer posts a shutdown token.
func Dial(addr string, capacity int, coord *shutdown.Coordinator) (*Publisher, error) {
	ring, err := NewRing(capacity)
	if err != nil {
		return nil, err
	}

	u := url.URL{Scheme: "ws", Host: addr, Path: "/frames"}
	log := logger.WithComponent("publisher")

	var conn *websocket.Conn
	for attempt := 1; ; attempt++ {
		if coord.Requested() {
			return nil, fmt.Errorf("dial %s: %w", addr, ErrClosed)
		}

		conn, _, err = websocket.DefaultDialer.Dial(u.String(), nil)
		if err == nil {
			break
		}
		if attempt >= dialRetries {
			return nil, fmt.Errorf("dial %s after %d attempts: %w", addr, attempt, err)
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", dialRetries).
			Msg("Processing side not reachable, retrying")

		select {
		case <-coord.Done():
			return nil, fmt.Errorf("dial %s: %w", addr, ErrClosed)
		case <-time.After(dialRetryDelay):
		}
	}

	log.Info().Str("addr", addr).Msg("Connected to processing side")

	p := &Publisher{
		conn:       conn,
		ring:       ring,
		coord:      coord,
		writerDone: make(chan struct{}),
	}

	go p.writeLoop()
	go p.readLoop()
	return p, nil
}

// Publish offers a frame to the transport without blocking. It reports
// whether the frame was accepted into the buffer; overwritten and
// post-shutdown frames simply fall out of the drop counter.
func (p *Publisher) Publish(f *frame.Frame) bool {
	return p.ring.TryEnqueue(f)
}

// Stats returns (frames written to the wire, frames dropped before it).
func (p *Publisher) Stats() (sent, dropped uint64) {
	return atomic.LoadUint64(&p.sent), p.ring.Stats().Dropped
}

// writeLoop drains the ring onto the wire. After the ring closes it
// posts the shutdown token so the consumer enters its drain phase.
func (p *Publisher) writeLoop() {
	defer close(p.writerDone)
	log := logger.WithComponent("publisher")

	for {
		f, ok := p.ring.Dequeue()
		if !ok {
			break
		}

		msg, err := frame.EncodeFrame(f)
		if err != nil {
			log.Error().Err(err).Uint64("seq", f.Seq).Msg("Frame encode failed, skipping")
			continue
		}
		if err := p.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			log.Error().Err(err).Uint64("seq", f.Seq).Msg("Frame link broken, stopping capture")
			p.coord.RequestStop()
			p.ring.Close()
			return
		}
		atomic.AddUint64(&p.sent, 1)
	}

	if msg, err := frame.EncodeShutdown(); err == nil {
		if err := p.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			log.Debug().Err(err).Msg("Shutdown token not delivered")
		} else {
			log.Info().Msg("Shutdown token sent")
		}
	}
	_ = p.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}

// readLoop watches for a consumer-originated shutdown token. It exits
// once the connection closes.
func (p *Publisher) readLoop() {
	log := logger.WithComponent("publisher")

	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		_, isShutdown, err := frame.Decode(msg)
		if err != nil {
			log.Debug().Err(err).Msg("Ignoring undecodable message from consumer")
			continue
		}
		if isShutdown {
			log.Info().Msg("Consumer requested stop")
			p.coord.RequestStop()
			return
		}
	}
}

// Close stops intake, lets buffered frames reach the wire, posts the
// shutdown token and tears the connection down. Idempotent.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.ring.Close()

		select {
		case <-p.writerDone:
		case <-time.After(5 * time.Second):
			logger.WithComponent("publisher").Warn().Msg("Timed out draining frame buffer")
		}
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}
