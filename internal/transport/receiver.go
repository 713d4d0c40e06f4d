package transport

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/maskpipe/maskpipe/internal/frame"
	"github.com/maskpipe/maskpipe/internal/logger"
)

// Receiver is the processing-side end of the transport. It accepts one
// capture connection, buffers incoming frames in a ring and serves them
// to the consumer through Dequeue. A shutdown token from either side
// stops intake while the buffered frames drain.
type Receiver struct {
	ring *Ring

	server   *http.Server
	addr     string
	upgrader websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn

	stopOnce sync.Once
	received uint64
}

// Listen binds addr and starts accepting the capture connection.
func Listen(addr string, capacity int) (*Receiver, error) {
	ring, err := NewRing(capacity)
	if err != nil {
		return nil, err
	}

	r := &Receiver{ring: ring}

	router := mux.NewRouter()
	router.HandleFunc("/frames", r.handleFrames)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	r.addr = ln.Addr().String()
	r.server = &http.Server{Handler: router}
	go func() {
		if err := r.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.WithComponent("receiver").Error().Err(err).Msg("Transport server error")
		}
	}()

	logger.WithComponent("receiver").Info().
		Str("addr", addr).
		Int("capacity", capacity).
		Msg("Waiting for capture connection")
	return r, nil
}

// handleFrames upgrades the capture connection and pumps its messages
// into the ring until the stream ends.
func (r *Receiver) handleFrames(w http.ResponseWriter, req *http.Request) {
	log := logger.WithComponent("receiver")

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	r.mu.Lock()
	if r.conn != nil {
		r.mu.Unlock()
		log.Warn().Str("remote", req.RemoteAddr).Msg("Rejecting second capture connection")
		conn.Close()
		return
	}
	r.conn = conn
	r.mu.Unlock()

	log.Info().Str("remote", req.RemoteAddr).Msg("Capture side connected")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("Capture side closed the connection")
			} else {
				log.Warn().Err(err).Msg("Frame link lost")
			}
			r.ring.Close()
			return
		}

		f, isShutdown, err := frame.Decode(msg)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable message")
			continue
		}
		if isShutdown {
			log.Info().Msg("Shutdown token received, draining buffered frames")
			r.ring.Close()
			return
		}

		atomic.AddUint64(&r.received, 1)
		r.ring.TryEnqueue(f)
	}
}

// Addr returns the bound listen address.
func (r *Receiver) Addr() string {
	return r.addr
}

// Dequeue blocks until a frame is available. ok is false once the
// stream has ended and every buffered frame has been consumed.
func (r *Receiver) Dequeue() (f *frame.Frame, ok bool) {
	return r.ring.Dequeue()
}

// RequestStop propagates a local stop to the capture side and stops
// intake. Buffered frames stay dequeueable. Idempotent.
func (r *Receiver) RequestStop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		conn := r.conn
		r.mu.Unlock()

		if conn != nil {
			if msg, err := frame.EncodeShutdown(); err == nil {
				if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
					logger.WithComponent("receiver").Debug().
						Err(err).
						Msg("Shutdown token not delivered to capture side")
				}
			}
		}
		r.ring.Close()
	})
}

// Stats returns (frames received off the wire, frames dropped by the ring).
func (r *Receiver) Stats() (received, dropped uint64) {
	return atomic.LoadUint64(&r.received), r.ring.Stats().Dropped
}

// Close tears the transport down.
func (r *Receiver) Close() error {
	r.ring.Close()

	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return r.server.Close()
}
