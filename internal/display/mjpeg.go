package display

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/maskpipe/maskpipe/internal/frame"
	"github.com/maskpipe/maskpipe/internal/logger"
)

// Preview streams the live capture as Motion JPEG over HTTP so the
// operator can watch it in a browser tab. Slow viewers skip frames;
// the capture loop is never held up by a viewer.
type Preview struct {
	server *http.Server

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	frameMu    sync.RWMutex
	lastSeq    uint64
	lastUpdate time.Time
	frameCount uint64
	startTime  time.Time
}

// NewPreview binds addr and starts serving the preview page.
func NewPreview(addr string) (*Preview, error) {
	p := &Preview{
		clients:   make(map[chan []byte]struct{}),
		startTime: time.Now(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/", p.handleIndex)
	router.HandleFunc("/stream", p.handleStream)
	router.HandleFunc("/stats", p.handleStats)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("preview listen %s: %w", addr, err)
	}

	p.server = &http.Server{Handler: router}
	go func() {
		if err := p.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.WithComponent("preview").Error().Err(err).Msg("Preview server error")
		}
	}()

	logger.WithComponent("preview").Info().
		Str("addr", addr).
		Msg("Live preview available")
	return p, nil
}

// Show broadcasts the frame to connected viewers. Frames are already
// JPEG so no re-encoding happens here.
func (p *Preview) Show(f *frame.Frame) error {
	if f.Format != "jpeg" {
		return fmt.Errorf("preview expects jpeg payloads, got %q", f.Format)
	}

	p.frameMu.Lock()
	p.lastSeq = f.Seq
	p.lastUpdate = time.Now()
	p.frameCount++
	p.frameMu.Unlock()

	p.clientsMu.RLock()
	for ch := range p.clients {
		select {
		case ch <- f.Data:
		default:
			// Viewer is slow, skip this frame
		}
	}
	p.clientsMu.RUnlock()
	return nil
}

// Close shuts the preview server down and disconnects viewers.
func (p *Preview) Close() error {
	p.clientsMu.Lock()
	for ch := range p.clients {
		close(ch)
	}
	p.clients = make(map[chan []byte]struct{})
	p.clientsMu.Unlock()
	return p.server.Close()
}

func (p *Preview) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>maskpipe capture</title>
<style>body{margin:0;background:#000;display:flex;justify-content:center;align-items:center;min-height:100vh}img{max-width:100vw;max-height:100vh}</style>
</head>
<body><img src="/stream" alt="live capture"></body>
</html>`)
}

func (p *Preview) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")

	frameChan := make(chan []byte, 2)

	p.clientsMu.Lock()
	p.clients[frameChan] = struct{}{}
	count := len(p.clients)
	p.clientsMu.Unlock()

	log := logger.WithComponent("preview")
	log.Info().Int("viewers", count).Msg("Viewer connected")

	defer func() {
		p.clientsMu.Lock()
		delete(p.clients, frameChan)
		count := len(p.clients)
		p.clientsMu.Unlock()
		log.Info().Int("viewers", count).Msg("Viewer disconnected")
	}()

	for jpegData := range frameChan {
		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
			return
		}
		if _, err := w.Write(jpegData); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func (p *Preview) handleStats(w http.ResponseWriter, r *http.Request) {
	p.frameMu.RLock()
	stats := map[string]any{
		"last_seq":   p.lastSeq,
		"frames":     p.frameCount,
		"fps":        float64(p.frameCount) / time.Since(p.startTime).Seconds(),
		"last_frame": p.lastUpdate.Format(time.RFC3339Nano),
	}
	p.frameMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
