package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/maskpipe/maskpipe/internal/config"
	"github.com/maskpipe/maskpipe/internal/logger"
)

// Pattern colors. The backdrop matches the segmenter's default key
// color so the generated stream exercises background removal end to end.
var (
	syntheticBackdrop = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	syntheticSubject  = color.RGBA{R: 220, G: 120, B: 40, A: 255}
)

// patternW/patternH is the resolution the pattern is drawn at before
// scaling to the configured frame size.
const (
	patternW = 160
	patternH = 120
)

// Synthetic generates a moving test pattern: an orange block drifting
// over a solid key-color backdrop. Always available, used by the
// examples and wherever no real device exists.
type Synthetic struct {
	width   int
	height  int
	quality int
	ticker  *time.Ticker
	n       int
}

// NewSynthetic creates the pattern generator paced at the configured
// frame rate.
func NewSynthetic(cfg config.CameraConfig, jpegQuality int) (*Synthetic, error) {
	if cfg.FPS < 1 {
		return nil, fmt.Errorf("synthetic camera needs fps >= 1, got %d", cfg.FPS)
	}

	logger.WithComponent("camera").Info().
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Int("fps", cfg.FPS).
		Msg("Synthetic camera ready")

	return &Synthetic{
		width:   cfg.Width,
		height:  cfg.Height,
		quality: jpegQuality,
		ticker:  time.NewTicker(time.Second / time.Duration(cfg.FPS)),
	}, nil
}

// Acquire renders the next pattern frame on the next tick.
func (c *Synthetic) Acquire() (*Image, error) {
	select {
	case <-c.ticker.C:
	case <-time.After(waitSeconds * time.Second):
		return nil, ErrTimeout
	}

	pattern := image.NewRGBA(image.Rect(0, 0, patternW, patternH))
	for y := 0; y < patternH; y++ {
		for x := 0; x < patternW; x++ {
			pattern.SetRGBA(x, y, syntheticBackdrop)
		}
	}

	// Subject block bounces horizontally, one step per frame.
	const side = 40
	span := patternW - side
	pos := c.n % (2 * span)
	if pos > span {
		pos = 2*span - pos
	}
	for y := (patternH - side) / 2; y < (patternH+side)/2; y++ {
		for x := pos; x < pos+side; x++ {
			pattern.SetRGBA(x, y, syntheticSubject)
		}
	}
	c.n++

	scaled := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), pattern, pattern.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("encode pattern: %w", err)
	}

	return &Image{
		Width:  c.width,
		Height: c.height,
		Format: "jpeg",
		Data:   buf.Bytes(),
	}, nil
}

// Release stops the pacing ticker.
func (c *Synthetic) Release() error {
	c.ticker.Stop()
	return nil
}

// Name returns the backend name
func (c *Synthetic) Name() string {
	return "synthetic"
}
