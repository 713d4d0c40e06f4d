package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/maskpipe/maskpipe/internal/config"
	"github.com/maskpipe/maskpipe/internal/logger"
)

// X11 treats a region of the root window as the capture device. Useful
// on machines without a webcam: point it at a video player and the
// pipeline behaves exactly as with a real camera.
type X11 struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo

	x, y          int
	width, height int
	quality       int
	ticker        *time.Ticker
}

// NewX11 connects to the X server and prepares region capture paced at
// the configured frame rate.
func NewX11(cfg config.CameraConfig, jpegQuality int) (*X11, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	logger.WithComponent("camera").Info().
		Int("x", cfg.ScreenX).
		Int("y", cfg.ScreenY).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Int("fps", cfg.FPS).
		Msg("X11 screen camera ready")

	return &X11{
		conn:    conn,
		root:    screen.Root,
		screen:  screen,
		x:       cfg.ScreenX,
		y:       cfg.ScreenY,
		width:   cfg.Width,
		height:  cfg.Height,
		quality: jpegQuality,
		ticker:  time.NewTicker(time.Second / time.Duration(cfg.FPS)),
	}, nil
}

// Acquire grabs the region on the next tick.
func (c *X11) Acquire() (*Image, error) {
	select {
	case <-c.ticker.C:
	case <-time.After(waitSeconds * time.Second):
		return nil, ErrTimeout
	}

	reply, err := xproto.GetImage(
		c.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(c.root),
		int16(c.x), int16(c.y),
		uint16(c.width), uint16(c.height),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}

	img := c.convertImageData(reply.Data)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}

	return &Image{
		Width:  c.width,
		Height: c.height,
		Format: "jpeg",
		Data:   buf.Bytes(),
	}, nil
}

// convertImageData converts X11 image data to RGBA
func (c *X11) convertImageData(data []byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	depth := int(c.screen.RootDepth)

	if depth == 24 || depth == 32 {
		for y := 0; y < c.height; y++ {
			for x := 0; x < c.width; x++ {
				i := (y*c.width + x) * 4
				if i+3 < len(data) {
					// BGRA to RGBA
					img.Set(x, y, color.RGBA{
						R: data[i+2],
						G: data[i+1],
						B: data[i],
						A: 255,
					})
				}
			}
		}
	}

	return img
}

// Release closes the X11 connection.
func (c *X11) Release() error {
	c.ticker.Stop()
	c.conn.Close()
	return nil
}

// Name returns the backend name
func (c *X11) Name() string {
	return fmt.Sprintf("x11:%d,%d", c.x, c.y)
}
