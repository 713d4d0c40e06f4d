package camera

import (
	"fmt"

	"github.com/blackjack/webcam"

	"github.com/maskpipe/maskpipe/internal/config"
	"github.com/maskpipe/maskpipe/internal/logger"
)

// V4L2 fourcc for motion JPEG ('MJPG').
const fourccMJPEG = 0x47504A4D

// waitSeconds bounds a single frame wait so a stop request is observed
// even when the device stalls.
const waitSeconds = 1

// V4L2 acquires MJPEG frames from a video4linux device.
type V4L2 struct {
	cam    *webcam.Webcam
	device string
	width  int
	height int
}

// NewV4L2 opens the device and starts streaming MJPEG at the configured
// resolution. The driver may adjust the dimensions; the adjusted values
// are what every frame reports.
func NewV4L2(cfg config.CameraConfig) (*V4L2, error) {
	cam, err := webcam.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	format := webcam.PixelFormat(fourccMJPEG)
	if _, ok := cam.GetSupportedFormats()[format]; !ok {
		cam.Close()
		return nil, fmt.Errorf("device %s does not offer MJPEG", cfg.Device)
	}

	_, w, h, err := cam.SetImageFormat(format, uint32(cfg.Width), uint32(cfg.Height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("set format on %s: %w", cfg.Device, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("start streaming on %s: %w", cfg.Device, err)
	}

	logger.WithComponent("camera").Info().
		Str("device", cfg.Device).
		Uint32("width", w).
		Uint32("height", h).
		Msg("V4L2 camera streaming")

	return &V4L2{
		cam:    cam,
		device: cfg.Device,
		width:  int(w),
		height: int(h),
	}, nil
}

// Acquire waits for the next frame with a bounded timeout.
func (c *V4L2) Acquire() (*Image, error) {
	err := c.cam.WaitForFrame(waitSeconds)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, ErrTimeout
	default:
		return nil, fmt.Errorf("wait for frame on %s: %w", c.device, err)
	}

	data, err := c.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame from %s: %w", c.device, err)
	}
	if len(data) == 0 {
		return nil, ErrTimeout
	}

	// The driver reuses its buffer between reads.
	payload := make([]byte, len(data))
	copy(payload, data)

	return &Image{
		Width:  c.width,
		Height: c.height,
		Format: "jpeg",
		Data:   payload,
	}, nil
}

// Release stops streaming and closes the device.
func (c *V4L2) Release() error {
	if err := c.cam.StopStreaming(); err != nil {
		logger.WithComponent("camera").Warn().Err(err).Msg("Failed to stop streaming")
	}
	return c.cam.Close()
}

// Name returns the backend name
func (c *V4L2) Name() string {
	return "v4l2:" + c.device
}
