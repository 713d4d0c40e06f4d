package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maskpipe/maskpipe/internal/camera"
	"github.com/maskpipe/maskpipe/internal/capture"
	"github.com/maskpipe/maskpipe/internal/display"
	"github.com/maskpipe/maskpipe/internal/logger"
	"github.com/maskpipe/maskpipe/internal/shutdown"
	"github.com/maskpipe/maskpipe/internal/transport"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run the capture process",
	Long: `Run the camera-facing process: acquire frames, preview them in the
browser, and ship them to the processing process over the frame link.

Stops on the configured stop key, on an interrupt signal, or when the
processing side requests it. Frames the link cannot keep up with are
dropped, oldest first.`,
	Example: `  # Capture with defaults (webcam, then screen, then test pattern)
  maskpipe capture

  # Capture a fixed number of frames from the test pattern
  maskpipe capture --backend synthetic --max-frames 100

  # Point at a processing process on another port
  maskpipe capture --addr localhost:7000`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("backend", "", "camera backend (v4l2, x11, synthetic, auto)")
	captureCmd.Flags().String("device", "", "v4l2 device path")
	captureCmd.Flags().Uint64("max-frames", 0, "stop after this many frames (0 = unlimited)")

	viper.BindPFlag("camera_backend", captureCmd.Flags().Lookup("backend"))
	viper.BindPFlag("camera_device", captureCmd.Flags().Lookup("device"))
	viper.BindPFlag("max_frames", captureCmd.Flags().Lookup("max-frames"))
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if backend := viper.GetString("camera_backend"); backend != "" {
		cfg.Camera.Backend = backend
	}
	if device := viper.GetString("camera_device"); device != "" {
		cfg.Camera.Device = device
	}
	if max := viper.GetUint64("max_frames"); max > 0 {
		cfg.Capture.MaxFrames = max
	}

	log := logger.WithComponent("capture-cmd")

	coord := shutdown.New()
	coord.NotifySignals()

	cam, err := camera.Open(cfg.Camera, cfg.Capture.JPEGQuality)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}

	pub, err := transport.Dial(cfg.Transport.Addr, cfg.Transport.Capacity, coord)
	if err != nil {
		cam.Release()
		return fmt.Errorf("failed to reach processing side: %w", err)
	}

	var disp display.Display = display.Nop{}
	if cfg.Capture.Preview {
		preview, err := display.NewPreview(cfg.Capture.PreviewAddr)
		if err != nil {
			log.Warn().Err(err).Msg("Preview unavailable, continuing without it")
		} else {
			disp = preview
			log.Info().
				Str("url", "http://"+cfg.Capture.PreviewAddr).
				Msg("Open the preview in a browser")
		}
	}

	display.WatchStopKey(os.Stdin, cfg.Capture.StopKey, coord)
	log.Info().
		Str("camera", cam.Name()).
		Str("stop_key", cfg.Capture.StopKey).
		Msg("Capturing - press the stop key (then Enter) or Ctrl+C to stop")

	producer := capture.NewProducer(cam, pub, disp, coord, cfg.Capture)
	runErr := producer.Run()

	// Drains buffered frames and posts the shutdown token.
	if err := pub.Close(); err != nil {
		log.Warn().Err(err).Msg("Frame link close failed")
	}
	disp.Close()

	if runErr != nil {
		return runErr
	}
	log.Info().Msg("Capture stopped cleanly")
	return nil
}
