package segment

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/maskpipe/maskpipe/internal/config"
	"github.com/maskpipe/maskpipe/internal/logger"
)

// ColorKey classifies a pixel as background when its RGB distance to
// the key color is within the threshold, and paints background pixels
// with a flat replacement color. The mask can be computed at reduced
// resolution to cut per-frame cost on large frames.
type ColorKey struct {
	key        color.RGBA
	background color.RGBA
	threshold2 int
	maskScale  int
}

// NewColorKey validates the configuration and builds the segmenter.
// Invalid parameters are ErrBackendUnavailable: without a usable
// keying setup no frame can ever be processed.
func NewColorKey(cfg config.SegmentConfig) (*ColorKey, error) {
	// 442 > sqrt(3 * 255^2), the largest possible RGB distance.
	if cfg.Threshold < 1 || cfg.Threshold > 442 {
		return nil, fmt.Errorf("%w: threshold %d outside [1,442]", ErrBackendUnavailable, cfg.Threshold)
	}
	if cfg.MaskScale < 1 {
		return nil, fmt.Errorf("%w: mask_scale %d must be >= 1", ErrBackendUnavailable, cfg.MaskScale)
	}

	logger.WithComponent("segment").Info().
		Int("threshold", cfg.Threshold).
		Int("mask_scale", cfg.MaskScale).
		Msg("Color-key segmenter ready")

	return &ColorKey{
		key:        color.RGBA{R: cfg.KeyColor.R, G: cfg.KeyColor.G, B: cfg.KeyColor.B, A: 255},
		background: color.RGBA{R: cfg.Background.R, G: cfg.Background.G, B: cfg.Background.B, A: 255},
		threshold2: cfg.Threshold * cfg.Threshold,
		maskScale:  cfg.MaskScale,
	}, nil
}

// RemoveBackground keys the image against the configured color.
func (s *ColorKey) RemoveBackground(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("empty image %v", bounds)
	}

	src := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(src, src.Bounds(), img, bounds.Min, draw.Src)

	mask := s.computeMask(src)

	out := image.NewRGBA(src.Bounds())
	for y := 0; y < src.Bounds().Dy(); y++ {
		for x := 0; x < src.Bounds().Dx(); x++ {
			if mask.GrayAt(x/s.maskScale, y/s.maskScale).Y > 0 {
				out.SetRGBA(x, y, s.background)
			} else {
				out.SetRGBA(x, y, src.RGBAAt(x, y))
			}
		}
	}
	return out, nil
}

// computeMask builds the background mask, at 1/maskScale resolution
// when scaling is enabled. A mask value > 0 marks background.
func (s *ColorKey) computeMask(src *image.RGBA) *image.Gray {
	probe := src
	if s.maskScale > 1 {
		w := (src.Bounds().Dx() + s.maskScale - 1) / s.maskScale
		h := (src.Bounds().Dy() + s.maskScale - 1) / s.maskScale
		probe = image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(probe, probe.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	mask := image.NewGray(probe.Bounds())
	for y := 0; y < probe.Bounds().Dy(); y++ {
		for x := 0; x < probe.Bounds().Dx(); x++ {
			c := probe.RGBAAt(x, y)
			dr := int(c.R) - int(s.key.R)
			dg := int(c.G) - int(s.key.G)
			db := int(c.B) - int(s.key.B)
			if dr*dr+dg*dg+db*db <= s.threshold2 {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return mask
}

// Name returns the backend name
func (s *ColorKey) Name() string {
	return "colorkey"
}
