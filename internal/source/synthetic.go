package source

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/banshee-data/catenary.report/internal/wire"
)

// SyntheticConfig describes a generated frame sequence with a single
// horizontal wire. Deterministic for a given configuration, which
// makes it the reference source for tests and demo runs.
type SyntheticConfig struct {
	Frames int
	Width  int
	Height int
	FPS    float64

	// Wire geometry. WireCentreX/WireY are in full-frame pixels;
	// DriftXPerFrame moves the wire horizontally each frame.
	// WireSpanPx bounds the wire's horizontal extent around its
	// centre; zero means the wire crosses the full frame.
	WireCentreX    float64
	WireY          float64
	WireDiameterPx float64
	WireSpanPx     float64
	DriftXPerFrame float64

	// Intensities (0-255). The wire is darker than the sky.
	Background uint8
	WireLevel  uint8
}

// DefaultSyntheticConfig returns a 1920x1080 sequence with a 10 px
// wire on the frame centreline.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Frames:         100,
		Width:          1920,
		Height:         1080,
		FPS:            25,
		WireCentreX:    960,
		WireY:          540,
		WireDiameterPx: 10,
		Background:     200,
		WireLevel:      30,
	}
}

// Synthetic generates frames on demand.
type Synthetic struct {
	cfg  SyntheticConfig
	next int64
}

// NewSynthetic builds a generator for cfg.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.FPS <= 0 {
		cfg.FPS = 25
	}
	return &Synthetic{cfg: cfg}
}

func (s *Synthetic) Open() error { s.next = 0; return nil }

func (s *Synthetic) Close() error { return nil }

// Next renders the next frame, or io.EOF after the configured count.
func (s *Synthetic) Next() (*wire.RawFrame, error) {
	if s.cfg.Frames > 0 && s.next >= int64(s.cfg.Frames) {
		return nil, io.EOF
	}
	id := s.next
	s.next++

	cx := s.cfg.WireCentreX + float64(id)*s.cfg.DriftXPerFrame
	img := RenderWireSpan(s.cfg.Width, s.cfg.Height, cx, s.cfg.WireY,
		s.cfg.WireDiameterPx, s.cfg.WireSpanPx, s.cfg.Background, s.cfg.WireLevel)

	return &wire.RawFrame{
		FrameID:     id,
		TimestampMs: float64(id) * 1000 / s.cfg.FPS,
		Image:       img,
		Source:      "synthetic",
	}, nil
}

// RenderWireFrame draws a full-width horizontal wire of the given
// diameter centred at (cx, wireY) on a flat background.
func RenderWireFrame(w, h int, cx, wireY, diameterPx float64, background, wireLevel uint8) *image.RGBA {
	return RenderWireSpan(w, h, cx, wireY, diameterPx, 0, background, wireLevel)
}

// RenderWireSpan draws a horizontal wire segment of horizontal extent
// spanPx centred at (cx, wireY); spanPx <= 0 means full width. Wire
// edges are softened over one pixel so sub-pixel estimation has a
// gradient to work with.
func RenderWireSpan(w, h int, cx, wireY, diameterPx, spanPx float64, background, wireLevel uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{R: background, G: background, B: background, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, bg)
		}
	}

	x0, x1 := 0, w-1
	if spanPx > 0 {
		x0 = clampInt(int(cx-spanPx/2), 0, w-1)
		x1 = clampInt(int(cx+spanPx/2), 0, w-1)
	}

	halfSpan := int(diameterPx/2) + 2
	for y := int(wireY) - halfSpan; y <= int(wireY)+halfSpan; y++ {
		if y < 0 || y >= h {
			continue
		}
		// Coverage of this row by the wire band, softened at the rim.
		dist := math.Abs(float64(y) - wireY)
		cover := diameterPx/2 - dist + 0.5
		if cover <= 0 {
			continue
		}
		if cover > 1 {
			cover = 1
		}
		v := uint8(float64(background) + cover*(float64(wireLevel)-float64(background)))
		c := color.RGBA{R: v, G: v, B: v, A: 255}
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
