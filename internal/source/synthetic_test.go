package source

import (
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayAt(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

func TestSyntheticFrameCountAndEOF(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Frames = 3
	cfg.Width = 64
	cfg.Height = 48
	cfg.WireCentreX = 32
	cfg.WireY = 24

	s := NewSynthetic(cfg)
	require.NoError(t, s.Open())

	for i := int64(0); i < 3; i++ {
		f, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, i, f.FrameID)
		assert.Equal(t, "synthetic", f.Source)
	}
	_, err := s.Next()
	assert.ErrorIs(t, err, io.EOF)

	// Open rewinds the sequence.
	require.NoError(t, s.Open())
	f, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.FrameID)
}

func TestSyntheticTimestampsFollowFPS(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Frames = 4
	cfg.Width = 32
	cfg.Height = 32
	cfg.FPS = 25

	s := NewSynthetic(cfg)
	require.NoError(t, s.Open())
	for i := 0; i < 4; i++ {
		f, err := s.Next()
		require.NoError(t, err)
		assert.InDelta(t, float64(i)*40.0, f.TimestampMs, 1e-9)
	}
}

func TestSyntheticDriftMovesWire(t *testing.T) {
	cfg := SyntheticConfig{
		Frames: 2, Width: 200, Height: 100, FPS: 25,
		WireCentreX: 50, WireY: 50, WireDiameterPx: 6, WireSpanPx: 40,
		DriftXPerFrame: 30, Background: 200, WireLevel: 30,
	}
	s := NewSynthetic(cfg)
	require.NoError(t, s.Open())

	first, err := s.Next()
	require.NoError(t, err)
	second, err := s.Next()
	require.NoError(t, err)

	// Frame 0 wire spans x 30..70, frame 1 spans 60..100.
	assert.Less(t, grayAt(first.Image, 50, 50), uint8(60))
	assert.Greater(t, grayAt(first.Image, 100, 50), uint8(150))
	assert.Less(t, grayAt(second.Image, 80, 50), uint8(60))
	assert.Greater(t, grayAt(second.Image, 30, 50), uint8(150))
}

func TestRenderWireFrameGeometry(t *testing.T) {
	img := RenderWireFrame(100, 60, 50, 30, 8, 200, 30)

	assert.Equal(t, image.Rect(0, 0, 100, 60), img.Bounds())
	// Full width: the wire is dark at both edges of the frame row.
	assert.Less(t, grayAt(img, 0, 30), uint8(60))
	assert.Less(t, grayAt(img, 99, 30), uint8(60))
	// Background well clear of the wire.
	assert.Equal(t, uint8(200), grayAt(img, 50, 5))
	// The rim one pixel past the band is softened, not hard.
	rim := grayAt(img, 50, 34)
	assert.Greater(t, rim, grayAt(img, 50, 30))
}

func TestRenderWireSpanBoundsExtent(t *testing.T) {
	img := RenderWireSpan(200, 100, 100, 50, 6, 60, 200, 30)

	// Inside the span the wire is dark, outside it is background.
	assert.Less(t, grayAt(img, 100, 50), uint8(60))
	assert.Less(t, grayAt(img, 75, 50), uint8(60))
	assert.Equal(t, uint8(200), grayAt(img, 60, 50))
	assert.Equal(t, uint8(200), grayAt(img, 140, 50))
}

func TestRenderWireSpanClampsToFrame(t *testing.T) {
	// Centre near the left edge; the span must clip, not panic.
	img := RenderWireSpan(100, 60, 5, 30, 6, 60, 200, 30)
	assert.Less(t, grayAt(img, 0, 30), uint8(60))
	assert.Equal(t, uint8(200), grayAt(img, 60, 30))
}
