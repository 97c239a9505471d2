package wire

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGrayLuma(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 0, G: 255, B: 0, A: 255})

	out := ToGray(img)
	// Rec.601 weights: red ~76, green ~150.
	assert.InDelta(t, 76, int(out.GrayAt(0, 0).Y), 2)
	assert.InDelta(t, 150, int(out.GrayAt(1, 0).Y), 2)
}

func TestToGrayPassthrough(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Pix[5] = 99

	out := ToGray(img)
	assert.Equal(t, uint8(99), out.Pix[5])
}

func TestToGraySubImageIsZeroOrigin(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 10, 10))
	base.SetRGBA(5, 5, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	sub := base.SubImage(image.Rect(4, 4, 8, 8))

	out := ToGray(sub)
	require.Equal(t, image.Pt(0, 0), out.Bounds().Min)
	assert.Equal(t, 4, out.Bounds().Dx())
	assert.InDelta(t, 200, int(out.GrayAt(1, 1).Y), 2)
}

func TestCLAHEPreservesGeometry(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 60))
	out := CLAHE(img, 2.0, 8, 8)
	assert.Equal(t, img.Bounds(), out.Bounds())
}

func TestCLAHEStretchesLowContrast(t *testing.T) {
	// A dim gradient should span a wider range after equalisation.
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Pix[y*img.Stride+x] = uint8(100 + x/4)
		}
	}

	out := CLAHE(img, 4.0, 4, 4)

	lo, hi := uint8(255), uint8(0)
	for _, v := range out.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	assert.Greater(t, int(hi)-int(lo), 16)
}

func TestGaussianBlurUniformIsIdentity(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 180
	}

	out := GaussianBlur(img, 5, 0)
	for i, v := range out.Pix {
		require.Equal(t, uint8(180), v, "pixel %d", i)
	}
}

func TestGaussianBlurSmoothsStep(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 16; x < 32; x++ {
			img.Pix[y*img.Stride+x] = 255
		}
	}

	out := GaussianBlur(img, 5, 0)
	// The step edge gains intermediate values.
	v := out.GrayAt(16, 16).Y
	assert.Greater(t, v, uint8(0))
	assert.Less(t, v, uint8(255))
	// Far from the edge nothing changes.
	assert.Equal(t, uint8(0), out.GrayAt(2, 16).Y)
	assert.Equal(t, uint8(255), out.GrayAt(30, 16).Y)
}

func TestCannyFindsStepEdge(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 32; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Pix[y*img.Stride+x] = 255
		}
	}

	edges := Canny(img, 50, 150)
	require.Equal(t, img.Bounds(), edges.Bounds())

	edgeRows := map[int]int{}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if edges.Pix[y*edges.Stride+x] != 0 {
				edgeRows[y]++
			}
		}
	}
	// All edge pixels hug the transition rows.
	require.NotEmpty(t, edgeRows)
	for y := range edgeRows {
		assert.InDelta(t, 31.5, float64(y), 2.0)
	}
}

func TestCannyBlankImageHasNoEdges(t *testing.T) {
	edges := Canny(image.NewGray(image.Rect(0, 0, 64, 64)), 50, 150)
	for _, v := range edges.Pix {
		require.Equal(t, uint8(0), v)
	}
}

func TestHoughFindsHorizontalLine(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 200, 100))
	for x := 20; x < 180; x++ {
		edges.Pix[50*edges.Stride+x] = 255
	}

	segments := HoughLinesP(edges, HoughParams{
		RhoRes:        1,
		ThetaResDeg:   1,
		Threshold:     20,
		MinLineLength: 50,
		MaxLineGap:    5,
	})

	require.NotEmpty(t, segments)
	longest := segments[0]
	for _, s := range segments[1:] {
		if s.Length() > longest.Length() {
			longest = s
		}
	}
	assert.LessOrEqual(t, longest.AngleDeg(), 3.0)
	assert.InDelta(t, 50, longest.MidY(), 2)
	assert.Greater(t, longest.Length(), 100.0)
}

func TestHoughEmptyEdgeMap(t *testing.T) {
	segments := HoughLinesP(image.NewGray(image.Rect(0, 0, 100, 100)), HoughParams{
		RhoRes: 1, ThetaResDeg: 1, Threshold: 10, MinLineLength: 10, MaxLineGap: 2,
	})
	assert.Empty(t, segments)
}

func TestSegmentGeometry(t *testing.T) {
	s := Segment{X1: 0, Y1: 0, X2: 30, Y2: 40}
	assert.InDelta(t, 50.0, s.Length(), 1e-9)
	assert.InDelta(t, 15.0, s.MidX(), 1e-9)
	assert.InDelta(t, 20.0, s.MidY(), 1e-9)

	// Angles are normalised to [0, 90].
	horizontal := Segment{X1: 10, Y1: 10, X2: 110, Y2: 10}
	assert.InDelta(t, 0.0, horizontal.AngleDeg(), 1e-9)
	vertical := Segment{X1: 10, Y1: 10, X2: 10, Y2: 110}
	assert.InDelta(t, 90.0, vertical.AngleDeg(), 1e-9)
	diag := Segment{X1: 0, Y1: 0, X2: 100, Y2: -100}
	assert.InDelta(t, 45.0, diag.AngleDeg(), 1e-9)
}
