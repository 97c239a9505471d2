// Package calib holds the camera calibration model: the pixel to
// millimetre scale, the track-centre reference used for stagger, and
// optional lens-distortion correction maps.
package calib

import (
	"errors"
	"fmt"
	"image"

	"github.com/banshee-data/catenary.report/internal/monitoring"
)

// ErrInvalidCalibration wraps all calibration construction failures.
var ErrInvalidCalibration = errors.New("invalid calibration")

// Model converts between pixel and physical units and optionally
// undistorts frames. Construct via New or LoadFile; a zero Model is not
// usable.
type Model struct {
	PxPerMm        float64
	TrackCentreXPx float64
	ImageWidthPx   int
	ImageHeightPx  int

	// Precomputed undistortion maps, one source coordinate per
	// destination pixel. Nil when distortion correction is off.
	mapX []float32
	mapY []float32
}

// Intrinsics is the pinhole camera matrix plus the radial/tangential
// distortion coefficients used to build the undistortion maps.
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
	K1, K2 float64
	P1, P2 float64
	K3     float64
}

// New builds a Model. PxPerMm must be positive. When intr is non-nil
// the undistortion maps are precomputed once for the given image size.
func New(pxPerMm, trackCentreXPx float64, widthPx, heightPx int, intr *Intrinsics) (*Model, error) {
	if pxPerMm <= 0 {
		return nil, fmt.Errorf("%w: px_per_mm must be positive, got %g", ErrInvalidCalibration, pxPerMm)
	}
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrInvalidCalibration, widthPx, heightPx)
	}
	m := &Model{
		PxPerMm:        pxPerMm,
		TrackCentreXPx: trackCentreXPx,
		ImageWidthPx:   widthPx,
		ImageHeightPx:  heightPx,
	}
	if intr != nil {
		m.buildUndistortMaps(*intr)
	}
	return m, nil
}

// PxToMm converts a pixel distance to millimetres.
func (m *Model) PxToMm(px float64) float64 { return px / m.PxPerMm }

// MmToPx converts a millimetre distance to pixels. Exact inverse of
// PxToMm for any finite input.
func (m *Model) MmToPx(mm float64) float64 { return mm * m.PxPerMm }

// StaggerFromCentrePx returns the signed stagger in millimetres for a
// wire centre at the given full-frame x coordinate. Positive means
// right of the track centre.
func (m *Model) StaggerFromCentrePx(x float64) float64 {
	return m.PxToMm(x - m.TrackCentreXPx)
}

// Undistorts reports whether the model carries distortion maps.
func (m *Model) Undistorts() bool { return m.mapX != nil }

// Undistort applies the precomputed lens correction maps to img. When
// no maps were built the input is returned unchanged.
func (m *Model) Undistort(img *image.Gray) *image.Gray {
	if m.mapX == nil {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			// Maps are built for the full calibrated frame; clamp
			// in case the input is a crop of different size.
			mi := v*m.ImageWidthPx + u
			if v >= m.ImageHeightPx || u >= m.ImageWidthPx {
				out.SetGray(u, v, img.GrayAt(b.Min.X+u, b.Min.Y+v))
				continue
			}
			sx, sy := float64(m.mapX[mi]), float64(m.mapY[mi])
			out.Pix[v*out.Stride+u] = bilinearGray(img, sx, sy)
		}
	}
	return out
}

// buildUndistortMaps precomputes, for every destination pixel, the
// distorted source coordinate to sample from.
func (m *Model) buildUndistortMaps(in Intrinsics) {
	w, h := m.ImageWidthPx, m.ImageHeightPx
	m.mapX = make([]float32, w*h)
	m.mapY = make([]float32, w*h)
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			x := (float64(u) - in.Cx) / in.Fx
			y := (float64(v) - in.Cy) / in.Fy
			r2 := x*x + y*y
			radial := 1 + in.K1*r2 + in.K2*r2*r2 + in.K3*r2*r2*r2
			xd := x*radial + 2*in.P1*x*y + in.P2*(r2+2*x*x)
			yd := y*radial + in.P1*(r2+2*y*y) + 2*in.P2*x*y
			i := v*w + u
			m.mapX[i] = float32(in.Fx*xd + in.Cx)
			m.mapY[i] = float32(in.Fy*yd + in.Cy)
		}
	}
	monitoring.Logf("calib: undistortion maps built for %dx%d", w, h)
}

func bilinearGray(img *image.Gray, x, y float64) uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if x < 0 || y < 0 || x > float64(w-1) || y > float64(h-1) {
		return 0
	}
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 > w-1 {
		x1 = w - 1
	}
	if y1 > h-1 {
		y1 = h - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)
	p00 := float64(img.Pix[y0*img.Stride+x0])
	p10 := float64(img.Pix[y0*img.Stride+x1])
	p01 := float64(img.Pix[y1*img.Stride+x0])
	p11 := float64(img.Pix[y1*img.Stride+x1])
	top := p00 + (p10-p00)*fx
	bot := p01 + (p11-p01)*fx
	return uint8(top + (bot-top)*fy + 0.5)
}
