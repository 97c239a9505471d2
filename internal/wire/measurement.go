package wire

import (
	"image"

	"github.com/banshee-data/catenary.report/internal/calib"
)

// MeasurementEngine converts a pixel-space wire candidate into a
// physical-unit measurement using the calibration model. It is a pure
// function of its inputs.
type MeasurementEngine struct {
	cal           *calib.Model
	minConfidence float64
}

// NewMeasurementEngine builds a MeasurementEngine. Candidates below
// minConfidence produce measurements with both physical fields absent.
func NewMeasurementEngine(cal *calib.Model, minConfidence float64) *MeasurementEngine {
	return &MeasurementEngine{cal: cal, minConfidence: minConfidence}
}

// Compute derives a Measurement from cand. roiOffsetX/roiOffsetY
// translate ROI-local coordinates into the original frame's pixel
// space before calibration is applied.
func (e *MeasurementEngine) Compute(cand WireCandidate, roiOffsetX, roiOffsetY int) Measurement {
	m := Measurement{
		FrameID:     cand.FrameID,
		TimestampMs: cand.TimestampMs,
		Confidence:  cand.Confidence,
	}
	if cand.Confidence < e.minConfidence {
		return m
	}

	fullCX := cand.CentreX + float64(roiOffsetX)
	fullCY := cand.CentreY + float64(roiOffsetY)

	stagger := e.cal.StaggerFromCentrePx(fullCX)
	m.StaggerMm = &stagger

	if cand.DiameterPx > 0 {
		d := e.cal.PxToMm(cand.DiameterPx)
		m.DiameterMm = &d
	}

	bbox := cand.BBox.Add(image.Pt(roiOffsetX, roiOffsetY))
	m.WireBBox = &bbox
	m.WireCentrePx = &Point2{X: fullCX, Y: fullCY}
	return m
}
