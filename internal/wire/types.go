// Package wire implements the contact-wire measurement core: frame
// pre-processing, classical-vision wire detection, pixel-to-millimetre
// measurement and rule-based anomaly evaluation.
package wire

import (
	"fmt"
	"image"
)

// RawFrame is a single frame as delivered by a frame source.
// Frames are immutable once handed to the pipeline; frame IDs are
// strictly increasing within a session.
type RawFrame struct {
	FrameID     int64
	TimestampMs float64
	Image       image.Image
	Source      string
}

// ProcessedFrame is the analysis-ready form of a RawFrame: ROI-cropped,
// single channel, contrast enhanced and blurred. The ROI offsets locate
// the crop within the original frame so downstream stages can translate
// back to full-frame pixel coordinates.
type ProcessedFrame struct {
	Raw        *RawFrame
	ROIImage   *image.Gray
	ROIOffsetX int
	ROIOffsetY int
}

// WireCandidate is the detector output in ROI-local pixel space.
// Confidence zero is the "no wire found" sentinel, not an error.
type WireCandidate struct {
	FrameID     int64
	TimestampMs float64

	// Bounding box of the wire, ROI-local.
	BBox image.Rectangle

	// Centre pixel of the elected wire segment, ROI-local.
	CentreX float64
	CentreY float64

	// Sub-pixel diameter estimate.
	DiameterPx float64

	// Confidence in [0,1].
	Confidence float64

	// Optional binary wire mask, ROI-local. Nil unless the debug
	// detector produced one.
	Mask *image.Gray
}

// Point2 is a full-frame pixel coordinate.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Measurement is a physical-unit measurement derived from a candidate
// and the calibration model. StaggerMm and DiameterMm are nil exactly
// when the candidate confidence was below the configured minimum
// (DiameterMm additionally when the detector produced no diameter).
// WireBBox and WireCentrePx, when present, are in original-frame pixel
// coordinates with the ROI offset already applied.
type Measurement struct {
	FrameID     int64
	TimestampMs float64

	StaggerMm  *float64
	DiameterMm *float64
	Confidence float64

	WireBBox     *image.Rectangle
	WireCentrePx *Point2
}

// Valid reports whether both physical fields are present.
func (m *Measurement) Valid() bool {
	return m.StaggerMm != nil && m.DiameterMm != nil
}

// Severity of an anomaly.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// AnomalyType identifies which rule produced an anomaly.
type AnomalyType string

const (
	AnomalyStaggerRight AnomalyType = "STAGGER_RIGHT"
	AnomalyStaggerLeft  AnomalyType = "STAGGER_LEFT"
	AnomalyDiameterLow  AnomalyType = "DIAMETER_LOW"
	AnomalyDiameterHigh AnomalyType = "DIAMETER_HIGH"
)

// Anomaly is a threshold violation produced by the rules engine.
// Immutable value; zero or more per measurement.
type Anomaly struct {
	FrameID     int64
	TimestampMs float64
	Type        AnomalyType
	Value       float64
	Threshold   float64
	Severity    Severity
	Message     string
}

func (a *Anomaly) String() string {
	return fmt.Sprintf("frame %d: %s %s value=%.2f threshold=%.2f",
		a.FrameID, a.Severity, a.Type, a.Value, a.Threshold)
}

// SessionInfo is the running metadata for one bounded processing run.
// Owned exclusively by the session logger for its lifetime.
type SessionInfo struct {
	SessionID    string
	Source       string
	StartedAtMs  float64
	EndedAtMs    *float64
	TotalFrames  int64
	AnomalyCount int64
	Notes        string
}
