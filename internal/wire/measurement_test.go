package wire

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catenary.report/internal/calib"
)

func testCalibration(t *testing.T) *calib.Model {
	t.Helper()
	m, err := calib.New(10.0, 400, 800, 200, nil)
	require.NoError(t, err)
	return m
}

func candidate(conf float64) WireCandidate {
	return WireCandidate{
		FrameID:     5,
		TimestampMs: 200,
		BBox:        image.Rect(100, 90, 700, 110),
		CentreX:     450,
		CentreY:     100,
		DiameterPx:  130,
		Confidence:  conf,
	}
}

func TestComputeConvertsToPhysicalUnits(t *testing.T) {
	eng := NewMeasurementEngine(testCalibration(t), 0.5)
	m := eng.Compute(candidate(0.9), 0, 0)

	require.True(t, m.Valid())
	// Centre 450 px against track centre 400 at 10 px/mm.
	assert.InDelta(t, 5.0, *m.StaggerMm, 1e-9)
	assert.InDelta(t, 13.0, *m.DiameterMm, 1e-9)
	assert.Equal(t, 0.9, m.Confidence)
	assert.Equal(t, int64(5), m.FrameID)
}

func TestComputeAppliesROIOffset(t *testing.T) {
	eng := NewMeasurementEngine(testCalibration(t), 0.5)
	c := candidate(0.9)
	c.CentreX = 50 // ROI-local
	m := eng.Compute(c, 400, 80)

	// 50 + 400 = 450 full-frame.
	assert.InDelta(t, 5.0, *m.StaggerMm, 1e-9)
	require.NotNil(t, m.WireCentrePx)
	assert.InDelta(t, 450.0, m.WireCentrePx.X, 1e-9)
	assert.InDelta(t, 180.0, m.WireCentrePx.Y, 1e-9)
	require.NotNil(t, m.WireBBox)
	assert.Equal(t, image.Rect(500, 170, 1100, 190), *m.WireBBox)
}

func TestComputeBelowMinConfidence(t *testing.T) {
	eng := NewMeasurementEngine(testCalibration(t), 0.8)
	m := eng.Compute(candidate(0.4), 0, 0)

	assert.Nil(t, m.StaggerMm)
	assert.Nil(t, m.DiameterMm)
	assert.Nil(t, m.WireBBox)
	assert.Nil(t, m.WireCentrePx)
	assert.False(t, m.Valid())
	// Confidence is carried through unchanged.
	assert.Equal(t, 0.4, m.Confidence)
}

func TestComputeZeroDiameterLeavesFieldAbsent(t *testing.T) {
	eng := NewMeasurementEngine(testCalibration(t), 0.5)
	c := candidate(0.9)
	c.DiameterPx = 0
	m := eng.Compute(c, 0, 0)

	assert.NotNil(t, m.StaggerMm)
	assert.Nil(t, m.DiameterMm)
	assert.False(t, m.Valid())
}

func TestComputeLeftOfCentreIsNegative(t *testing.T) {
	eng := NewMeasurementEngine(testCalibration(t), 0.5)
	c := candidate(0.9)
	c.CentreX = 300
	m := eng.Compute(c, 0, 0)

	require.NotNil(t, m.StaggerMm)
	assert.InDelta(t, -10.0, *m.StaggerMm, 1e-9)
}
