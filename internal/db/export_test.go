package db

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catenary.report/internal/wire"
)

// seedSession writes a small session with a mix of valid and invalid
// frames and returns the path of the closed store.
func seedSession(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	l := NewSessionLogger(dir, "seed", "exporter test")
	info, err := l.Start()
	require.NoError(t, err)

	staggers := []float64{-10, 0, 5, 20}
	for i, v := range staggers {
		stagger := v
		diameter := 12.0 + float64(i)
		m := wire.Measurement{
			FrameID:     int64(i),
			TimestampMs: float64(i) * 40,
			StaggerMm:   &stagger,
			DiameterMm:  &diameter,
			Confidence:  0.9,
		}
		require.NoError(t, l.LogMeasurement(&m))
	}
	// One low-confidence frame with no measurement.
	invalid := wire.Measurement{FrameID: 4, TimestampMs: 160, Confidence: 0.2}
	require.NoError(t, l.LogMeasurement(&invalid))

	a := sampleAnomaly(3)
	require.NoError(t, l.LogAnomaly(&a))
	b := wire.Anomaly{
		FrameID: 3, TimestampMs: 120,
		Type: wire.AnomalyDiameterHigh, Value: 15.0, Threshold: 15.0,
		Severity: wire.SeverityWarning, Message: "diameter high",
	}
	require.NoError(t, l.LogAnomaly(&b))

	_, err = l.Stop()
	require.NoError(t, err)
	return filepath.Join(dir, info.SessionID+".sqlite")
}

func TestSummariseComputesStats(t *testing.T) {
	e, err := NewExporter(seedSession(t))
	require.NoError(t, err)
	defer e.Close()

	s, err := e.Summarise()
	require.NoError(t, err)

	assert.Equal(t, "seed", s.Session.Source)
	assert.Equal(t, int64(5), s.Session.TotalFrames)
	assert.Equal(t, int64(2), s.Session.AnomalyCount)
	require.NotNil(t, s.Session.EndedAtMs)

	assert.Equal(t, int64(4), s.Detection.FramesWithMeasurement)
	assert.InDelta(t, 80.0, s.Detection.DetectionRatePct, 1e-9)
	assert.InDelta(t, 0.76, s.Detection.AvgConfidence, 1e-3)

	assert.InDelta(t, 3.75, s.StaggerMm.Avg, 1e-9)
	assert.InDelta(t, -10.0, s.StaggerMm.Min, 1e-9)
	assert.InDelta(t, 20.0, s.StaggerMm.Max, 1e-9)
	assert.InDelta(t, 13.5, s.DiameterMm.Avg, 1e-9)

	require.Len(t, s.AnomalyBreakdown, 2)
	for _, g := range s.AnomalyBreakdown {
		assert.Equal(t, int64(1), g.Count)
	}
}

func TestSeriesReturnsFrameOrder(t *testing.T) {
	e, err := NewExporter(seedSession(t))
	require.NoError(t, err)
	defer e.Close()

	series, err := e.Series()
	require.NoError(t, err)
	require.Len(t, series, 5)

	for i, s := range series {
		assert.Equal(t, int64(i), s.FrameID)
	}
	require.NotNil(t, series[0].StaggerMm)
	assert.InDelta(t, -10.0, *series[0].StaggerMm, 1e-9)
	assert.Nil(t, series[4].StaggerMm)
	assert.Nil(t, series[4].DiameterMm)
}

func TestWriteSummaryJSON(t *testing.T) {
	e, err := NewExporter(seedSession(t))
	require.NoError(t, err)
	defer e.Close()

	out := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, e.WriteSummaryJSON(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var s SessionSummary
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, int64(5), s.Session.TotalFrames)
}

func TestExportCSVJoinsAnomalies(t *testing.T) {
	e, err := NewExporter(seedSession(t))
	require.NoError(t, err)
	defer e.Close()

	out := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, e.ExportCSV(out))

	rows := readCsv(t, out)
	require.Len(t, rows, 6) // header + 5 frames
	assert.Equal(t, "frame_id", rows[0][0])

	// Frame 3 carries both anomalies, semicolon joined.
	assert.Equal(t, "3", rows[4][0])
	assert.Contains(t, rows[4][6], ";")
	// The invalid frame exports with empty optional columns.
	assert.Equal(t, "", rows[5][2])
	assert.Equal(t, "", rows[5][3])
}

func TestNewExporterMissingFile(t *testing.T) {
	_, err := NewExporter(filepath.Join(t.TempDir(), "nope.sqlite"))
	assert.Error(t, err)
}

func TestRangeStatsEmpty(t *testing.T) {
	s := rangeStats(nil)
	assert.Zero(t, s.Avg)
	assert.Zero(t, s.P95)
}
