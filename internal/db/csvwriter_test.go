package db

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catenary.report/internal/wire"
)

func readCsv(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCsvWriterHeaderAndRow(t *testing.T) {
	dir := t.TempDir()
	cw, err := NewCsvWriter(dir, "sess1", 100)
	require.NoError(t, err)

	m := sampleMeasurement(3)
	require.NoError(t, cw.Write(&m, []wire.Anomaly{sampleAnomaly(3)}))
	require.NoError(t, cw.Close())

	rows := readCsv(t, filepath.Join(dir, "sess1.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])

	row := rows[1]
	assert.Equal(t, "sess1", row[0])
	assert.Equal(t, "3", row[1])
	assert.Equal(t, "120.000", row[2])
	assert.Equal(t, "5.5000", row[3])
	assert.Equal(t, "13.2000", row[4])
	assert.Equal(t, "0.9200", row[5])
	assert.Equal(t, "STAGGER_RIGHT", row[6])
	assert.Equal(t, "WARNING", row[7])
}

func TestCsvWriterAbsentOptionalsAreEmpty(t *testing.T) {
	dir := t.TempDir()
	cw, err := NewCsvWriter(dir, "sess1", 100)
	require.NoError(t, err)

	m := wire.Measurement{FrameID: 1, TimestampMs: 40, Confidence: 0.1}
	require.NoError(t, cw.Write(&m, nil))
	require.NoError(t, cw.Close())

	rows := readCsv(t, filepath.Join(dir, "sess1.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[1][3])
	assert.Equal(t, "", rows[1][4])
	assert.Equal(t, "", rows[1][6])
	assert.Equal(t, "", rows[1][7])
}

func TestCsvWriterJoinsMultipleAnomalies(t *testing.T) {
	dir := t.TempDir()
	cw, err := NewCsvWriter(dir, "sess1", 100)
	require.NoError(t, err)

	m := sampleMeasurement(1)
	anomalies := []wire.Anomaly{
		sampleAnomaly(1),
		{FrameID: 1, Type: wire.AnomalyDiameterLow, Severity: wire.SeverityCritical},
	}
	require.NoError(t, cw.Write(&m, anomalies))
	require.NoError(t, cw.Close())

	rows := readCsv(t, filepath.Join(dir, "sess1.csv"))
	assert.Equal(t, "STAGGER_RIGHT;DIAMETER_LOW", rows[1][6])
	assert.Equal(t, "WARNING;CRITICAL", rows[1][7])
}

func TestCsvWriterRollsAtMaxRows(t *testing.T) {
	dir := t.TempDir()
	cw, err := NewCsvWriter(dir, "sess1", 3)
	require.NoError(t, err)

	for i := int64(0); i < 5; i++ {
		m := sampleMeasurement(i)
		require.NoError(t, cw.Write(&m, nil))
	}
	require.NoError(t, cw.Close())

	first := readCsv(t, filepath.Join(dir, "sess1.csv"))
	require.Len(t, first, 4) // header + 3 rows
	assert.Equal(t, "0", first[1][1])
	assert.Equal(t, "2", first[3][1])

	second := readCsv(t, filepath.Join(dir, "sess1_part001.csv"))
	require.Len(t, second, 3) // header + 2 rows
	assert.Equal(t, csvHeader, second[0])
	assert.Equal(t, "3", second[1][1])
	assert.Equal(t, "4", second[2][1])
}

func TestCsvWriterCloseIsIdempotent(t *testing.T) {
	cw, err := NewCsvWriter(t.TempDir(), "sess1", 100)
	require.NoError(t, err)
	require.NoError(t, cw.Close())
	assert.NoError(t, cw.Close())

	// Writes after close are silently ignored.
	m := sampleMeasurement(1)
	assert.NoError(t, cw.Write(&m, nil))
}

func TestCsvWriterBadDirectory(t *testing.T) {
	_, err := NewCsvWriter(filepath.Join(t.TempDir(), "missing"), "sess1", 100)
	assert.Error(t, err)
}
