package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/catenary.report/internal/db"
	"github.com/banshee-data/catenary.report/internal/wire"
)

// The store path must be captured before Stop closes the store, which
// clears it; this covers the full run-then-export sequence.
func TestExportSessionFromFinishedRun(t *testing.T) {
	dir := t.TempDir()
	session := db.NewSessionLogger(dir, "test", "")
	info, err := session.Start()
	require.NoError(t, err)

	stagger, diameter := 5.5, 13.2
	for i := int64(0); i < 3; i++ {
		m := wire.Measurement{
			FrameID:     i,
			TimestampMs: float64(i) * 40,
			StaggerMm:   &stagger,
			DiameterMm:  &diameter,
			Confidence:  0.9,
		}
		require.NoError(t, session.LogMeasurement(&m))
	}

	storePath := session.StorePath()
	require.NotEmpty(t, storePath)

	_, err = session.Stop()
	require.NoError(t, err)
	assert.Empty(t, session.StorePath(), "path is cleared once the store closes")

	outDir := filepath.Join(dir, "export")
	require.NoError(t, exportSession(storePath, outDir, info.SessionID))

	raw, err := os.ReadFile(filepath.Join(outDir, info.SessionID+"_summary.json"))
	require.NoError(t, err)
	var summary db.SessionSummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, int64(3), summary.Session.TotalFrames)

	_, err = os.Stat(filepath.Join(outDir, info.SessionID+"_export.csv"))
	assert.NoError(t, err)
}

func TestExportSessionMissingStore(t *testing.T) {
	dir := t.TempDir()
	err := exportSession("", filepath.Join(dir, "out"), "sess")
	require.Error(t, err)
}
