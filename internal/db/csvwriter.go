package db

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/catenary.report/internal/monitoring"
	"github.com/banshee-data/catenary.report/internal/wire"
)

var csvHeader = []string{
	"session_id", "frame_id", "timestamp_ms", "stagger_mm",
	"diameter_mm", "confidence", "anomaly_types", "anomaly_severities",
}

// CsvWriter mirrors measurements into rolling flat files. When the row
// count reaches the configured maximum the current file is closed and
// a `_partNNN` successor opened; callers observe no interruption.
type CsvWriter struct {
	dir       string
	sessionID string
	maxRows   int

	rowCount  int
	fileIndex int
	file      *os.File
	w         *csv.Writer
}

// NewCsvWriter opens the first CSV file (with header) for sessionID
// under dir.
func NewCsvWriter(dir, sessionID string, maxRows int) (*CsvWriter, error) {
	if maxRows <= 0 {
		maxRows = 100000
	}
	cw := &CsvWriter{dir: dir, sessionID: sessionID, maxRows: maxRows}
	if err := cw.openNext(); err != nil {
		return nil, err
	}
	return cw, nil
}

// Write appends one measurement row. Absent optional values render as
// empty strings; anomaly types and severities are semicolon-joined.
func (cw *CsvWriter) Write(m *wire.Measurement, anomalies []wire.Anomaly) error {
	if cw.w == nil {
		return nil
	}
	types := make([]string, len(anomalies))
	sevs := make([]string, len(anomalies))
	for i, a := range anomalies {
		types[i] = string(a.Type)
		sevs[i] = string(a.Severity)
	}
	row := []string{
		cw.sessionID,
		fmt.Sprintf("%d", m.FrameID),
		fmt.Sprintf("%.3f", m.TimestampMs),
		fmtOpt(m.StaggerMm),
		fmtOpt(m.DiameterMm),
		fmt.Sprintf("%.4f", m.Confidence),
		strings.Join(types, ";"),
		strings.Join(sevs, ";"),
	}
	if err := cw.w.Write(row); err != nil {
		return fmt.Errorf("csv write frame %d: %w", m.FrameID, err)
	}
	cw.rowCount++

	if cw.rowCount >= cw.maxRows {
		if err := cw.Close(); err != nil {
			return err
		}
		cw.fileIndex++
		cw.rowCount = 0
		return cw.openNext()
	}
	return nil
}

// Flush pushes buffered rows to disk. Safe to call repeatedly.
func (cw *CsvWriter) Flush() error {
	if cw.w == nil {
		return nil
	}
	cw.w.Flush()
	return cw.w.Error()
}

// Close flushes and closes the current file. Idempotent.
func (cw *CsvWriter) Close() error {
	if cw.file == nil {
		return nil
	}
	cw.w.Flush()
	err := cw.w.Error()
	if cerr := cw.file.Close(); err == nil {
		err = cerr
	}
	cw.file = nil
	cw.w = nil
	monitoring.Logf("csv: closed part %d for session %s", cw.fileIndex, cw.sessionID)
	return err
}

func (cw *CsvWriter) openNext() error {
	suffix := ""
	if cw.fileIndex > 0 {
		suffix = fmt.Sprintf("_part%03d", cw.fileIndex)
	}
	path := filepath.Join(cw.dir, cw.sessionID+suffix+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}
	cw.file = f
	cw.w = csv.NewWriter(f)
	if err := cw.w.Write(csvHeader); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	monitoring.Logf("csv: opened %s", path)
	return nil
}

func fmtOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.4f", *v)
}
