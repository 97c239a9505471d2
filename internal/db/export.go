package db

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/catenary.report/internal/monitoring"
)

// SessionSummary is the derived, read-only view of a completed
// session.
type SessionSummary struct {
	Session struct {
		SessionID    string   `json:"session_id"`
		Source       string   `json:"source"`
		StartedAtMs  float64  `json:"started_at_ms"`
		EndedAtMs    *float64 `json:"ended_at_ms"`
		TotalFrames  int64    `json:"total_frames"`
		AnomalyCount int64    `json:"anomaly_count"`
		Notes        string   `json:"notes"`
	} `json:"session"`

	Detection struct {
		FramesWithMeasurement int64   `json:"frames_with_measurement"`
		DetectionRatePct      float64 `json:"detection_rate_pct"`
		AvgConfidence         float64 `json:"avg_confidence"`
	} `json:"detection"`

	StaggerMm  RangeStats `json:"stagger_mm"`
	DiameterMm RangeStats `json:"diameter_mm"`

	AnomalyBreakdown []AnomalyGroup `json:"anomaly_breakdown"`
}

// RangeStats aggregates one measured quantity over a session. The
// percentiles describe the magnitude distribution.
type RangeStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
}

// AnomalyGroup is one (type, severity) bucket of the anomaly
// breakdown.
type AnomalyGroup struct {
	Type     string `json:"anomaly_type"`
	Severity string `json:"severity"`
	Count    int64  `json:"count"`
}

// Exporter reads a completed session store and produces the summary
// and flat-file export artefacts.
type Exporter struct {
	store *Store
}

// NewExporter opens the session database at path for reading.
func NewExporter(path string) (*Exporter, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("session database: %w", err)
	}
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	return &Exporter{store: store}, nil
}

// Close releases the underlying store.
func (e *Exporter) Close() error { return e.store.Close() }

// Summarise computes the session summary from the store.
func (e *Exporter) Summarise() (*SessionSummary, error) {
	var s SessionSummary

	row := e.store.QueryRow(`SELECT session_id, source, started_at_ms, ended_at_ms,
		total_frames, anomaly_count, notes FROM sessions LIMIT 1`)
	var endedAt sql.NullFloat64
	if err := row.Scan(&s.Session.SessionID, &s.Session.Source, &s.Session.StartedAtMs,
		&endedAt, &s.Session.TotalFrames, &s.Session.AnomalyCount, &s.Session.Notes); err != nil {
		return nil, fmt.Errorf("read session row: %w", err)
	}
	if endedAt.Valid {
		s.Session.EndedAtMs = &endedAt.Float64
	}

	var totalRows, withStagger int64
	var avgConf sql.NullFloat64
	if err := e.store.QueryRow(`SELECT COUNT(*), COUNT(stagger_mm), AVG(confidence)
		FROM measurements`).Scan(&totalRows, &withStagger, &avgConf); err != nil {
		return nil, fmt.Errorf("aggregate measurements: %w", err)
	}
	s.Detection.FramesWithMeasurement = withStagger
	if totalRows > 0 {
		s.Detection.DetectionRatePct = round2(float64(withStagger) / float64(totalRows) * 100)
	}
	s.Detection.AvgConfidence = round4(avgConf.Float64)

	stagger, err := e.column(`SELECT stagger_mm FROM measurements WHERE stagger_mm IS NOT NULL ORDER BY frame_id`)
	if err != nil {
		return nil, err
	}
	diameter, err := e.column(`SELECT diameter_mm FROM measurements WHERE diameter_mm IS NOT NULL ORDER BY frame_id`)
	if err != nil {
		return nil, err
	}
	s.StaggerMm = rangeStats(stagger)
	s.DiameterMm = rangeStats(diameter)

	rows, err := e.store.Query(`SELECT anomaly_type, severity, COUNT(*) AS cnt
		FROM anomalies GROUP BY anomaly_type, severity ORDER BY cnt DESC`)
	if err != nil {
		return nil, fmt.Errorf("aggregate anomalies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g AnomalyGroup
		if err := rows.Scan(&g.Type, &g.Severity, &g.Count); err != nil {
			return nil, err
		}
		s.AnomalyBreakdown = append(s.AnomalyBreakdown, g)
	}
	return &s, rows.Err()
}

// WriteSummaryJSON writes the summary to path as indented JSON.
func (e *Exporter) WriteSummaryJSON(path string) error {
	summary, err := e.Summarise()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	monitoring.Logf("export: summary written to %s", path)
	return nil
}

// ExportCSV writes the full measurement table, joined with anomaly
// flags, to path.
func (e *Exporter) ExportCSV(path string) error {
	rows, err := e.store.Query(`
		SELECT
			m.frame_id,
			m.timestamp_ms,
			m.stagger_mm,
			m.diameter_mm,
			m.confidence,
			m.wire_bbox,
			GROUP_CONCAT(a.anomaly_type, ';') AS anomaly_types,
			GROUP_CONCAT(a.severity, ';')     AS anomaly_severities
		FROM measurements m
		LEFT JOIN anomalies a
			ON m.session_id = a.session_id AND m.frame_id = a.frame_id
		GROUP BY m.frame_id
		ORDER BY m.frame_id`)
	if err != nil {
		return fmt.Errorf("query export rows: %w", err)
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"frame_id", "timestamp_ms", "stagger_mm", "diameter_mm",
		"confidence", "wire_bbox", "anomaly_types", "anomaly_severities"}); err != nil {
		return err
	}

	count := 0
	for rows.Next() {
		var frameID int64
		var ts float64
		var stagger, diameter, conf sql.NullFloat64
		var bbox, types, sevs sql.NullString
		if err := rows.Scan(&frameID, &ts, &stagger, &diameter, &conf, &bbox, &types, &sevs); err != nil {
			return err
		}
		rec := []string{
			fmt.Sprintf("%d", frameID),
			fmt.Sprintf("%.3f", ts),
			fmtNull(stagger, "%.4f"),
			fmtNull(diameter, "%.4f"),
			fmtNull(conf, "%.4f"),
			strings.TrimSpace(bbox.String),
			types.String,
			sevs.String,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Flush()
	monitoring.Logf("export: %d rows written to %s", count, path)
	return w.Error()
}

// FrameSample is one measurement row of the per-frame series.
type FrameSample struct {
	FrameID     int64
	TimestampMs float64
	StaggerMm   *float64
	DiameterMm  *float64
	Confidence  float64
}

// Series returns every measurement row in frame order, for plotting
// and report generation.
func (e *Exporter) Series() ([]FrameSample, error) {
	rows, err := e.store.Query(`SELECT frame_id, timestamp_ms, stagger_mm, diameter_mm, confidence
		FROM measurements ORDER BY frame_id`)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	var out []FrameSample
	for rows.Next() {
		var s FrameSample
		var stagger, diameter sql.NullFloat64
		if err := rows.Scan(&s.FrameID, &s.TimestampMs, &stagger, &diameter, &s.Confidence); err != nil {
			return nil, err
		}
		if stagger.Valid {
			s.StaggerMm = &stagger.Float64
		}
		if diameter.Valid {
			s.DiameterMm = &diameter.Float64
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (e *Exporter) column(query string) ([]float64, error) {
	rows, err := e.store.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func rangeStats(vals []float64) RangeStats {
	if len(vals) == 0 {
		return RangeStats{}
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return RangeStats{
		Avg: round3(stat.Mean(sorted, nil)),
		Min: round3(sorted[0]),
		Max: round3(sorted[len(sorted)-1]),
		P50: round3(stat.Quantile(0.50, stat.Empirical, sorted, nil)),
		P95: round3(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
	}
}

func fmtNull(v sql.NullFloat64, format string) string {
	if !v.Valid {
		return ""
	}
	return fmt.Sprintf(format, v.Float64)
}

func round2(v float64) float64 { return roundN(v, 100) }
func round3(v float64) float64 { return roundN(v, 1000) }
func round4(v float64) float64 { return roundN(v, 10000) }

func roundN(v float64, scale float64) float64 {
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
