package wire

import (
	"fmt"
	"math"

	"github.com/banshee-data/catenary.report/internal/monitoring"
)

// StaggerThresholds are the two-tier magnitude limits for stagger.
type StaggerThresholds struct {
	WarningMm  float64
	CriticalMm float64
}

// DiameterThresholds bound the wire diameter from both sides, each
// side with its own warning and critical tier.
type DiameterThresholds struct {
	MinWarningMm  float64
	MinCriticalMm float64
	MaxWarningMm  float64
	MaxCriticalMm float64
}

// Thresholds is the full, pre-resolved rule set.
type Thresholds struct {
	Stagger  StaggerThresholds
	Diameter DiameterThresholds
}

// RulesEngine evaluates measurements against fixed thresholds. It is
// stateless and safe for concurrent use.
type RulesEngine struct {
	t Thresholds
}

// NewRulesEngine builds a RulesEngine over t.
func NewRulesEngine(t Thresholds) *RulesEngine {
	return &RulesEngine{t: t}
}

// Evaluate returns every threshold violation in m, stagger anomalies
// first, then diameter. Absent optional fields skip their checks
// entirely. All comparisons are boundary-inclusive and critical takes
// precedence over warning within a check.
func (r *RulesEngine) Evaluate(m *Measurement) []Anomaly {
	var out []Anomaly
	if m.StaggerMm != nil {
		out = append(out, r.checkStagger(m)...)
	}
	if m.DiameterMm != nil {
		out = append(out, r.checkDiameter(m)...)
	}
	if len(out) > 0 {
		monitoring.Logf("rules: frame %d: %d anomaly(ies)", m.FrameID, len(out))
	}
	return out
}

// checkStagger emits at most one anomaly: critical if the magnitude
// reaches the critical limit, else warning if it reaches the warning
// limit. The reported threshold is signed to match the measured
// direction.
func (r *RulesEngine) checkStagger(m *Measurement) []Anomaly {
	val := *m.StaggerMm
	t := r.t.Stagger
	dir := AnomalyStaggerRight
	word := "RIGHT"
	sign := 1.0
	if val < 0 {
		dir = AnomalyStaggerLeft
		word = "LEFT"
		sign = -1.0
	}

	switch {
	case math.Abs(val) >= t.CriticalMm:
		return []Anomaly{{
			FrameID:     m.FrameID,
			TimestampMs: m.TimestampMs,
			Type:        dir,
			Value:       val,
			Threshold:   sign * t.CriticalMm,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("Stagger %s: %.1f mm exceeds CRITICAL limit ±%.1f mm", word, val, t.CriticalMm),
		}}
	case math.Abs(val) >= t.WarningMm:
		return []Anomaly{{
			FrameID:     m.FrameID,
			TimestampMs: m.TimestampMs,
			Type:        dir,
			Value:       val,
			Threshold:   sign * t.WarningMm,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("Stagger %s: %.1f mm exceeds WARNING limit ±%.1f mm", word, val, t.WarningMm),
		}}
	}
	return nil
}

// checkDiameter evaluates the low and high bounds independently; in
// practice the ranges do not overlap but the evaluator does not assume
// that.
func (r *RulesEngine) checkDiameter(m *Measurement) []Anomaly {
	val := *m.DiameterMm
	t := r.t.Diameter
	var out []Anomaly

	switch {
	case val <= t.MinCriticalMm:
		out = append(out, Anomaly{
			FrameID:     m.FrameID,
			TimestampMs: m.TimestampMs,
			Type:        AnomalyDiameterLow,
			Value:       val,
			Threshold:   t.MinCriticalMm,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("Diameter %.2f mm below CRITICAL minimum %.2f mm", val, t.MinCriticalMm),
		})
	case val <= t.MinWarningMm:
		out = append(out, Anomaly{
			FrameID:     m.FrameID,
			TimestampMs: m.TimestampMs,
			Type:        AnomalyDiameterLow,
			Value:       val,
			Threshold:   t.MinWarningMm,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("Diameter %.2f mm below WARNING minimum %.2f mm", val, t.MinWarningMm),
		})
	}

	switch {
	case val >= t.MaxCriticalMm:
		out = append(out, Anomaly{
			FrameID:     m.FrameID,
			TimestampMs: m.TimestampMs,
			Type:        AnomalyDiameterHigh,
			Value:       val,
			Threshold:   t.MaxCriticalMm,
			Severity:    SeverityCritical,
			Message:     fmt.Sprintf("Diameter %.2f mm above CRITICAL maximum %.2f mm", val, t.MaxCriticalMm),
		})
	case val >= t.MaxWarningMm:
		out = append(out, Anomaly{
			FrameID:     m.FrameID,
			TimestampMs: m.TimestampMs,
			Type:        AnomalyDiameterHigh,
			Value:       val,
			Threshold:   t.MaxWarningMm,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("Diameter %.2f mm above WARNING maximum %.2f mm", val, t.MaxWarningMm),
		})
	}
	return out
}
