// Package api serves the live monitoring surface for a running
// inspection session: the latest measurement, session statistics and
// debug charts. It observes the pipeline through the data bus and
// never sits on the frame-processing path.
package api

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/catenary.report/internal/bus"
	"github.com/banshee-data/catenary.report/internal/config"
	"github.com/banshee-data/catenary.report/internal/db"
	"github.com/banshee-data/catenary.report/internal/httputil"
	"github.com/banshee-data/catenary.report/internal/units"
	"github.com/banshee-data/catenary.report/internal/version"
	"github.com/banshee-data/catenary.report/internal/wire"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// historySize bounds the in-memory sample ring used by the debug charts.
const historySize = 500

// Server exposes the monitoring HTTP API for one session.
type Server struct {
	session *db.SessionLogger
	cfg     *config.TuningConfig
	units   string

	// drops reports the log worker's drop counter, when wired.
	drops func() uint64

	mu        sync.Mutex
	latest    *wire.Measurement
	history   []wire.Measurement
	anomalies int64
}

// SetDropCounter wires the queue drop counter into the stats endpoint.
func (s *Server) SetDropCounter(fn func() uint64) { s.drops = fn }

// NewServer builds a Server reporting lengths in the given display
// units. session may be nil when running without persistence; the
// stats endpoint then returns 404.
func NewServer(session *db.SessionLogger, cfg *config.TuningConfig, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.MM
	}
	return &Server{
		session: session,
		cfg:     cfg,
		units:   displayUnits,
	}
}

// Attach subscribes the server to the measurement and anomaly topics.
// Call before publishing begins.
func (s *Server) Attach(b *bus.Bus) {
	b.Subscribe(bus.TopicMeasurement, func(payload any) {
		m, ok := payload.(wire.Measurement)
		if !ok {
			return
		}
		s.mu.Lock()
		s.latest = &m
		s.history = append(s.history, m)
		if len(s.history) > historySize {
			s.history = s.history[len(s.history)-historySize:]
		}
		s.mu.Unlock()
	})
	b.Subscribe(bus.TopicAnomaly, func(payload any) {
		if _, ok := payload.(wire.Anomaly); !ok {
			return
		}
		s.mu.Lock()
		s.anomalies++
		s.mu.Unlock()
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux routes the monitoring endpoints.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/wire/latest", s.showLatest)
	mux.HandleFunc("/api/wire/stats", s.showSessionStats)
	mux.HandleFunc("/api/wire/params", s.showParams)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/debug/charts/stagger", s.chartStagger)
	mux.HandleFunc("/debug/charts/diameter", s.chartDiameter)
	return mux
}

// MeasurementAPI is the wire format for a measurement. Optional fields
// are nil when the detection confidence was below the minimum; lengths
// are converted to the configured display units.
type MeasurementAPI struct {
	FrameID     int64        `json:"frame_id"`
	TimestampMs float64      `json:"timestamp_ms"`
	Stagger     *float64     `json:"stagger,omitempty"`
	Diameter    *float64     `json:"diameter,omitempty"`
	Confidence  float64      `json:"confidence"`
	Valid       bool         `json:"valid"`
	Centre      *wire.Point2 `json:"centre_px,omitempty"`
	Units       string       `json:"units"`
}

func (s *Server) toAPI(m *wire.Measurement) MeasurementAPI {
	out := MeasurementAPI{
		FrameID:     m.FrameID,
		TimestampMs: m.TimestampMs,
		Confidence:  m.Confidence,
		Valid:       m.Valid(),
		Centre:      m.WireCentrePx,
		Units:       s.units,
	}
	if m.StaggerMm != nil {
		v := units.ConvertLength(*m.StaggerMm, s.units)
		out.Stagger = &v
	}
	if m.DiameterMm != nil {
		v := units.ConvertLength(*m.DiameterMm, s.units)
		out.Diameter = &v
	}
	return out
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	s.mu.Lock()
	m := s.latest
	s.mu.Unlock()

	if m == nil {
		httputil.NotFound(w, "no measurement yet")
		return
	}
	httputil.WriteJSONOK(w, s.toAPI(m))
}

// SessionStats summarises the persisted rows of the running session.
type SessionStats struct {
	SessionID    string   `json:"session_id"`
	TotalFrames  int64    `json:"total_frames"`
	AnomalyCount int64    `json:"anomaly_count"`
	Dropped      uint64   `json:"dropped,omitempty"`
	AvgStagger   *float64 `json:"avg_stagger,omitempty"`
	MinStagger   *float64 `json:"min_stagger,omitempty"`
	MaxStagger   *float64 `json:"max_stagger,omitempty"`
	AvgDiameter  *float64 `json:"avg_diameter,omitempty"`
	Units        string   `json:"units"`
}

func (s *Server) showSessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.session == nil || s.session.Store() == nil {
		httputil.NotFound(w, "no active session store")
		return
	}

	stats := SessionStats{
		SessionID: s.session.SessionID(),
		Units:     s.units,
	}
	info := s.session.Info()
	if info != nil {
		stats.TotalFrames = info.TotalFrames
		stats.AnomalyCount = info.AnomalyCount
	}
	if s.drops != nil {
		stats.Dropped = s.drops()
	}

	row := s.session.Store().DB.QueryRow(`
		SELECT AVG(stagger_mm), MIN(stagger_mm), MAX(stagger_mm), AVG(diameter_mm)
		FROM measurements
		WHERE session_id = ? AND stagger_mm IS NOT NULL`,
		s.session.SessionID())
	var avg, min, max, avgD sql.NullFloat64
	if err := row.Scan(&avg, &min, &max, &avgD); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve session stats: %v", err))
		return
	}
	stats.AvgStagger = s.convertNull(avg)
	stats.MinStagger = s.convertNull(min)
	stats.MaxStagger = s.convertNull(max)
	stats.AvgDiameter = s.convertNull(avgD)

	httputil.WriteJSONOK(w, stats)
}

func (s *Server) convertNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	c := units.ConvertLength(v.Float64, s.units)
	return &c
}

func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	cfg := s.cfg
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	httputil.WriteJSONOK(w, cfg)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	cfg := map[string]interface{}{
		"units":   s.units,
		"version": version.String(),
	}
	if s.session != nil {
		cfg["session_id"] = s.session.SessionID()
	}
	httputil.WriteJSONOK(w, cfg)
}
