package db

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/catenary.report/internal/monitoring"
	"github.com/banshee-data/catenary.report/internal/timeutil"
	"github.com/banshee-data/catenary.report/internal/wire"
)

// ErrNotStarted is returned when Stop is called before Start; that is
// a usage error, not a runtime condition.
var ErrNotStarted = errors.New("session not started")

// SessionLogger manages one measurement session: it owns the session's
// store for the session lifetime and maintains the running counters.
//
// The Log* methods are driven from the single LogWorker goroutine, but
// the monitor API reads the counters concurrently via Info, so all
// mutable state sits behind the mutex.
type SessionLogger struct {
	dir    string
	source string
	notes  string
	clock  timeutil.Clock

	mu    sync.Mutex
	store *Store
	info  *wire.SessionInfo
}

// NewSessionLogger prepares a logger writing session databases under
// dir. Nothing is created until Start.
func NewSessionLogger(dir, source, notes string) *SessionLogger {
	return &SessionLogger{dir: dir, source: source, notes: notes, clock: timeutil.RealClock{}}
}

// SetClock replaces the wall clock used for session timestamps. Call
// before Start.
func (l *SessionLogger) SetClock(c timeutil.Clock) { l.clock = c }

// Start generates a fresh session identifier, creates the backing
// store and inserts the open session row.
func (l *SessionLogger) Start() (*wire.SessionInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	id := fmt.Sprintf("%s_%s",
		l.clock.Now().Format("20060102T150405"),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:6])

	store, err := OpenStore(filepath.Join(l.dir, id+".sqlite"))
	if err != nil {
		return nil, err
	}

	startedAt := float64(l.clock.Now().UnixMilli())
	if _, err := store.Exec(
		`INSERT INTO sessions (session_id, source, started_at_ms, notes) VALUES (?, ?, ?, ?)`,
		id, l.source, startedAt, l.notes,
	); err != nil {
		store.Close()
		return nil, fmt.Errorf("insert session row: %w", err)
	}

	l.store = store
	l.info = &wire.SessionInfo{
		SessionID:   id,
		Source:      l.source,
		StartedAtMs: startedAt,
		Notes:       l.notes,
	}
	monitoring.Logf("session: started %s -> %s", id, store.Path)
	return l.cloneInfo(), nil
}

// LogMeasurement inserts one measurement row and increments the
// total-frame counter. Measurements with absent optional fields are
// persisted (as NULLs) and counted like any other.
func (l *SessionLogger) LogMeasurement(m *wire.Measurement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return ErrNotStarted
	}
	_, err := l.store.Exec(
		`INSERT INTO measurements (session_id, frame_id, timestamp_ms, stagger_mm, diameter_mm, confidence, wire_bbox)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.info.SessionID, m.FrameID, m.TimestampMs,
		nullable(m.StaggerMm), nullable(m.DiameterMm), m.Confidence,
		bboxText(m.WireBBox),
	)
	if err != nil {
		return wire.Errorf(wire.KindLogging, "session", "insert measurement frame %d: %w", m.FrameID, err)
	}
	l.info.TotalFrames++
	return nil
}

// LogAnomaly inserts one anomaly row and increments the anomaly
// counter.
func (l *SessionLogger) LogAnomaly(a *wire.Anomaly) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return ErrNotStarted
	}
	_, err := l.store.Exec(
		`INSERT INTO anomalies (session_id, frame_id, timestamp_ms, anomaly_type, value, threshold, severity, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.info.SessionID, a.FrameID, a.TimestampMs,
		string(a.Type), a.Value, a.Threshold, string(a.Severity), a.Message,
	)
	if err != nil {
		return wire.Errorf(wire.KindLogging, "session", "insert anomaly frame %d: %w", a.FrameID, err)
	}
	l.info.AnomalyCount++
	return nil
}

// Stop finalises the session row with the end time and counters, then
// closes the store. Stopping a session that was never started is a
// fatal usage error surfaced as ErrNotStarted.
func (l *SessionLogger) Stop() (*wire.SessionInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil || l.info == nil {
		return nil, ErrNotStarted
	}
	endedAt := float64(l.clock.Now().UnixMilli())
	_, err := l.store.Exec(
		`UPDATE sessions SET ended_at_ms = ?, total_frames = ?, anomaly_count = ? WHERE session_id = ?`,
		endedAt, l.info.TotalFrames, l.info.AnomalyCount, l.info.SessionID,
	)
	closeErr := l.store.Close()
	l.store = nil
	if err != nil {
		return nil, fmt.Errorf("finalise session row: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close session store: %w", closeErr)
	}
	l.info.EndedAtMs = &endedAt
	monitoring.Logf("session: ended %s frames=%d anomalies=%d",
		l.info.SessionID, l.info.TotalFrames, l.info.AnomalyCount)
	return l.cloneInfo(), nil
}

// SessionID returns the current session identifier, empty before
// Start.
func (l *SessionLogger) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.info == nil {
		return ""
	}
	return l.info.SessionID
}

// StorePath returns the backing database path, empty before Start.
func (l *SessionLogger) StorePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return ""
	}
	return l.store.Path
}

// Store exposes the open store for read-side consumers (admin routes).
// Nil outside the Start/Stop window.
func (l *SessionLogger) Store() *Store {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store
}

// Info returns a snapshot of the running counters.
func (l *SessionLogger) Info() *wire.SessionInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cloneInfo()
}

// cloneInfo expects l.mu held.
func (l *SessionLogger) cloneInfo() *wire.SessionInfo {
	if l.info == nil {
		return nil
	}
	cp := *l.info
	return &cp
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// bboxText serialises a bounding box as "x,y,w,h", or NULL when absent.
func bboxText(r *image.Rectangle) any {
	if r == nil {
		return nil
	}
	return fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}
