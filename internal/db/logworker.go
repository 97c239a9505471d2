package db

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/catenary.report/internal/monitoring"
	"github.com/banshee-data/catenary.report/internal/wire"
)

// logItem is one queued measurement with its anomalies. The stop flag
// marks the reserved shutdown sentinel.
type logItem struct {
	m         wire.Measurement
	anomalies []wire.Anomaly
	stop      bool
}

// LogWorker decouples the frame loop from storage latency with a
// bounded queue and a single consumer goroutine. Push never blocks:
// when the queue is full the item is dropped and counted, so the
// measurement loop's frame rate is never throttled by storage.
type LogWorker struct {
	session *SessionLogger
	csv     *CsvWriter // optional; nil disables the CSV mirror

	queue   chan logItem
	stopCh  chan struct{}
	done    chan struct{}
	dropped atomic.Uint64

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewLogWorker builds a worker with the given queue capacity. csv may
// be nil.
func NewLogWorker(session *SessionLogger, csv *CsvWriter, capacity int) *LogWorker {
	if capacity <= 0 {
		capacity = 500
	}
	return &LogWorker{
		session: session,
		csv:     csv,
		queue:   make(chan logItem, capacity),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calling Start twice is a
// no-op.
func (w *LogWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return
	}
	w.running = true
	go w.run()
}

// Push enqueues one measurement with its anomalies. On a full queue
// the item is dropped and the drop counter incremented; the call never
// blocks and never fails.
func (w *LogWorker) Push(m wire.Measurement, anomalies []wire.Anomaly) {
	select {
	case w.queue <- logItem{m: m, anomalies: anomalies}:
	default:
		n := w.dropped.Add(1)
		if n%100 == 1 {
			monitoring.Logf("logworker: queue full, %d item(s) dropped so far", n)
		}
	}
}

// Stop signals shutdown and waits up to timeout for the consumer to
// drain and exit. Every item queued ahead of the sentinel is written
// before the consumer exits; only drop-on-full items are ever lost. A
// consumer that fails to exit in time is logged, not fatal. Stop is
// idempotent and safe even if Start was never called.
func (w *LogWorker) Stop(timeout time.Duration) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	running := w.running
	w.mu.Unlock()

	// Prefer the in-band sentinel so queued work is drained in order;
	// fall back to the side channel when the queue is full.
	select {
	case w.queue <- logItem{stop: true}:
	default:
		monitoring.Logf("logworker: queue full on stop, forcing shutdown")
	}
	close(w.stopCh)

	if !running {
		return
	}
	select {
	case <-w.done:
	case <-time.After(timeout):
		monitoring.Logf("logworker: consumer did not exit within %v", timeout)
	}
	if n := w.dropped.Load(); n > 0 {
		monitoring.Logf("logworker: %d item(s) dropped during session", n)
	}
}

// Dropped returns the number of items discarded because the queue was
// full.
func (w *LogWorker) Dropped() uint64 { return w.dropped.Load() }

// QueueLen returns the number of items currently buffered.
func (w *LogWorker) QueueLen() int { return len(w.queue) }

func (w *LogWorker) run() {
	defer close(w.done)
	defer w.flush()
	for {
		select {
		case it := <-w.queue:
			if it.stop {
				w.drain()
				return
			}
			w.write(&it)
		case <-w.stopCh:
			// Sentinel could not be enqueued; write whatever is
			// still buffered, then exit.
			w.drain()
			return
		}
	}
}

// flush pushes buffered CSV rows to disk once the consumer exits, so a
// clean stop never loses already-written items to stream buffering.
func (w *LogWorker) flush() {
	if w.csv == nil {
		return
	}
	if err := w.csv.Flush(); err != nil {
		monitoring.Logf("logworker: csv flush failed: %v", err)
	}
}

// drain writes every remaining queued item without blocking.
func (w *LogWorker) drain() {
	for {
		select {
		case it := <-w.queue:
			if it.stop {
				continue
			}
			w.write(&it)
		default:
			return
		}
	}
}

// write persists one item to both sinks. A failure in either sink is
// logged per item and does not stop the worker.
func (w *LogWorker) write(it *logItem) {
	if err := w.session.LogMeasurement(&it.m); err != nil {
		monitoring.Logf("logworker: measurement write failed: %v", err)
	}
	for i := range it.anomalies {
		if err := w.session.LogAnomaly(&it.anomalies[i]); err != nil {
			monitoring.Logf("logworker: anomaly write failed: %v", err)
		}
	}
	if w.csv != nil {
		if err := w.csv.Write(&it.m, it.anomalies); err != nil {
			monitoring.Logf("logworker: csv write failed: %v", err)
		}
	}
}
