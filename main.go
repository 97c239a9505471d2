package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/catenary.report/internal/api"
	"github.com/banshee-data/catenary.report/internal/bus"
	"github.com/banshee-data/catenary.report/internal/calib"
	"github.com/banshee-data/catenary.report/internal/config"
	"github.com/banshee-data/catenary.report/internal/db"
	"github.com/banshee-data/catenary.report/internal/security"
	"github.com/banshee-data/catenary.report/internal/source"
	"github.com/banshee-data/catenary.report/internal/version"
	"github.com/banshee-data/catenary.report/internal/wire"
)

var (
	sourceSpec  = flag.String("source", "", "Frame source: an image directory, or 'synthetic[:N]' for generated frames")
	configPath  = flag.String("config", "", "Path to a JSON tuning config (optional)")
	calibPath   = flag.String("calibration", "config/calibration.json", "Path to the calibration descriptor")
	sessionDir  = flag.String("session-dir", "", "Session output directory (overrides config)")
	notes       = flag.String("notes", "", "Free-form note stored with the session")
	displayUnit = flag.String("units", "mm", "Display units for the monitor API: mm, cm, m, in")
	listen      = flag.String("listen", "", "Monitor HTTP listen address, e.g. :8080 (disabled when empty)")
	demoMode    = flag.Bool("demo", false, "Run a short synthetic demo session")
	exportOut   = flag.String("export", "", "Directory to write a summary JSON and flat CSV export after the run")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.Fatalf("catenary: %v", err)
	}
}

func run() error {
	log.Printf("catenary.report %s", version.String())

	spec := *sourceSpec
	if *demoMode && spec == "" {
		spec = "synthetic:200"
	}
	if spec == "" {
		return errors.New("a -source is required (or use -demo)")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		log.Printf("loaded tuning config from %s", *configPath)
	}

	src, err := source.New(spec, cfg.GetTargetFPS(), cfg.GetFrameSkip())
	if err != nil {
		return err
	}
	if err := src.Open(); err != nil {
		return fmt.Errorf("failed to open frame source: %w", err)
	}
	defer src.Close()

	// The calibration fallback derives the track centre from the frame
	// size, so pull the first frame before building the model.
	first, err := src.Next()
	if err != nil {
		return fmt.Errorf("frame source produced no frames: %w", err)
	}
	bounds := first.Image.Bounds()

	cal, err := calib.LoadFile(*calibPath, calib.Fallback{
		PxPerMm:       cfg.GetFallbackPxPerMm(),
		ImageWidthPx:  bounds.Dx(),
		ImageHeightPx: bounds.Dy(),
	})
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	log.Printf("calibration: %.2f px/mm, track centre x=%.1f px, undistort=%v",
		cal.PxPerMm, cal.TrackCentreXPx, cal.Undistorts())

	pipeline := wire.NewPipeline(cfg.PipelineConfig(), cal)
	rules := wire.NewRulesEngine(cfg.Thresholds())
	dataBus := bus.New()

	dir := cfg.GetSessionDir()
	if *sessionDir != "" {
		dir = *sessionDir
	}

	session := db.NewSessionLogger(dir, spec, *notes)
	info, err := session.Start()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	log.Printf("session %s started, writing to %s", info.SessionID, dir)

	var csv *db.CsvWriter
	if cfg.GetCsvEnabled() {
		csv, err = db.NewCsvWriter(dir, info.SessionID, cfg.GetCsvMaxRows())
		if err != nil {
			return fmt.Errorf("failed to open csv writer: %w", err)
		}
	}

	worker := db.NewLogWorker(session, csv, cfg.GetQueueCapacity())
	worker.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveMonitor(ctx, session, cfg, dataBus, worker)
		}()
	}

	frames, err := processFrames(ctx, src, first, pipeline, rules, dataBus, worker)
	if err != nil {
		log.Printf("frame loop ended with error: %v", err)
	}

	worker.Stop(5 * time.Second)
	if dropped := worker.Dropped(); dropped > 0 {
		log.Printf("queue dropped %d measurements during the run", dropped)
	}
	if csv != nil {
		if err := csv.Close(); err != nil {
			log.Printf("failed to close csv mirror: %v", err)
		}
	}

	// Stop closes the store and clears its path, so capture it first
	// for the post-run export.
	storePath := session.StorePath()
	final, err := session.Stop()
	if err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	log.Printf("session %s finished: %d frames processed, %d rows persisted, %d anomalies",
		final.SessionID, frames, final.TotalFrames, final.AnomalyCount)

	if *exportOut != "" {
		if err := exportSession(storePath, *exportOut, final.SessionID); err != nil {
			log.Printf("export failed: %v", err)
		}
	}

	stop()
	wg.Wait()
	return nil
}

// processFrames drives the synchronous per-frame chain until the
// source is exhausted or the context is cancelled. first is the frame
// already pulled for calibration sizing.
func processFrames(ctx context.Context, src source.FrameSource, first *wire.RawFrame,
	pipeline *wire.Pipeline, rules *wire.RulesEngine, dataBus *bus.Bus, worker *db.LogWorker) (int64, error) {

	var frames int64
	raw := first
	for raw != nil {
		m := pipeline.Run(raw)
		anomalies := rules.Evaluate(&m)

		// Persistence is off the hot path; publish is synchronous so
		// monitor state is current before the next frame.
		worker.Push(m, anomalies)
		dataBus.Publish(bus.TopicMeasurement, m)
		for _, a := range anomalies {
			log.Printf("anomaly: %s", a.Message)
			dataBus.Publish(bus.TopicAnomaly, a)
		}
		frames++

		select {
		case <-ctx.Done():
			log.Print("stopping frame loop")
			return frames, nil
		default:
		}

		next, err := src.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		raw = next
	}
	return frames, nil
}

// serveMonitor runs the monitoring HTTP server until ctx is cancelled.
func serveMonitor(ctx context.Context, session *db.SessionLogger, cfg *config.TuningConfig,
	dataBus *bus.Bus, worker *db.LogWorker) {

	mux := http.NewServeMux()

	// Admin debugging routes over the session store.
	if store := session.Store(); store != nil {
		if err := store.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}
	}

	apiServer := api.NewServer(session, cfg, *displayUnit)
	apiServer.Attach(dataBus)
	apiServer.SetDropCounter(worker.Dropped)
	mux.Handle("/", apiServer.ServeMux())

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		log.Printf("monitor listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("monitor server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down monitor server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("monitor server shutdown error: %v", err)
	}
}

// exportSession writes the post-run summary JSON and flat CSV.
func exportSession(storePath, outDir, sessionID string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	exp, err := db.NewExporter(storePath)
	if err != nil {
		return err
	}
	defer exp.Close()

	base := security.SanitizeFilename(sessionID)
	jsonPath := filepath.Join(outDir, base+"_summary.json")
	csvPath := filepath.Join(outDir, base+"_export.csv")
	for _, p := range []string{jsonPath, csvPath} {
		if err := security.ValidatePathWithinDirectory(p, outDir); err != nil {
			return err
		}
	}
	if err := exp.WriteSummaryJSON(jsonPath); err != nil {
		return err
	}
	if err := exp.ExportCSV(csvPath); err != nil {
		return err
	}
	log.Printf("exported %s and %s", jsonPath, csvPath)
	return nil
}
