// Command session-plot produces PNG charts of the stagger and
// diameter series from a completed inspection session database.
//
// Usage:
//
//	go run ./cmd/tools/session-plot [flags]
//
// Flags:
//
//	-db    Path to the session .sqlite file (required)
//	-out   Output directory for the PNG files (default: .)
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/catenary.report/internal/db"
	"github.com/banshee-data/catenary.report/internal/security"
)

func main() {
	dbPath := flag.String("db", "", "Path to the session .sqlite file (required)")
	outDir := flag.String("out", ".", "Output directory for the PNG files")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Error: -db flag is required")
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	exp, err := db.NewExporter(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open session database: %v", err)
	}
	defer exp.Close()

	summary, err := exp.Summarise()
	if err != nil {
		log.Fatalf("Failed to summarise session: %v", err)
	}
	series, err := exp.Series()
	if err != nil {
		log.Fatalf("Failed to read measurement series: %v", err)
	}
	if len(series) == 0 {
		log.Fatal("Session has no measurement rows")
	}

	id := security.SanitizeFilename(summary.Session.SessionID)
	if err := savePlot(series, *outDir, id+"_stagger.png", "Stagger", "mm",
		func(s db.FrameSample) *float64 { return s.StaggerMm }); err != nil {
		log.Fatalf("Failed to plot stagger: %v", err)
	}
	if err := savePlot(series, *outDir, id+"_diameter.png", "Wire Diameter", "mm",
		func(s db.FrameSample) *float64 { return s.DiameterMm }); err != nil {
		log.Fatalf("Failed to plot diameter: %v", err)
	}

	log.Printf("Plots for session %s written to %s", id, *outDir)
}

func savePlot(series []db.FrameSample, dir, name, title, unit string, pick func(db.FrameSample) *float64) error {
	pts := make(plotter.XYs, 0, len(series))
	for _, s := range series {
		if v := pick(s); v != nil {
			pts = append(pts, plotter.XY{X: float64(s.FrameID), Y: *v})
		}
	}
	if len(pts) == 0 {
		return fmt.Errorf("no %s values to plot", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "frame"
	p.Y.Label.Text = unit

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Add(plotter.NewGrid())

	out := filepath.Join(dir, name)
	if err := p.Save(14*vg.Inch, 6*vg.Inch, out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	return nil
}
