// Command session-report renders an HTML report for a completed
// inspection session database.
//
// Usage:
//
//	go run ./cmd/tools/session-report [flags]
//
// Flags:
//
//	-db    Path to the session .sqlite file (required)
//	-out   Output HTML path (default: report.html)
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/catenary.report/internal/db"
)

func main() {
	dbPath := flag.String("db", "", "Path to the session .sqlite file (required)")
	outPath := flag.String("out", "report.html", "Output HTML path")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Error: -db flag is required")
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

	page := components.NewPage()
	page.PageTitle = "Inspection Session " + summary.Session.SessionID
	page.AddCharts(
		staggerChart(summary, series),
		diameterChart(summary, series),
		anomalyChart(summary),
	)

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	log.Printf("Report for session %s written to %s", summary.Session.SessionID, *outPath)
	log.Printf("Frames: %d, detection rate: %.1f%%, anomalies: %d",
		summary.Session.TotalFrames, summary.Detection.DetectionRatePct, summary.Session.AnomalyCount)
}

func frameAxis(series []db.FrameSample) []string {
	frames := make([]string, len(series))
	for i, s := range series {
		frames[i] = strconv.FormatInt(s.FrameID, 10)
	}
	return frames
}

func lineData(series []db.FrameSample, pick func(db.FrameSample) *float64) []opts.LineData {
	data := make([]opts.LineData, len(series))
	for i, s := range series {
		if v := pick(s); v != nil {
			data[i] = opts.LineData{Value: *v}
		} else {
			data[i] = opts.LineData{Value: "-"}
		}
	}
	return data
}

func staggerChart(summary *db.SessionSummary, series []db.FrameSample) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title: "Stagger (mm)",
			Subtitle: fmt.Sprintf("avg=%.2f min=%.2f max=%.2f p95=%.2f",
				summary.StaggerMm.Avg, summary.StaggerMm.Min, summary.StaggerMm.Max, summary.StaggerMm.P95),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mm"}),
	)
	line.SetXAxis(frameAxis(series))
	line.AddSeries("stagger_mm", lineData(series, func(s db.FrameSample) *float64 { return s.StaggerMm }))
	return line
}

func diameterChart(summary *db.SessionSummary, series []db.FrameSample) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title: "Wire Diameter (mm)",
			Subtitle: fmt.Sprintf("avg=%.2f min=%.2f max=%.2f",
				summary.DiameterMm.Avg, summary.DiameterMm.Min, summary.DiameterMm.Max),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mm"}),
	)
	line.SetXAxis(frameAxis(series))
	line.AddSeries("diameter_mm", lineData(series, func(s db.FrameSample) *float64 { return s.DiameterMm }))
	return line
}

func anomalyChart(summary *db.SessionSummary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Anomalies by type and severity",
			Subtitle: fmt.Sprintf("total=%d", summary.Session.AnomalyCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(summary.AnomalyBreakdown))
	counts := make([]opts.BarData, 0, len(summary.AnomalyBreakdown))
	for _, g := range summary.AnomalyBreakdown {
		labels = append(labels, g.Type+"/"+g.Severity)
		counts = append(counts, opts.BarData{Value: g.Count})
	}
	bar.SetXAxis(labels)
	bar.AddSeries("count", counts)
	return bar
}
