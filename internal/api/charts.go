package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/catenary.report/internal/httputil"
	"github.com/banshee-data/catenary.report/internal/units"
	"github.com/banshee-data/catenary.report/internal/wire"
)

// chartStagger renders a quick line chart (HTML) of recent stagger
// values using go-echarts. This is a debugging-only endpoint (no auth)
// to eyeball wire drift without an external viewer.
// Query params:
//   - max_points (optional; default 500) to reduce payload size
func (s *Server) chartStagger(w http.ResponseWriter, r *http.Request) {
	s.renderHistoryChart(w, r, "Contact Wire Stagger",
		func(m *wire.Measurement) *float64 { return m.StaggerMm })
}

// chartDiameter renders recent diameter values the same way.
func (s *Server) chartDiameter(w http.ResponseWriter, r *http.Request) {
	s.renderHistoryChart(w, r, "Contact Wire Diameter",
		func(m *wire.Measurement) *float64 { return m.DiameterMm })
}

func (s *Server) renderHistoryChart(w http.ResponseWriter, r *http.Request, title string, pick func(*wire.Measurement) *float64) {
	maxPoints := historySize
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 10 && v <= historySize {
			maxPoints = v
		}
	}

	s.mu.Lock()
	hist := make([]wire.Measurement, len(s.history))
	copy(hist, s.history)
	s.mu.Unlock()

	if len(hist) == 0 {
		httputil.NotFound(w, "no measurements recorded yet")
		return
	}
	if len(hist) > maxPoints {
		hist = hist[len(hist)-maxPoints:]
	}

	frames := make([]string, 0, len(hist))
	data := make([]opts.LineData, 0, len(hist))
	for i := range hist {
		v := pick(&hist[i])
		frames = append(frames, strconv.FormatInt(hist[i].FrameID, 10))
		if v == nil {
			// Gap where the detection was below confidence.
			data = append(data, opts.LineData{Value: "-"})
			continue
		}
		data = append(data, opts.LineData{Value: units.ConvertLength(*v, s.units)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d units=%s", len(data), s.units)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: units.Label(s.units)}),
	)
	line.SetXAxis(frames)
	line.AddSeries(title, data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
